// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearbyhouses/nearby/buildings"
	"github.com/nearbyhouses/nearby/lookup"
	"github.com/nearbyhouses/nearby/spatial"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLookup struct {
	resp      lookup.Response
	panic     bool
	calls     int
	gotAddr   string
	gotRadius float64
}

func (f *fakeLookup) Lookup(_ context.Context, address string, radius float64) lookup.Response {
	f.calls++
	f.gotAddr, f.gotRadius = address, radius

	if f.panic {
		panic("kaboom")
	}

	return f.resp
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupServerTest(t *testing.T, fake *fakeLookup, opts Options) *gin.Engine {
	t.Helper()

	opts.Logger = quietLogger()

	return NewServer(fake, opts).Handler()
}

func get(router http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	router.ServeHTTP(w, req)

	return w
}

func TestNearbyHousesSuccess(t *testing.T) {
	origin := spatial.Point{Lat: 38.8976763, Lng: -77.0365298}
	fake := &fakeLookup{resp: lookup.Response{
		AddressFound: true,
		Coordinates:  &origin,
		FoundAddress: "White House",
		Houses: []buildings.Building{
			{ID: 1, Lat: 38.8977, Lng: -77.0366, Address: "Main St 12", Type: "house", DistanceMeters: 12.3, Distance: "12.3m away"},
		},
	}}
	router := setupServerTest(t, fake, Options{})

	w := get(router, "/api/nearby-houses?address=1600+Pennsylvania+Ave+NW%2C+Washington%2C+DC&radius=50")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1600 Pennsylvania Ave NW, Washington, DC", fake.gotAddr)
	assert.Equal(t, 50.0, fake.gotRadius)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["address_found"])
	assert.Equal(t, "White House", body["found_address"])

	houses, ok := body["houses"].([]any)
	require.True(t, ok)
	require.Len(t, houses, 1)

	house, ok := houses[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Main St 12", house["address"])
	assert.Equal(t, 12.3, house["distance_meters"])
	assert.Equal(t, "12.3m away", house["distance"])
}

func TestNearbyHousesDefaultRadius(t *testing.T) {
	fake := &fakeLookup{resp: lookup.Response{AddressFound: true, Houses: []buildings.Building{}}}
	router := setupServerTest(t, fake, Options{DefaultRadius: 75})

	w := get(router, "/api/nearby-houses?address=Somewhere")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 75.0, fake.gotRadius)
	assert.Contains(t, w.Body.String(), `"houses":[]`)
}

func TestNearbyHousesRadiusValidation(t *testing.T) {
	for _, radius := range []string{"abc", "0", "-10", "5000", "NaN"} {
		t.Run(radius, func(t *testing.T) {
			fake := &fakeLookup{}
			router := setupServerTest(t, fake, Options{MaxRadius: 1000})

			w := get(router, "/api/nearby-houses?address=Somewhere&radius="+radius)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, fake.calls)

			var resp lookup.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.AddressFound)
			assert.NotEmpty(t, resp.Error)
			assert.NotNil(t, resp.Houses)
		})
	}
}

func TestNearbyHousesStatusMapping(t *testing.T) {
	tests := []struct {
		kind lookup.Kind
		want int
	}{
		{lookup.KindValidation, http.StatusBadRequest},
		{lookup.KindNotFound, http.StatusNotFound},
		{lookup.KindUpstream, http.StatusBadGateway},
		{lookup.KindTimeout, http.StatusGatewayTimeout},
		{lookup.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			fake := &fakeLookup{resp: lookup.Failed(tt.kind, "address not found")}
			router := setupServerTest(t, fake, Options{})

			w := get(router, "/api/nearby-houses?address=zzzzxxxxnotreal123")

			assert.Equal(t, tt.want, w.Code)
			assert.JSONEq(t, `{"address_found": false, "houses": [], "error": "address not found"}`, w.Body.String())
		})
	}
}

func TestNearbyHousesRecoversPanics(t *testing.T) {
	router := setupServerTest(t, &fakeLookup{panic: true}, Options{})

	w := get(router, "/api/nearby-houses?address=Somewhere")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Contains(t, w.Body.String(), lookup.ErrMsgInternal)
}

func TestHealthz(t *testing.T) {
	w := get(setupServerTest(t, &fakeLookup{}, Options{}), "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestHomeView(t *testing.T) {
	w := get(setupServerTest(t, &fakeLookup{}, Options{DefaultRadius: 80, Version: "v1.2.3"}), "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="80"`)
	assert.Contains(t, w.Body.String(), "nearby v1.2.3")
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o600))

	w := get(setupServerTest(t, &fakeLookup{}, Options{StaticDir: dir}), "/static/app.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())

	w = get(setupServerTest(t, &fakeLookup{}, Options{}), "/static/app.css")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	router := setupServerTest(t, &fakeLookup{resp: lookup.Response{AddressFound: true, Houses: []buildings.Building{}}},
		Options{CORSOrigins: []string{"https://maps.example"}})

	w := get(router, "/api/nearby-houses?address=x", "Origin", "https://maps.example")
	assert.Equal(t, "https://maps.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(router, "/api/nearby-houses?address=x", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSDisabled(t *testing.T) {
	router := setupServerTest(t, &fakeLookup{resp: lookup.Response{AddressFound: true}}, Options{})

	w := get(router, "/api/nearby-houses?address=x", "Origin", "https://maps.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer

	router := NewServer(&fakeLookup{resp: lookup.Failed(lookup.KindNotFound, "address not found")}, Options{
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}).Handler()

	get(router, "/api/nearby-houses?address=nowhere")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/api/nearby-houses")
	assert.Contains(t, out, "status=404")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(&fakeLookup{}, Options{Logger: quietLogger(), ShutdownTimeout: time.Second})

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}

		resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunInvalidAddress(t *testing.T) {
	err := NewServer(&fakeLookup{}, Options{Logger: quietLogger()}).Run(context.Background(), "256.0.0.1:bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
