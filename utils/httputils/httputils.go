// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides utility functions for working with HTTP.
package httputils

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"
)

/////////////////////////////////////////
/// RoundTrippers

// LoggingRoundTripper logs every outbound HTTP transaction at debug level.
// When Trace is set the request and response dumps are logged too.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Logger    *slog.Logger
	Trace     bool
	DumpBody  bool
}

// abbreviate prefixes every line and bounds the dump size.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 256, 512

	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "…")
	}

	for i, line := range lines {
		line = fmt.Sprintf("%c %s", prefix, line)
		if len(line) > maxChars {
			line = line[0:maxChars] + "…"
		}

		lines[i] = line
	}

	return lines
}

func (t *LoggingRoundTripper) dumpRequest(req *http.Request) (string, error) {
	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return "", fmt.Errorf("tracing HTTP request: %w", err)
	}

	return strings.Join(abbreviate(strings.Split(string(dump), "\n"), '>'), "\n"), nil
}

func (t *LoggingRoundTripper) dumpResponse(resp *http.Response) (string, error) {
	dump, err := httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return "", fmt.Errorf("tracing HTTP response: %w", err)
	}

	return strings.Join(abbreviate(strings.Split(string(dump), "\n"), '<'), "\n"), nil
}

func (t *LoggingRoundTripper) transport() http.RoundTripper {
	if t.Transport == nil {
		return http.DefaultTransport
	}

	return t.Transport
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Logger == nil {
		return t.transport().RoundTrip(req)
	}

	ctx := req.Context()
	attrs := []any{slog.String("method", req.Method), slog.String("url", req.URL.Redacted())}

	if t.Trace {
		dump, err := t.dumpRequest(req)
		if err != nil {
			return nil, err
		}

		t.Logger.DebugContext(ctx, "outbound request", append(attrs, slog.String("dump", dump))...)
	}

	start := time.Now()

	resp, err := t.transport().RoundTrip(req)
	if err != nil {
		t.Logger.DebugContext(ctx, "outbound request failed",
			append(attrs, slog.Duration("duration", time.Since(start)), slog.Any("error", err))...)

		return nil, err
	}

	attrs = append(attrs, slog.Int("status", resp.StatusCode), slog.Duration("duration", time.Since(start)))

	if t.Trace {
		dump, err := t.dumpResponse(resp)
		if err != nil {
			return nil, err
		}

		attrs = append(attrs, slog.String("dump", dump))
	}

	t.Logger.DebugContext(ctx, "outbound response", attrs...)

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to the request. Headers the
// caller already set are left alone.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// A RoundTripper must not modify the caller's request.
	req = req.Clone(req.Context())

	for k, v := range t.Headers {
		if v != "" && req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return transport.RoundTrip(req)
}

////////////////////////////////////////////////////

// ClientOptions configures the shared outbound client.
type ClientOptions struct {
	// UserAgent identifies the application to upstream services. Nominatim's
	// usage policy rejects requests without a descriptive one.
	UserAgent string

	// AcceptLanguage is sent when set.
	AcceptLanguage string

	// Logger receives one debug record per transaction.
	Logger *slog.Logger

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool
}

// NewClient builds the outbound client shared by all requests. It carries no
// global timeout: every call is bounded by its own context deadline so that
// a caller cancellation aborts the request.
func NewClient(options ClientOptions) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &LoggingRoundTripper{
		Transport: transport,
		Logger:    options.Logger,
		Trace:     options.EnableHTTPTrace || options.EnableHTTPBodyTrace,
		DumpBody:  options.EnableHTTPBodyTrace,
	}

	userAgent := "nearby/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headerTransport := &AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "application/json",
			"Accept-Language": options.AcceptLanguage,
		},
		Transport: loggingTransport,
	}

	return &http.Client{
		Transport: headerTransport,
		// Upstream APIs answer directly; a redirect is unexpected.
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// WithTimeout derives a context bounded by d. A non-positive d leaves the
// parent deadline as the only bound.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, d)
}
