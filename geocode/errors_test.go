// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

type errorCheckTestCase struct {
	name string
	err  error
	want bool
}

func runErrorCheckTest(t *testing.T, tests []errorCheckTestCase, checkFunc func(error) bool) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkFunc(tt.err); got != tt.want {
				t.Errorf("checkFunc() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{
			name: "rate limit error type",
			err:  &GeocodingError{Type: ErrorTypeRateLimit, Message: "rate limit exceeded"},
			want: true,
		},
		{
			name: "wrapped rate limit error type",
			err:  fmt.Errorf("searching: %w", &GeocodingError{Type: ErrorTypeRateLimit, Message: "slow down"}),
			want: true,
		},
		{
			name: "error message contains too many requests",
			err:  errors.New("too many requests"),
			want: true,
		},
		{
			name: "error message contains 429",
			err:  errors.New("nominatim returned status 429"),
			want: true,
		},
		{
			name: "other error type",
			err:  &GeocodingError{Type: ErrorTypeNotFound, Message: "not found"},
			want: false,
		},
		{
			name: "decode error mentioning 429",
			err:  &GeocodingError{Type: ErrorTypeDecode, Message: "invalid latitude \"34.1429x\""},
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}, IsRateLimitError)
}

func TestIsQuotaExceededError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{
			name: "quota exceeded error type",
			err:  &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "quota exceeded"},
			want: true,
		},
		{
			name: "error message contains over_query_limit",
			err:  errors.New("google maps status: OVER_QUERY_LIMIT"),
			want: true,
		},
		{
			name: "other error type",
			err:  &GeocodingError{Type: ErrorTypeRateLimit, Message: "rate limit"},
			want: false,
		},
		{
			name: "invalid request mentioning quota",
			err:  &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "INVALID_REQUEST: quota exceeded for field"},
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("some other error"),
			want: false,
		},
	}, IsQuotaExceededError)
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestIsTimeoutError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{
			name: "timeout error type",
			err:  &GeocodingError{Type: ErrorTypeTimeout, Message: "timeout"},
			want: true,
		},
		{
			name: "deadline exceeded",
			err:  fmt.Errorf("Get \"http://x\": %w", context.DeadlineExceeded),
			want: true,
		},
		{
			name: "net timeout",
			err:  timeoutNetError{},
			want: true,
		},
		{
			name: "cancelled is not a timeout",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}, IsTimeoutError)
}

func TestIsCancelledError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{name: "context canceled", err: fmt.Errorf("do: %w", context.Canceled), want: true},
		{name: "cancelled type", err: &GeocodingError{Type: ErrorTypeCancelled}, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
	}, IsCancelledError)
}

func TestIsNotFoundError(t *testing.T) {
	runErrorCheckTest(t, []errorCheckTestCase{
		{name: "not found type", err: ClassifyHTTPError(http.StatusNotFound, ""), want: true},
		{name: "wrapped", err: fmt.Errorf("search: %w", &GeocodingError{Type: ErrorTypeNotFound}), want: true},
		{name: "other type", err: &GeocodingError{Type: ErrorTypeDecode}, want: false},
		{name: "nil", err: nil, want: false},
	}, IsNotFoundError)
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusForbidden, ErrorTypeQuotaExceeded},
		{http.StatusBadRequest, ErrorTypeInvalidRequest},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusGatewayTimeout, ErrorTypeTimeout},
		{http.StatusServiceUnavailable, ErrorTypeNetworkError},
		{http.StatusBadGateway, ErrorTypeNetworkError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ClassifyHTTPError(tt.status, "  body  ")
			if err.Type != tt.want {
				t.Errorf("ClassifyHTTPError(%d).Type = %v, want %v", tt.status, err.Type, tt.want)
			}

			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}

			if !errors.Is(err, err.Err) || err.Err.Error() != "body" {
				t.Errorf("body not kept as cause: %v", err.Err)
			}
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	if got := classifyTransportError(context.Canceled).Type; got != ErrorTypeCancelled {
		t.Errorf("canceled classified as %v", got)
	}

	if got := classifyTransportError(context.DeadlineExceeded).Type; got != ErrorTypeTimeout {
		t.Errorf("deadline classified as %v", got)
	}

	if got := classifyTransportError(errors.New("dial tcp: connection refused")).Type; got != ErrorTypeNetworkError {
		t.Errorf("refused classified as %v", got)
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrorTypeTimeout.String() != "timeout" {
		t.Errorf("unexpected name %q", ErrorTypeTimeout.String())
	}

	if ErrorType(99).String() != "ErrorType(99)" {
		t.Errorf("unexpected name %q", ErrorType(99).String())
	}
}
