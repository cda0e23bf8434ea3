// Copyright 2025 The Nearby Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GeocodingError represents a failure talking to a geocoding provider.
type GeocodingError struct {
	Type       ErrorType
	StatusCode int // upstream HTTP status, 0 when no response was received
	Message    string
	Err        error
}

// ErrorType classifies geocoding errors.
type ErrorType int

const (
	// ErrorTypeUnknown unexpected upstream answer.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit the provider throttled us.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded quota exhausted or access denied.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout the call did not complete before its deadline.
	ErrorTypeTimeout
	// ErrorTypeNotFound the provider answered 404.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest the provider rejected the request.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError transport failure or unavailable service.
	ErrorTypeNetworkError
	// ErrorTypeCancelled the caller went away.
	ErrorTypeCancelled
	// ErrorTypeDecode the payload could not be parsed.
	ErrorTypeDecode
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:        "unknown",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeQuotaExceeded:  "quota_exceeded",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeInvalidRequest: "invalid_request",
	ErrorTypeNetworkError:   "network_error",
	ErrorTypeCancelled:      "cancelled",
	ErrorTypeDecode:         "decode",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("ErrorType(%d)", int(t))
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

func hasType(err error, t ErrorType) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == t
	}

	return false
}

// IsRateLimitError reports whether the provider throttled the request.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError reports whether the provider quota is exhausted.
func IsQuotaExceededError(err error) bool {
	if err == nil {
		return false
	}

	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeQuotaExceeded
	}

	// Google Maps reports quota problems in the body status.
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_query_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError reports whether the call ran out of time.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if hasType(err, ErrorTypeTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsCancelledError reports whether the caller cancelled the call.
func IsCancelledError(err error) bool {
	if err == nil {
		return false
	}

	return hasType(err, ErrorTypeCancelled) || errors.Is(err, context.Canceled)
}

// IsNotFoundError reports whether the provider rejected the query as unknown.
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// ClassifyHTTPError turns a non-2xx upstream status into a GeocodingError.
func ClassifyHTTPError(statusCode int, body string) *GeocodingError {
	geoErr := &GeocodingError{StatusCode: statusCode}

	switch statusCode {
	case http.StatusTooManyRequests:
		geoErr.Type = ErrorTypeRateLimit
		geoErr.Message = "rate limit reached"
	case http.StatusForbidden:
		geoErr.Type = ErrorTypeQuotaExceeded
		geoErr.Message = "quota exceeded or access denied"
	case http.StatusBadRequest:
		geoErr.Type = ErrorTypeInvalidRequest
		geoErr.Message = "invalid request"
	case http.StatusNotFound:
		geoErr.Type = ErrorTypeNotFound
		geoErr.Message = "endpoint not found"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		geoErr.Type = ErrorTypeTimeout
		geoErr.Message = fmt.Sprintf("upstream timeout (status %d)", statusCode)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		geoErr.Type = ErrorTypeNetworkError
		geoErr.Message = fmt.Sprintf("service unavailable (status %d)", statusCode)
	default:
		geoErr.Type = ErrorTypeUnknown
		geoErr.Message = fmt.Sprintf("HTTP error %d", statusCode)
	}

	if body = strings.TrimSpace(body); body != "" {
		geoErr.Err = errors.New(body)
	}

	return geoErr
}

// classifyTransportError wraps an error returned by http.Client.Do.
func classifyTransportError(err error) *GeocodingError {
	switch {
	case IsCancelledError(err):
		return &GeocodingError{Type: ErrorTypeCancelled, Message: "geocoding request cancelled", Err: err}
	case IsTimeoutError(err):
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "geocoding request timed out", Err: err}
	default:
		return &GeocodingError{Type: ErrorTypeNetworkError, Message: "geocoding request failed", Err: err}
	}
}
