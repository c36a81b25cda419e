// Package errclass maps transport and protocol faults observed by the turn
// controller to a Transient/Permanent verdict, grounded on
// original_source/src/api.rs's ErrorClass/classify_error.
package errclass

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// Class is the transient/permanent verdict the retry loop branches on.
type Class int

const (
	Permanent Class = iota
	Transient
)

// Kind identifies the taxonomy of fault the controller observed (§7 Error
// Handling Design). It is carried on Fault so callers can recover the
// specific kind via errors.As without string sniffing.
type Kind int

const (
	KindTransport Kind = iota
	KindStreamTransient
	KindStreamParse
	KindEncoding
)

// Fault wraps an underlying error with its classified Kind and, for HTTP
// faults, the status code and any retry_after value observed.
type Fault struct {
	Kind       Kind
	StatusCode int
	RetryAfter int // seconds; 0 means absent
	Err        error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return f.Err.Error()
	}
	return "forgeflare: classified fault"
}

func (f *Fault) Unwrap() error { return f.Err }

// NewStreamTransient wraps err as a StreamTransient fault (overload, rate
// limit, mid-stream connection drop — recoverable by restarting the call).
func NewStreamTransient(err error) *Fault {
	return &Fault{Kind: KindStreamTransient, Err: err}
}

// NewStreamParse wraps err as a StreamParse fault — a permanent
// protocol-level error reported inside an SSE "error" event.
func NewStreamParse(err error) *Fault {
	return &Fault{Kind: KindStreamParse, Err: err}
}

// NewEncoding wraps err as a permanent JSON/encoding fault.
func NewEncoding(err error) *Fault {
	return &Fault{Kind: KindEncoding, Err: err}
}

// NewHTTP wraps an HTTP non-2xx response as a Transport fault, capturing the
// status code and a parsed retry_after in seconds, if present.
func NewHTTP(statusCode int, retryAfterSeconds int, err error) *Fault {
	return &Fault{Kind: KindTransport, StatusCode: statusCode, RetryAfter: retryAfterSeconds, Err: err}
}

// Classify maps a Fault (or a bare transport error) to Transient or
// Permanent, per §4.2.
func Classify(err error) Class {
	var fault *Fault
	if errors.As(err, &fault) {
		switch fault.Kind {
		case KindTransport:
			return classifyHTTPStatus(fault.StatusCode)
		case KindStreamTransient:
			return Transient
		case KindStreamParse:
			return Permanent
		case KindEncoding:
			return Permanent
		}
	}

	// Bare transport errors (no HTTP status observed): timeout or connect
	// failure is transient, anything else permanent.
	if isTimeoutOrConnectFailure(err) {
		return Transient
	}
	return Permanent
}

// classifyHTTPStatus maps an HTTP status code: 429, 503, 529, and any 5xx
// are Transient; any other non-2xx is Permanent. A zero/unset status code
// (no HTTP response was ever received) is treated as a connection-level
// fault and classified via isTimeoutOrConnectFailure by the caller instead.
func classifyHTTPStatus(status int) Class {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
		return Transient
	}
	if status >= 500 && status < 600 {
		return Transient
	}
	return Permanent
}

// isTimeoutOrConnectFailure reports whether err represents a network
// timeout, a context deadline/cancellation, or a connection-refused/DNS
// failure — all recoverable by retrying.
func isTimeoutOrConnectFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}

// CappedRetryAfter caps a retry_after value (in seconds) at 60, the ceiling
// the controller applies regardless of what the server requested.
func CappedRetryAfter(seconds int) int {
	if seconds > 60 {
		return 60
	}
	return seconds
}
