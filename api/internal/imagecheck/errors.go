package imagecheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"unicode/utf8"
)

// ConfigError reports missing or invalid credentials.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("imagecheck config: %s is empty", e.Field)
	}
	return fmt.Sprintf("imagecheck config: %s: %s", e.Field, e.Reason)
}

// LimitError reports a batch that breaks the per-call image limits.
type LimitError struct {
	Reason string
}

func (e *LimitError) Error() string { return "imagecheck batch: " + e.Reason }

// TransportError covers connection failures, timeouts and non-2xx HTTP replies.
type TransportError struct {
	Op         string // "post" | "read" | "status"
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("imagecheck transport: http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("imagecheck transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran past the client deadline.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ProtocolError means the body was not the JSON document the API promises.
type ProtocolError struct {
	Body string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("imagecheck protocol: %v; body: %s", e.Err, e.Body)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

var errMissingCode = errors.New("response has no code field")

func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}

// bodyPrefix keeps error messages readable for large or binary bodies.
func bodyPrefix(b []byte) string {
	const limit = 512
	if len(b) > limit {
		n := limit
		for n > 0 && !utf8.RuneStart(b[n]) {
			n--
		}
		return string(b[:n]) + "…"
	}
	return string(b)
}
