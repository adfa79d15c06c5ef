package platform

import (
	"errors"
	"fmt"

	"pawarisk/pkg/types"
)

// ErrorKind buckets client failures for retry and reporting decisions.
// Network failures are retried with backoff; API failures (upstream rejected
// the request with a well-formed negative envelope) are not.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"
	KindAPI     ErrorKind = "api"
	KindParse   ErrorKind = "parse"
)

// Error is a typed platform-client failure.
type Error struct {
	Kind     ErrorKind
	Platform types.Platform
	Op       string // e.g. "fetch_event"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Platform, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func netErr(p types.Platform, op string, err error) error {
	return &Error{Kind: KindNetwork, Platform: p, Op: op, Err: err}
}

func apiErr(p types.Platform, op, format string, args ...any) error {
	return &Error{Kind: KindAPI, Platform: p, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the error kind, defaulting to network for untyped errors
// (transport failures surface from resty unwrapped).
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}
