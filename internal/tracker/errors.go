package tracker

import "fmt"

// FetchError covers transport failures: network errors, timeouts, and
// non-2xx responses. It is transient from the monitor's point of view and
// feeds the error backoff.
type FetchError struct {
	URL    string
	Status int // 0 when the request never produced a response
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the response body does not map to the expected schema.
// Backoff-wise it behaves like FetchError, but it is logged distinctly since
// it may signal an upstream schema change rather than a transient outage.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
