package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPayloadNotFound indicates that an HTML page did not contain the embedded data element.
	ErrPayloadNotFound = errors.New("payload not found")
	// ErrUnexpectedJurisdiction indicates that a record named a jurisdiction the source does not cover.
	ErrUnexpectedJurisdiction = errors.New("unexpected jurisdiction")
	// ErrMissingCredentials indicates that an authenticated source has no credentials configured.
	ErrMissingCredentials = errors.New("missing credentials")
)

// FetchError is a network, transport, or decoding failure within one source.
type FetchError struct {
	Source string
	Err    error
}

// NewFetchError wraps err as a fetch failure of source.
// It returns nil for a nil err and leaves errors that already carry a source untouched.
func NewFetchError(source string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	var ue *UnmappedFuelCodeError
	if errors.As(err, &ue) {
		return err
	}
	return &FetchError{Source: source, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UnmappedFuelCodeError is a fuel code outside both the canonical mapping and the ignore set.
// It is always fatal to the source so that upstream schema drift surfaces immediately.
type UnmappedFuelCodeError struct {
	Source string
	Code   string
}

func (e *UnmappedFuelCodeError) Error() string {
	return fmt.Sprintf("%s: unmapped fuel code %q", e.Source, e.Code)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, body)
}
