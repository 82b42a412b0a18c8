package geocoding

import (
	"fmt"
)

// ErrNotFound is returned when every provider and candidate query has been
// tried without a street-level match. Address is the text the caller passed in.
type ErrNotFound struct {
	Address string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("address not found: %s", e.Address)
}

// ErrProviderUnavailable wraps a transport or protocol failure of one provider
type ErrProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("geocoding provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error {
	return e.Err
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}
