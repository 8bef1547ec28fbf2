package iplookup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider is returned for a provider ID missing from the registry.
	ErrUnknownProvider = errors.New("unknown IP lookup provider")

	// ErrProviderExhausted matches any *ExhaustedError via errors.Is.
	ErrProviderExhausted = errors.New("all IP lookup providers failed")

	// ErrMalformedAddress indicates a provider answered but the payload was
	// not an address of the expected family.
	ErrMalformedAddress = errors.New("malformed address in provider response")
)

// Attempt records one failed provider lookup.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every failover candidate failed.
// Attempts are in the order they were tried.
type ExhaustedError struct {
	Family   Family
	Attempts []Attempt

	// Cause is set when the context ended before every candidate was
	// tried. Untried candidates do not appear in Attempts.
	Cause error
}

// Providers returns the attempted provider IDs in order.
func (e *ExhaustedError) Providers() []string {
	ids := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		ids[i] = a.Provider
	}
	return ids
}

func (e *ExhaustedError) Error() string {
	causes := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		causes[i] = fmt.Sprintf("%s: %v", a.Provider, a.Err)
	}
	if e.Cause != nil {
		causes = append(causes, fmt.Sprintf("stopped: %v", e.Cause))
	}
	tried := strings.Join(e.Providers(), ", ")
	if tried == "" {
		tried = "none"
	}
	return fmt.Sprintf("resolving public %s address: providers tried: %s (%s)",
		e.Family, tried, strings.Join(causes, "; "))
}

// Is reports whether target is ErrProviderExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrProviderExhausted
}

// Unwrap returns the per-attempt causes, followed by Cause if set.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
