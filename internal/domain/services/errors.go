package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPriceUnavailable means no provider could price the token
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrUnsupportedChain means the chain is not in the registry or lacks a capability
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrTokenNotFound means the token is neither verified nor imported
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidAmount means the input amount is not a positive number
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAlreadyVerified rejects importing a registry token as custom
	ErrAlreadyVerified = errors.New("token is already verified")
	// ErrInvalidAddress means the address is malformed for the chain
	ErrInvalidAddress = errors.New("invalid token address")
)

// ProviderError is the outcome of one step of the price fallback chain
type ProviderError struct {
	Provider string
	// Skipped is set when the chain lacks configuration for the provider.
	// A skip is a policy decision, not a failure.
	Skipped bool
	Err     error
}

func (e ProviderError) Error() string {
	if e.Skipped {
		return e.Provider + ": skipped"
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e ProviderError) Unwrap() error { return e.Err }

// AllProvidersFailedError is returned when the fallback chain is exhausted
type AllProvidersFailedError struct {
	ChainID  int64
	Address  string
	Attempts []ProviderError
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("no price for %d:%s (%s)", e.ChainID, e.Address, strings.Join(parts, "; "))
}

func (e *AllProvidersFailedError) Unwrap() error { return ErrPriceUnavailable }

// Failed returns the attempts that reached a provider and failed
func (e *AllProvidersFailedError) Failed() []ProviderError {
	out := make([]ProviderError, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if !a.Skipped {
			out = append(out, a)
		}
	}
	return out
}
