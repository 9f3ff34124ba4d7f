// Package providers contains image search provider clients. Providers are
// unreliable external collaborators: a client fails closed (empty result
// list) on provider-side garbage and reserves errors for transport failures.
package providers

import (
	"context"
	"fmt"

	"github.com/jonathan/course-illustrator/internal/types"
)

// Provider searches one external image source. Resolution queries providers
// in configuration order; that order defines priority on score ties.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]types.ImageCandidate, error)
}

// Error represents a provider transport failure. Resolution logs and skips
// the provider rather than failing the request.
type Error struct {
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
