package location

import "context"

// Provider interface defines the methods for location providers
type Provider interface {
	// ReadFixes returns the fixes that arrived since the previous call.
	ReadFixes(ctx context.Context) ([]Fix, error)
	Close() error
}
