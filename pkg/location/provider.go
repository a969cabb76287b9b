package location

import "context"

// Provider interface defines the methods for location providers
type Provider interface {
	// Source tags every Position produced by the provider.
	Source() Source
	// Stream delivers live readings until ctx is done, then closes the channel.
	Stream(ctx context.Context) (<-chan Position, error)
	// GetLocation performs a single-shot request.
	GetLocation(ctx context.Context) (Position, error)
	// Close releases the resources the provider holds open.
	Close() error
}
