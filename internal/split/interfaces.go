package split

import "context"

// Splitter defines the interface for the chunk splitting service.
type Splitter interface {
	// Split cuts path into an ordered sequence of parts no larger than maxBytes.
	Split(ctx context.Context, path string, maxBytes int64) ([]string, error)
}

// CommandRunner runs an external tool and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
