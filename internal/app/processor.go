package app

import "context"

// Processor is a long-running loop owned by one of the binaries.
type Processor interface {
	Run(ctx context.Context) error
}
