package llm

import (
	"context"

	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// Extractor sends one unit to the extraction service and returns its raw text reply.
type Extractor interface {
	Extract(ctx context.Context, unit segment.Unit) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, unit segment.Unit) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, unit segment.Unit) (string, error) {
	return f(ctx, unit)
}
