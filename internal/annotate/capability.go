package annotate

import (
	"context"

	"matchlens/internal/services/gemini"
)

// Capability is the external inference boundary the annotation pool drives.
// The per-clip protocol is submit, poll until ready, infer, release; Release
// must be called on every path once Submit has succeeded.
type Capability interface {
	Submit(ctx context.Context, artifactPath string) (gemini.Handle, error)
	Poll(ctx context.Context, handle gemini.Handle) (gemini.HandleState, error)
	Infer(ctx context.Context, handle gemini.Handle, prompt string) (string, error)
	Release(ctx context.Context, handle gemini.Handle) error
}
