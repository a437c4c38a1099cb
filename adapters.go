package engram

import "context"

// Embedder is the store's external embedding collaborator: an opaque
// text -> vector function per spec §6. The store treats D as whatever the
// first call returns and assumes every later call preserves it.
//
// Concrete providers (embedder/local, embedder/remote) implement this
// interface structurally; they do not import this package, which is what
// keeps the dependency graph acyclic.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer is the store's external LLM collaborator: an opaque
// prompt -> text function per spec §6, used only by consolidation's
// Summarize phase. A nil Summarizer disables that phase only.
type Summarizer interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}
