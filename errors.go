package engram

import "errors"

// Sentinel errors implementing the error taxonomy: callers match with
// errors.Is rather than string inspection, the pattern the pack uses for
// "not found" style failures (store.resolveMemoryID in the sibling
// rcliao-agent-memory pack member wraps fmt.Errorf rather than returning an
// opaque error, but every call site there checks err != nil the same way —
// we go one step further and give each failure class its own sentinel so
// callers can branch on it).
var (
	// ErrNotInitialized is reserved for operations invoked on a Store that
	// was never constructed through Open.
	ErrNotInitialized = errors.New("engram: store not initialized")

	// ErrEmbedderFailure wraps a failure from the configured Embedder.
	ErrEmbedderFailure = errors.New("engram: embedder failure")

	// ErrLLMFailure names the LLM summarizer failure class. No operation in
	// this package returns it: summarizer errors occur only inside
	// consolidation's Summarize phase, which skips the cluster and goes on.
	ErrLLMFailure = errors.New("engram: llm failure")

	// ErrPersistenceFailure wraps a failed save, which is returned to the
	// caller (from Close or Consolidate); no other container is tried. A
	// failed load is not an error: the store starts empty.
	ErrPersistenceFailure = errors.New("engram: persistence failure")

	// ErrConfigError is raised at construction for an unknown provider tag
	// or a missing required API key.
	ErrConfigError = errors.New("engram: config error")

	// ErrCorruptInput names the malformed-record failure class. No
	// operation in this package returns it: the persistence adapters skip
	// malformed records during load and log them.
	ErrCorruptInput = errors.New("engram: corrupt input")
)
