// Package persist defines the on-disk container contract for the store:
// a small, storage-agnostic Record shape plus an Adapter interface with a
// JSON fallback (persist/jsonfile) and an optional richer container built
// on chromem-go's persistent gob store (persist/chromem, build tag
// "chromem"). Record deliberately does not import the root engram package
// so both sides of the boundary stay leaf packages; the root package's
// store.go owns the conversion to and from engram.Memory.
package persist

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks an adapter-level failure to open or reach its
// backing store (distinct from a single corrupt record).
var ErrUnavailable = errors.New("persist: adapter unavailable")

// Temporal mirrors the timestamp fields that live inside CustomMetadata, as
// top-level fields, per the container format's redundancy convention (spec
// §6: "top-level fields temporal.created/modified/accessed/decayTier...
// mirror the custom-metadata values").
type Temporal struct {
	Created  time.Time
	Modified time.Time
	Accessed time.Time
	DecayTier string
}

// Quality mirrors the importance value as a top-level field.
type Quality struct {
	Score float64
}

// Record is one persisted memory. CustomMetadata carries the
// authoritative values (tags, importance, tier, createdAt, lastAccessed,
// accessCount, source, plus any caller-supplied extras); Temporal and
// Quality are redundant top-level mirrors kept in sync at save time. Load
// always prefers CustomMetadata when the two disagree.
type Record struct {
	ID        string
	Content   string
	Embedding []float32

	CustomMetadata map[string]interface{}
	Temporal       Temporal
	Quality        Quality
}

// Adapter is the persistence contract the store depends on. A failed Load
// is never fatal to the caller: store.go logs it and starts with an empty
// store. A failed Save is returned to the caller wrapped in
// ErrPersistenceFailure; no other adapter is tried.
type Adapter interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
	Close() error
}
