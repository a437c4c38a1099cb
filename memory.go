// Package engram provides autonomous, self-curating memory for conversational
// agents: a single-file store of text memories with dense embeddings that
// decides on its own what to retain, how to rank it at recall time, and how
// to compact the store as it grows.
//
// The store is consumed as an embedded library by an agent process, not run
// as a server. Three subsystems do the real work: the importance classifier
// (Classify), the recall engine (Store.Recall), and the five-phase
// consolidation pipeline (Consolidate).
package engram

import "time"

// Tier is a memory's lifecycle bucket. Tiers only move forward:
// HOT -> WARM -> COLD -> ARCHIVE. The Decay phase of consolidation is the
// sole producer of forward transitions; nothing ever moves a memory back.
type Tier int

const (
	// TierHot is the freshest lifecycle bucket, assigned on creation.
	TierHot Tier = iota
	TierWarm
	TierCold
	TierArchive
)

// String renders a Tier for logs and export output.
func (t Tier) String() string {
	switch t {
	case TierHot:
		return "HOT"
	case TierWarm:
		return "WARM"
	case TierCold:
		return "COLD"
	case TierArchive:
		return "ARCHIVE"
	default:
		return "UNKNOWN"
	}
}

// ParseTier maps a tier string (as found in a persisted container) back to
// a Tier value. Unknown strings are treated as HOT so a corrupt or
// forward-incompatible tier field never panics or blocks decay.
func ParseTier(s string) Tier {
	switch s {
	case "WARM":
		return TierWarm
	case "COLD":
		return TierCold
	case "ARCHIVE":
		return TierArchive
	default:
		return TierHot
	}
}

// Memory is the single primary entity the store holds.
type Memory struct {
	ID        string
	Content   string
	Embedding []float32
	Tags      []string
	Importance float64
	Tier      Tier

	CreatedAt      time.Time
	LastAccessed   time.Time
	AccessCount    int

	// Source is an optional short provenance tag: "auto", "manual",
	// "consolidated".
	Source string

	// Reason records why the classifier (or caller) kept this memory.
	// Promoted out of the generic metadata bag because every producer
	// sets it.
	Reason string

	// Consolidation bookkeeping, set only by the Summarize and Archive
	// phases. Promoted to typed fields per spec.md's metadata design note;
	// everything else lands in Metadata.
	ConsolidatedFrom int
	ConsolidatedAt   time.Time
	Truncated        bool
	OriginalLength   int

	// Metadata is a spill map for producer-supplied extras that don't
	// warrant a typed field.
	Metadata map[string]interface{}
}

// clone returns a deep-enough copy of m so that callers (notably Recall)
// can hand back memories without letting the caller mutate the store's
// backing slice out from under a concurrent consolidation pass.
func (m Memory) clone() Memory {
	out := m
	if m.Embedding != nil {
		out.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// keepScore is the tie-break used by Deduplicate and Summarize to decide
// which of two similar memories survives: importance plus a small bonus
// per access.
func (m Memory) keepScore() float64 {
	return m.Importance + 0.1*float64(m.AccessCount)
}

// hasTag reports whether m carries the given tag.
func (m Memory) hasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// addTag appends tag if not already present, collapsing duplicates per the
// data model's "duplicates collapsed" rule for the tag set.
func addTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

// unionTags merges b into a, collapsing duplicates, preserving a's order
// and appending any new tags from b in b's order.
func unionTags(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, t := range b {
		out = addTag(out, t)
	}
	return out
}
