package engram

import (
	"sort"
	"time"
)

// RecallOptions parameterizes Store.Recall per spec §4.3. The zero value of
// every field is a usable default: Limit/MinScore fall back to 8/0.15 when
// unset, and NoDecayBoost is opt-out rather than opt-in so a bare
// RecallOptions{Tags: [...]} literal still gets the tier boost spec §4.3
// documents as the default.
type RecallOptions struct {
	Limit        int
	MinScore     float64
	Tiers        []Tier
	Tags         []string
	NoDecayBoost bool
}

// DefaultRecallOptions returns the recall defaults: limit 8, minScore 0.15,
// no tier/tag filter, decay boost on.
func DefaultRecallOptions() RecallOptions {
	return RecallOptions{Limit: 8, MinScore: 0.15}
}

// RecallResult pairs a returned memory with its final (possibly >1) score.
type RecallResult struct {
	Memory Memory
	Score  float64
}

// tierBoost is the multiplicative tier factor from spec §4.3, applied only
// when decayBoost is set.
func tierBoost(t Tier) float64 {
	switch t {
	case TierHot:
		return 1.10
	case TierWarm:
		return 1.00
	case TierCold:
		return 0.95
	case TierArchive:
		return 0.85
	default:
		return 1.00
	}
}

func matchesTierFilter(t Tier, tiers []Tier) bool {
	if len(tiers) == 0 {
		return true
	}
	for _, want := range tiers {
		if t == want {
			return true
		}
	}
	return false
}

func matchesTagFilter(m *Memory, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		if m.hasTag(want) {
			return true
		}
	}
	return false
}

// recall implements spec §4.3's algorithm over the store's live memory
// slice. It mutates accessCount/lastAccessed in place on every memory it
// returns, matching the "side effect" step of the spec. Callers must hold
// the store's lock.
func recall(memories []*Memory, queryEmbedding []float32, opts RecallOptions, now time.Time) []RecallResult {
	if opts.Limit <= 0 {
		opts.Limit = 8
	}
	if opts.MinScore <= 0 {
		opts.MinScore = 0.15
	}

	type scored struct {
		idx   int
		m     *Memory
		score float64
	}

	candidates := make([]scored, 0, len(memories))
	for i, m := range memories {
		if !matchesTierFilter(m.Tier, opts.Tiers) {
			continue
		}
		if !matchesTagFilter(m, opts.Tags) {
			continue
		}
		score := cosineSimilarity(queryEmbedding, m.Embedding)
		if !opts.NoDecayBoost {
			score *= tierBoost(m.Tier)
		}
		score *= 1 + m.Importance*0.2
		if score < opts.MinScore {
			continue
		}
		candidates = append(candidates, scored{idx: i, m: m, score: score})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	if len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	out := make([]RecallResult, len(candidates))
	for i, c := range candidates {
		c.m.AccessCount++
		c.m.LastAccessed = now
		out[i] = RecallResult{Memory: c.m.clone(), Score: c.score}
	}
	return out
}
