package engram

import (
	"context"
	"strings"
	"time"

	"github.com/kestrel-labs/engram/internal/logx"
)

// ConsolidateOptions carries the thresholds consolidate needs from
// AutoConsolidateConfig; kept separate so consolidate stays a pure
// function of its inputs per spec §4.4.
type ConsolidateOptions struct {
	MinClusterSize       int
	ClusterThreshold     float64
	DeduplicateThreshold float64
	HotDays              float64
	WarmDays             float64
	ColdDays             float64
}

// Report summarizes one consolidation pass.
type Report struct {
	Timestamp time.Time
	Duration  time.Duration

	ClusterCount int
	Merged       int
	Decayed      int
	Archived     int
	Duplicates   int

	BeforeTiers map[Tier]int
	AfterTiers  map[Tier]int
}

func tierHistogram(memories []*Memory) map[Tier]int {
	h := map[Tier]int{TierHot: 0, TierWarm: 0, TierCold: 0, TierArchive: 0}
	for _, m := range memories {
		h[m.Tier]++
	}
	return h
}

// consolidate runs the five-phase curation pass over memories and returns
// the rewritten set plus a report. Each phase is pure over its inputs; the
// logger and summarizer are the only collaborators that can fail, and a
// summarizer failure is swallowed per-cluster (phase 4 only).
func consolidate(ctx context.Context, memories []*Memory, opts ConsolidateOptions, summarizer Summarizer, now time.Time, log *logx.Logger) ([]*Memory, Report) {
	start := time.Now()
	report := Report{Timestamp: now, BeforeTiers: tierHistogram(memories)}

	report.Decayed = decayPhase(memories, opts, now)
	memories, report.Duplicates = deduplicatePhase(memories, opts.DeduplicateThreshold)
	clusters := clusterPhase(memories, opts)
	report.ClusterCount = len(clusters)

	if summarizer != nil {
		var merged int
		memories, merged = summarizePhase(ctx, memories, clusters, summarizer, now, log)
		report.Merged = merged
	}

	report.Archived = archivePhase(memories)

	report.AfterTiers = tierHistogram(memories)
	report.Duration = time.Since(start)
	return memories, report
}

// decayPhase implements spec §4.4 Phase 1. Returns the count of tier
// transitions.
func decayPhase(memories []*Memory, opts ConsolidateOptions, now time.Time) int {
	var decayed int
	for _, m := range memories {
		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		accessBoost := float64(m.AccessCount) * 0.5
		if accessBoost > 5 {
			accessBoost = 5
		}
		effectiveAge := ageDays - accessBoost
		importanceMul := 1 + 2*m.Importance
		adjustedAge := effectiveAge / importanceMul

		// Thresholds are cumulative from creation, not per-tier-entry: a
		// memory only crosses into the next tier once adjustedAge passes
		// the sum of every bucket it has already lived through. A memory
		// advances at most one tier per call; a repeated call at the same
		// instant advances it again only if adjustedAge also passes the
		// next cumulative threshold.
		var next Tier
		var threshold float64
		switch m.Tier {
		case TierHot:
			next, threshold = TierWarm, opts.HotDays
		case TierWarm:
			next, threshold = TierCold, opts.HotDays+opts.WarmDays
		case TierCold:
			next, threshold = TierArchive, opts.HotDays+opts.WarmDays+opts.ColdDays
		default:
			continue
		}
		if adjustedAge > threshold {
			m.Tier = next
			decayed++
		}
	}
	return decayed
}

// deduplicatePhase implements spec §4.4 Phase 2: pairwise scan removing the
// lower keep-score member of any pair above threshold, earlier index wins
// ties, repeated until no pair exceeds the threshold.
func deduplicatePhase(memories []*Memory, threshold float64) ([]*Memory, int) {
	removed := make(map[int]bool)
	var duplicates int

	for {
		found := false
		for i := 0; i < len(memories); i++ {
			if removed[i] {
				continue
			}
			for j := i + 1; j < len(memories); j++ {
				if removed[j] {
					continue
				}
				if cosineSimilarity(memories[i].Embedding, memories[j].Embedding) <= threshold {
					continue
				}
				// Lower keep score loses; on ties j loses, keeping the
				// earlier index i per spec's documented tie behavior.
				loser := j
				if memories[j].keepScore() > memories[i].keepScore() {
					loser = i
				}
				removed[loser] = true
				duplicates++
				found = true
				// i itself just lost this pair: stop comparing it against
				// the rest of j, or a surviving j downstream gets judged
				// against i's now-irrelevant embedding/keepScore and can be
				// wrongly removed for a similarity i no longer has any claim
				// to (spec's pairwise rule only holds between memories not
				// yet removed).
				if loser == i {
					break
				}
			}
		}
		if !found {
			break
		}
	}

	out := make([]*Memory, 0, len(memories))
	for i, m := range memories {
		if !removed[i] {
			out = append(out, m)
		}
	}
	return out, duplicates
}

// cluster is a maximal greedy group of WARM/COLD memories per spec §4.4
// Phase 3, addressed by index into the working set passed to clusterPhase.
type cluster struct {
	indices []int
}

// clusterPhase implements spec §4.4 Phase 3. HOT and ARCHIVE memories never
// participate. Candidates are visited in insertion (slice) order.
func clusterPhase(memories []*Memory, opts ConsolidateOptions) []cluster {
	eligible := make([]int, 0, len(memories))
	for i, m := range memories {
		if m.Tier == TierWarm || m.Tier == TierCold {
			eligible = append(eligible, i)
		}
	}

	assigned := make(map[int]bool)
	var clusters []cluster

	for _, ci := range eligible {
		if assigned[ci] {
			continue
		}
		members := []int{ci}
		for _, oi := range eligible {
			if oi <= ci || assigned[oi] {
				continue
			}
			if cosineSimilarity(memories[ci].Embedding, memories[oi].Embedding) >= opts.ClusterThreshold {
				members = append(members, oi)
			}
		}
		if len(members) < opts.MinClusterSize {
			continue
		}
		for _, idx := range members {
			assigned[idx] = true
		}
		clusters = append(clusters, cluster{indices: members})
	}
	return clusters
}

const summarizeSystemPrompt = "You are a memory consolidation system. Output only the consolidated summary, nothing else. Be concise but preserve all key information."
const summarizeUserPrefix = "Consolidate these related memories into a single concise summary. Preserve all important facts, decisions, and details. Remove redundancy."

// summarizePhase implements spec §4.4 Phase 4. Cluster indices reference
// the memories slice passed in (the original working set); removals are
// applied only after every cluster has been summarized, which is what
// keeps those indices valid across clusters per the spec's open question
// about Phase 4's indexing.
func summarizePhase(ctx context.Context, memories []*Memory, clusters []cluster, summarizer Summarizer, now time.Time, log *logx.Logger) ([]*Memory, int) {
	removed := make(map[int]bool)
	var merged int

	for _, c := range clusters {
		parts := make([]string, len(c.indices))
		for k, idx := range c.indices {
			parts[k] = memories[idx].Content
		}
		prompt := summarizeUserPrefix + "\n\n" + strings.Join(parts, "\n---\n")

		summary, err := summarizer.Generate(ctx, summarizeSystemPrompt, prompt)
		if err != nil {
			log.Debugf("summarize: cluster of %d skipped: %v", len(c.indices), err)
			continue
		}
		if len(strings.TrimSpace(summary)) < 10 {
			log.Debugf("summarize: cluster of %d skipped: summary too short", len(c.indices))
			continue
		}

		bestIdx := c.indices[0]
		maxImportance := memories[c.indices[0]].Importance
		for _, idx := range c.indices[1:] {
			if memories[idx].keepScore() > memories[bestIdx].keepScore() {
				bestIdx = idx
			}
			if memories[idx].Importance > maxImportance {
				maxImportance = memories[idx].Importance
			}
		}

		best := memories[bestIdx]
		best.Content = summary
		best.Tags = addTag(best.Tags, "consolidated")
		best.Importance = maxImportance
		best.ConsolidatedFrom = len(c.indices)
		best.ConsolidatedAt = now

		for _, idx := range c.indices {
			if idx != bestIdx {
				removed[idx] = true
			}
		}
		merged += len(c.indices) - 1
	}

	out := make([]*Memory, 0, len(memories))
	for i, m := range memories {
		if !removed[i] {
			out = append(out, m)
		}
	}
	return out, merged
}

const archiveTruncateLen = 200

// archivePhase implements spec §4.4 Phase 5. Returns the count changed.
func archivePhase(memories []*Memory) int {
	var archived int
	for _, m := range memories {
		if m.Tier != TierArchive {
			continue
		}
		if m.hasTag("consolidated") {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) <= archiveTruncateLen {
			continue
		}
		original := len(runes)
		m.Content = string(runes[:archiveTruncateLen]) + "..."
		m.Truncated = true
		m.OriginalLength = original
		archived++
	}
	return archived
}
