package engram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kestrel-labs/engram/internal/logx"
)

func testLogger() *logx.Logger { return logx.New("TEST", false) }

func testConsolidateOptions() ConsolidateOptions {
	return ConsolidateOptions{
		MinClusterSize:       3,
		ClusterThreshold:     0.78,
		DeduplicateThreshold: 0.92,
		HotDays:              7,
		WarmDays:             30,
		ColdDays:             365,
	}
}

func TestConsolidateDecayAdvancesOneTier(t *testing.T) {
	now := time.Now()
	m := &Memory{
		ID: "m1", Embedding: []float32{1, 0},
		CreatedAt: now.Add(-40 * 24 * time.Hour), LastAccessed: now,
		AccessCount: 0, Importance: 0.1, Tier: TierHot,
	}
	log := testLogger()
	result, report := consolidate(context.Background(), []*Memory{m}, testConsolidateOptions(), nil, now, log)

	if len(result) != 1 {
		t.Fatalf("expected memory to survive decay, got %d", len(result))
	}
	if result[0].Tier != TierWarm {
		t.Errorf("expected single-tier advance to WARM, got %s", result[0].Tier)
	}
	if report.Decayed != 1 {
		t.Errorf("expected decayed count 1, got %d", report.Decayed)
	}

	result2, report2 := consolidate(context.Background(), result, testConsolidateOptions(), nil, now, log)
	if result2[0].Tier != TierWarm {
		t.Errorf("expected no further advance within the same pass-equivalent instant, got %s", result2[0].Tier)
	}
	if report2.Decayed != 0 {
		t.Errorf("expected second pass to be a no-op, got decayed=%d", report2.Decayed)
	}
}

func TestConsolidateArchiveTruncation(t *testing.T) {
	now := time.Now()
	content := strings.Repeat("x", 1000)
	m := &Memory{
		ID: "m1", Embedding: []float32{1, 0}, Tier: TierArchive,
		Content: content, CreatedAt: now, LastAccessed: now,
	}
	log := testLogger()
	result, report := consolidate(context.Background(), []*Memory{m}, testConsolidateOptions(), nil, now, log)

	if len(result[0].Content) != 203 {
		t.Errorf("expected truncated content length 203, got %d", len(result[0].Content))
	}
	if !result[0].Truncated {
		t.Errorf("expected Truncated=true")
	}
	if result[0].OriginalLength != 1000 {
		t.Errorf("expected OriginalLength=1000, got %d", result[0].OriginalLength)
	}
	if report.Archived != 1 {
		t.Errorf("expected archived count 1, got %d", report.Archived)
	}
}

func TestConsolidateArchiveSkipsConsolidated(t *testing.T) {
	now := time.Now()
	m := &Memory{
		ID: "m1", Embedding: []float32{1, 0}, Tier: TierArchive,
		Content: strings.Repeat("x", 1000), Tags: []string{"consolidated"},
		CreatedAt: now, LastAccessed: now,
	}
	_, report := consolidate(context.Background(), []*Memory{m}, testConsolidateOptions(), nil, now, testLogger())
	if report.Archived != 0 {
		t.Errorf("expected consolidated memories exempt from truncation, got archived=%d", report.Archived)
	}
}

func TestConsolidateDeduplicate(t *testing.T) {
	now := time.Now()
	a := &Memory{ID: "a", Embedding: []float32{1, 0, 0}, Importance: 0.9, Tier: TierWarm, CreatedAt: now, LastAccessed: now}
	b := &Memory{ID: "b", Embedding: []float32{1, 0, 0}, Importance: 0.2, Tier: TierWarm, CreatedAt: now, LastAccessed: now}

	result, report := consolidate(context.Background(), []*Memory{a, b}, testConsolidateOptions(), nil, now, testLogger())
	if len(result) != 1 {
		t.Fatalf("expected duplicate removed, got %d memories", len(result))
	}
	if result[0].ID != "a" {
		t.Errorf("expected higher keep-score memory to survive, got %s", result[0].ID)
	}
	if report.Duplicates != 1 {
		t.Errorf("expected duplicates count 1, got %d", report.Duplicates)
	}
}

// TestConsolidateDeduplicateTransitivePairNotBothRemoved covers a case the
// 2-memory test above can't: A is a near-duplicate of both B and C, but B
// and C are not near-duplicates of each other (cos(B,C) well under
// threshold). A should lose to the higher keep-score B, but that must not
// drag C down with it just because C was still being compared against A's
// stale embedding/keepScore after A had already lost.
func TestConsolidateDeduplicateTransitivePairNotBothRemoved(t *testing.T) {
	now := time.Now()
	a := &Memory{ID: "a", Embedding: []float32{1, 0}, Importance: 5, Tier: TierWarm, CreatedAt: now, LastAccessed: now}
	b := &Memory{ID: "b", Embedding: []float32{0.95, 0.3122}, Importance: 10, Tier: TierWarm, CreatedAt: now, LastAccessed: now}
	c := &Memory{ID: "c", Embedding: []float32{0.95, -0.3122}, Importance: 3, Tier: TierWarm, CreatedAt: now, LastAccessed: now}

	opts := testConsolidateOptions()
	opts.DeduplicateThreshold = 0.92

	result, report := consolidate(context.Background(), []*Memory{a, b, c}, opts, nil, now, testLogger())
	if report.Duplicates != 1 {
		t.Fatalf("expected exactly one duplicate pair resolved, got %d", report.Duplicates)
	}
	if len(result) != 2 {
		t.Fatalf("expected B and C to both survive, got %d memories", len(result))
	}
	ids := map[string]bool{}
	for _, m := range result {
		ids[m.ID] = true
	}
	if !ids["b"] || !ids["c"] {
		t.Errorf("expected survivors {b, c}, got %v", ids)
	}
	if ids["a"] {
		t.Errorf("expected a (lower keep score, duplicate of b) removed")
	}
}

func TestConsolidateClusterBelowMinSizeNotMerged(t *testing.T) {
	now := time.Now()
	a := &Memory{ID: "a", Embedding: []float32{1, 0}, Tier: TierWarm, Content: "alpha", CreatedAt: now, LastAccessed: now}
	b := &Memory{ID: "b", Embedding: []float32{0.85, 0.5268}, Tier: TierWarm, Content: "beta", CreatedAt: now, LastAccessed: now}

	result, report := consolidate(context.Background(), []*Memory{a, b}, testConsolidateOptions(), &fakeSummarizer{}, now, testLogger())
	if report.Merged != 0 {
		t.Errorf("expected no merges below minClusterSize, got %d", report.Merged)
	}
	if len(result) != 2 {
		t.Errorf("expected both memories to survive unmerged, got %d", len(result))
	}
}

func TestConsolidateNoSummarizerMergesNothing(t *testing.T) {
	now := time.Now()
	memories := []*Memory{
		{ID: "a", Embedding: []float32{1, 0}, Tier: TierWarm, Content: "a", CreatedAt: now, LastAccessed: now},
		{ID: "b", Embedding: []float32{1, 0}, Tier: TierWarm, Content: "b", CreatedAt: now, LastAccessed: now},
		{ID: "c", Embedding: []float32{1, 0}, Tier: TierWarm, Content: "c", CreatedAt: now, LastAccessed: now},
	}
	result, report := consolidate(context.Background(), memories, testConsolidateOptions(), nil, now, testLogger())
	if report.Merged != 0 {
		t.Errorf("expected Merged=0 without a summarizer, got %d", report.Merged)
	}
	// the three identical embeddings are still collapsed by the dedup
	// phase, which runs whether or not a summarizer is configured.
	if len(result) != 1 {
		t.Errorf("expected dedup to collapse identical vectors regardless of summarizer, got %d", len(result))
	}
}

type fakeSummarizer struct {
	response string
	err      error
}

func (f *fakeSummarizer) Generate(ctx context.Context, system, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.response != "" {
		return f.response, nil
	}
	return "a consolidated summary of the cluster", nil
}
