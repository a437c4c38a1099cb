package engram

import (
	"testing"
	"time"
)

func TestRecallEmptyStore(t *testing.T) {
	got := recall(nil, []float32{1, 0, 0}, DefaultRecallOptions(), time.Now())
	if len(got) != 0 {
		t.Errorf("expected no results from empty store, got %d", len(got))
	}
}

func TestRecallTagFilterAndOrder(t *testing.T) {
	now := time.Now()
	q := []float32{1, 0, 0}

	memories := []*Memory{
		{ID: "a1", Embedding: []float32{1, 0, 0}, Tier: TierWarm, Importance: 0.5, Tags: []string{"A"}, CreatedAt: now, LastAccessed: now},
		{ID: "b1", Embedding: []float32{1, 0, 0}, Tier: TierWarm, Importance: 0.5, Tags: []string{"B"}, CreatedAt: now, LastAccessed: now},
		{ID: "a2", Embedding: []float32{1, 0, 0}, Tier: TierWarm, Importance: 0.5, Tags: []string{"A"}, CreatedAt: now, LastAccessed: now},
	}

	opts := DefaultRecallOptions()
	opts.Tags = []string{"A"}
	got := recall(memories, q, opts, now)

	if len(got) != 2 {
		t.Fatalf("expected 2 results tagged A, got %d", len(got))
	}
	if got[0].Memory.ID != "a1" || got[1].Memory.ID != "a2" {
		t.Errorf("expected insertion-order tie-break a1,a2, got %s,%s", got[0].Memory.ID, got[1].Memory.ID)
	}
	if memories[0].AccessCount != 1 || memories[2].AccessCount != 1 {
		t.Errorf("expected access-count side effect on returned memories")
	}
	if memories[1].AccessCount != 0 {
		t.Errorf("expected untouched access count on filtered-out memory")
	}
}

func TestRecallMinScoreFilter(t *testing.T) {
	now := time.Now()
	memories := []*Memory{
		{ID: "far", Embedding: []float32{0, 1, 0}, Tier: TierWarm, CreatedAt: now, LastAccessed: now},
	}
	opts := DefaultRecallOptions()
	opts.MinScore = 0.5
	got := recall(memories, []float32{1, 0, 0}, opts, now)
	if len(got) != 0 {
		t.Errorf("expected orthogonal candidate filtered by minScore, got %d results", len(got))
	}
}

// TestRecallBareOptionsLiteralKeepsDocumentedDefaults guards against a
// caller who builds RecallOptions directly (e.g. RecallOptions{Tags: [...]})
// instead of starting from DefaultRecallOptions: Go's zero value for that
// struct must still behave like minScore=0.15 and decayBoost=true, per spec
// §4.3.
func TestRecallBareOptionsLiteralKeepsDocumentedDefaults(t *testing.T) {
	now := time.Now()
	memories := []*Memory{
		{ID: "cold", Embedding: []float32{1, 0}, Tier: TierCold, Tags: []string{"x"}, CreatedAt: now, LastAccessed: now},
		{ID: "hot", Embedding: []float32{1, 0}, Tier: TierHot, Tags: []string{"x"}, CreatedAt: now, LastAccessed: now},
		{ID: "far", Embedding: []float32{0, 1, 0}, Tier: TierHot, Tags: []string{"x"}, CreatedAt: now, LastAccessed: now},
	}

	got := recall(memories, []float32{1, 0}, RecallOptions{Tags: []string{"x"}}, now)

	if len(got) != 2 {
		t.Fatalf("expected minScore=0.15 default to filter the orthogonal candidate, got %d results", len(got))
	}
	if got[0].Memory.ID != "hot" {
		t.Errorf("expected decayBoost default on to rank HOT above COLD, got %+v", got)
	}
}

func TestRecallTierBoostOrdering(t *testing.T) {
	now := time.Now()
	memories := []*Memory{
		{ID: "cold", Embedding: []float32{1, 0}, Tier: TierCold, CreatedAt: now, LastAccessed: now},
		{ID: "hot", Embedding: []float32{1, 0}, Tier: TierHot, CreatedAt: now, LastAccessed: now},
	}
	got := recall(memories, []float32{1, 0}, DefaultRecallOptions(), now)
	if len(got) != 2 || got[0].Memory.ID != "hot" {
		t.Fatalf("expected HOT tier boost to rank above COLD for equal similarity, got %+v", got)
	}
}
