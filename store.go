package engram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-labs/engram/embedder/cache"
	"github.com/kestrel-labs/engram/embedder/local"
	"github.com/kestrel-labs/engram/embedder/remote"
	"github.com/kestrel-labs/engram/internal/logx"
	"github.com/kestrel-labs/engram/llm/anthropic"
	llmlocal "github.com/kestrel-labs/engram/llm/local"
	"github.com/kestrel-labs/engram/llm/openai"
	"github.com/kestrel-labs/engram/persist"
	"github.com/kestrel-labs/engram/persist/jsonfile"
)

// Store is the facade: the owned handle spec §9's design notes call for,
// replacing an ambient mutable global with background timers. A single
// sync.Mutex serializes every mutation to the memory sequence, the dirty
// flag, and the write/consolidation counters, per spec §5's concurrency
// model — external calls (embed, summarize, persist) happen outside the
// lock, everything else happens inside it.
type Store struct {
	mu sync.Mutex

	cfg        Config
	embedder   Embedder
	summarizer Summarizer
	adapter    persist.Adapter
	log        *logx.Logger

	memories          []*Memory
	dim               int
	dirty             bool
	writesSinceConsolidation int
	lastConsolidation time.Time
	consolidating     bool

	timerStop chan struct{}
	timerDone chan struct{}
}

// Open builds a Store's collaborators from cfg, loads any existing
// container at cfg.File, and arms the auto-consolidation timer. This
// folds spec §4.2's separate init step into construction, the way
// database/sql.Open and bbolt.Open do.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logx.New("ENGRAM", cfg.Debug)
	return openWithAdapter(ctx, cfg, jsonfile.New(cfg.File, log), log)
}

// openWithAdapter is Open's shared body, parameterized over the
// persistence container so build-tag-gated constructors (see
// store_chromem.go) can swap in a different Adapter without duplicating
// embedder/summarizer wiring and load bookkeeping.
func openWithAdapter(ctx context.Context, cfg Config, adapter persist.Adapter, log *logx.Logger) (*Store, error) {
	embedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigError, err)
	}

	var summarizer Summarizer
	if cfg.LLM.Provider != "" {
		summarizer = newSummarizer(cfg.LLM)
	}

	s := &Store{
		cfg: cfg, embedder: embedder, summarizer: summarizer, adapter: adapter, log: log,
		lastConsolidation: time.Now(),
	}

	records, err := adapter.Load(ctx)
	if err != nil {
		log.Printf("load failed, starting empty: %v", err)
	}
	for _, r := range records {
		s.memories = append(s.memories, recordToMemory(r))
	}
	if len(s.memories) > 0 {
		s.dim = len(s.memories[0].Embedding)
	}

	s.armTimer()
	return s, nil
}

// remoteEmbedCacheSize bounds the number of distinct texts a network-backed
// embedder keeps pre-computed vectors for. Local, in-process embedders skip
// the cache: they're cheaper than the cache's own lookup overhead.
const remoteEmbedCacheSize = 4096

func newEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "local":
		return local.New(), nil
	case "ollama":
		return cache.New(remote.NewOllama(cfg.URL, cfg.Model, 0), remoteEmbedCacheSize)
	case "openai":
		return cache.New(remote.NewOpenAI(cfg.URL, cfg.APIKey, cfg.Model, 0), remoteEmbedCacheSize)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func newSummarizer(cfg LLMConfig) Summarizer {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	case "openai":
		return openai.New(cfg.URL, cfg.APIKey, cfg.Model, cfg.MaxTokens)
	default:
		return llmlocal.New(cfg.URL, cfg.Model)
	}
}

// Close stops the auto-consolidation timer and persists if dirty.
func (s *Store) Close(ctx context.Context) error {
	s.disarmTimer()

	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()

	if dirty {
		if err := s.save(ctx); err != nil {
			return err
		}
	}
	return s.adapter.Close()
}

func (s *Store) save(ctx context.Context) error {
	s.mu.Lock()
	records := make([]persist.Record, len(s.memories))
	for i, m := range s.memories {
		records[i] = memoryToRecord(*m)
	}
	s.mu.Unlock()

	if err := s.adapter.Save(ctx, records); err != nil {
		s.log.Printf("save failed: %v", err)
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// RememberOptions parameterizes Remember.
type RememberOptions struct {
	Importance float64
	Tags       []string
	Source     string
}

// Remember embeds content and appends a HOT memory unconditionally: no
// dedup check, no classifier. Callers opt into the classifier via
// Process.
func (s *Store) Remember(ctx context.Context, content string, opts RememberOptions) (Memory, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return Memory{}, fmt.Errorf("%w: %v", ErrEmbedderFailure, err)
	}

	importance := opts.Importance
	if importance == 0 {
		importance = 0.5
	}
	source := opts.Source
	if source == "" {
		source = "manual"
	}

	now := time.Now()
	m := &Memory{
		ID: uuid.New().String(), Content: content, Embedding: vec,
		Tags: append([]string(nil), opts.Tags...), Importance: importance, Tier: TierHot,
		CreatedAt: now, LastAccessed: now, Source: source,
	}

	return s.appendAndMaybeConsolidate(ctx, m)
}

// Process builds the combined user/assistant representation, classifies
// it, and stores it only on a positive verdict, per spec §4.2.
func (s *Store) Process(ctx context.Context, user, assistant string) (Memory, Verdict, error) {
	truncatedAssistant := assistant
	if runes := []rune(assistant); len(runes) > 500 {
		truncatedAssistant = string(runes[:500]) + " (…)"
	}
	combined := fmt.Sprintf("User: %s\nAssistant: %s", user, truncatedAssistant)

	vec, err := s.embedder.Embed(ctx, combined)
	if err != nil {
		return Memory{}, Verdict{}, fmt.Errorf("%w: %v", ErrEmbedderFailure, err)
	}

	s.mu.Lock()
	existing := make([][]float32, 0, len(s.memories))
	for _, m := range s.memories {
		existing = append(existing, m.Embedding)
	}
	s.mu.Unlock()

	verdict := Classify(user, assistant, vec, existing, s.cfg.DeduplicateThreshold)
	verdict = ApplyMinImportance(verdict, s.cfg.AutoRemember.MinImportance)

	if !verdict.ShouldRemember {
		return Memory{}, verdict, nil
	}

	now := time.Now()
	tags := unionTags(verdict.SuggestedTags, s.cfg.AutoRemember.DefaultTags)
	m := &Memory{
		ID: uuid.New().String(), Content: combined, Embedding: vec,
		Tags: tags, Importance: verdict.Importance, Tier: TierHot,
		CreatedAt: now, LastAccessed: now, Source: "auto", Reason: verdict.Reason,
	}

	stored, err := s.appendAndMaybeConsolidate(ctx, m)
	return stored, verdict, err
}

func (s *Store) appendAndMaybeConsolidate(ctx context.Context, m *Memory) (Memory, error) {
	s.mu.Lock()
	if s.dim == 0 {
		s.dim = len(m.Embedding)
	}
	s.memories = append(s.memories, m)
	s.dirty = true
	s.writesSinceConsolidation++
	overflow := len(s.memories) > s.cfg.MaxMemories
	everyN := s.cfg.AutoConsolidate.Enabled && s.cfg.AutoConsolidate.EveryNWrites > 0 &&
		s.writesSinceConsolidation >= s.cfg.AutoConsolidate.EveryNWrites
	out := m.clone()
	s.mu.Unlock()

	if overflow || everyN {
		if _, err := s.Consolidate(ctx); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Recall implements spec §4.3 over the live memory set.
func (s *Store) Recall(ctx context.Context, query string, opts RecallOptions) ([]RecallResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedderFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	results := recall(s.memories, vec, opts, time.Now())
	if len(results) > 0 {
		s.dirty = true
	}
	return results, nil
}

// Forget deletes every memory whose cosine similarity to query exceeds
// threshold and returns the count removed.
func (s *Store) Forget(ctx context.Context, query string, threshold float64) (int, error) {
	if threshold == 0 {
		threshold = 0.8
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmbedderFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*Memory, 0, len(s.memories))
	removed := 0
	for _, m := range s.memories {
		if cosineSimilarity(vec, m.Embedding) > threshold {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	s.memories = kept
	if removed > 0 {
		s.dirty = true
	}
	return removed, nil
}

// Consolidate runs the five-phase pipeline over the live memory set and
// persists immediately afterward.
func (s *Store) Consolidate(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.consolidating {
		s.mu.Unlock()
		return Report{}, nil
	}
	s.consolidating = true
	// consolidate's phases are pure over their inputs (spec §4.4): hand
	// them private clones so decay/dedup/cluster/summarize/archive never
	// race a concurrent Recall's access-count side effect on the same
	// Memory pointers.
	working := make([]*Memory, len(s.memories))
	for i, m := range s.memories {
		clone := m.clone()
		working[i] = &clone
	}
	opts := ConsolidateOptions{
		MinClusterSize:       s.cfg.AutoConsolidate.MinClusterSize,
		ClusterThreshold:     s.cfg.AutoConsolidate.ClusterThreshold,
		DeduplicateThreshold: s.cfg.DeduplicateThreshold,
		HotDays:              s.cfg.AutoConsolidate.HotDays,
		WarmDays:             s.cfg.AutoConsolidate.WarmDays,
		ColdDays:             s.cfg.AutoConsolidate.ColdDays,
	}
	s.mu.Unlock()

	result, report := consolidate(ctx, working, opts, s.summarizer, time.Now(), s.log)

	s.mu.Lock()
	s.memories = result
	s.dirty = true
	s.writesSinceConsolidation = 0
	s.lastConsolidation = time.Now()
	s.consolidating = false
	s.mu.Unlock()

	if err := s.save(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// Stats reports the store's current lifecycle counters.
type Stats struct {
	TierCounts        map[Tier]int
	Total             int
	OldestCreatedAt   time.Time
	NewestCreatedAt   time.Time
	LastConsolidation time.Time
	WritesSinceConsolidation int
}

// Stats implements spec §4.2's stats operation.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{TierCounts: tierHistogram(s.memories), Total: len(s.memories),
		LastConsolidation: s.lastConsolidation, WritesSinceConsolidation: s.writesSinceConsolidation}
	for i, m := range s.memories {
		if i == 0 || m.CreatedAt.Before(st.OldestCreatedAt) {
			st.OldestCreatedAt = m.CreatedAt
		}
		if i == 0 || m.CreatedAt.After(st.NewestCreatedAt) {
			st.NewestCreatedAt = m.CreatedAt
		}
	}
	return st
}

// ExportedMemory is a memory with its embedding replaced by its length,
// per spec §4.2's export operation.
type ExportedMemory struct {
	Memory          Memory
	EmbeddingLength int
}

// Export serializes every memory without its embedding vector.
func (s *Store) Export() []ExportedMemory {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ExportedMemory, len(s.memories))
	for i, m := range s.memories {
		clone := m.clone()
		length := len(clone.Embedding)
		clone.Embedding = nil
		out[i] = ExportedMemory{Memory: clone, EmbeddingLength: length}
	}
	return out
}

func (s *Store) armTimer() {
	if !s.cfg.AutoConsolidate.Enabled || s.cfg.AutoConsolidate.Interval == 0 {
		return
	}
	s.timerStop = make(chan struct{})
	s.timerDone = make(chan struct{})

	go func() {
		defer close(s.timerDone)
		ticker := time.NewTicker(s.cfg.AutoConsolidate.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.timerStop:
				return
			case <-ticker.C:
				if _, err := s.Consolidate(context.Background()); err != nil {
					s.log.Debugf("auto-consolidate tick failed: %v", err)
				}
			}
		}
	}()
}

func (s *Store) disarmTimer() {
	if s.timerStop == nil {
		return
	}
	close(s.timerStop)
	<-s.timerDone
	s.timerStop, s.timerDone = nil, nil
}

func memoryToRecord(m Memory) persist.Record {
	meta := make(map[string]interface{}, len(m.Metadata)+4)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	if m.Reason != "" {
		meta["reason"] = m.Reason
	}
	if m.ConsolidatedFrom > 0 {
		meta["consolidatedFrom"] = m.ConsolidatedFrom
		meta["consolidatedAt"] = m.ConsolidatedAt
	}
	if m.Truncated {
		meta["truncated"] = true
		meta["originalLength"] = m.OriginalLength
	}
	meta["tags"] = m.Tags
	meta["importance"] = m.Importance
	meta["tier"] = m.Tier.String()
	meta["createdAt"] = m.CreatedAt
	meta["lastAccessed"] = m.LastAccessed
	meta["accessCount"] = m.AccessCount
	meta["source"] = m.Source

	return persist.Record{
		ID: m.ID, Content: m.Content, Embedding: m.Embedding,
		CustomMetadata: meta,
		Temporal: persist.Temporal{
			Created: m.CreatedAt, Modified: m.LastAccessed, Accessed: m.LastAccessed,
			DecayTier: m.Tier.String(),
		},
		Quality: persist.Quality{Score: m.Importance},
	}
}

func recordToMemory(r persist.Record) *Memory {
	m := &Memory{ID: r.ID, Content: r.Content, Embedding: r.Embedding, Metadata: map[string]interface{}{}}

	meta := r.CustomMetadata
	if v, ok := meta["tags"].([]string); ok {
		m.Tags = v
	}
	m.Importance = r.Quality.Score
	if v, ok := meta["importance"].(float64); ok {
		m.Importance = v
	}
	m.Tier = ParseTier(r.Temporal.DecayTier)
	if v, ok := meta["tier"].(string); ok {
		m.Tier = ParseTier(v)
	}
	m.CreatedAt = r.Temporal.Created
	if v, ok := meta["createdAt"].(time.Time); ok {
		m.CreatedAt = v
	}
	m.LastAccessed = r.Temporal.Accessed
	if v, ok := meta["lastAccessed"].(time.Time); ok {
		m.LastAccessed = v
	}
	if v, ok := meta["accessCount"].(int); ok {
		m.AccessCount = v
	}
	if v, ok := meta["source"].(string); ok {
		m.Source = v
	}
	if v, ok := meta["reason"].(string); ok {
		m.Reason = v
	}
	if v, ok := meta["consolidatedFrom"].(int); ok {
		m.ConsolidatedFrom = v
	}
	if v, ok := meta["consolidatedAt"].(time.Time); ok {
		m.ConsolidatedAt = v
	}
	if v, ok := meta["truncated"].(bool); ok {
		m.Truncated = v
	}
	if v, ok := meta["originalLength"].(int); ok {
		m.OriginalLength = v
	}

	for k, v := range meta {
		switch k {
		case "tags", "importance", "tier", "createdAt", "lastAccessed", "accessCount", "source",
			"reason", "consolidatedFrom", "consolidatedAt", "truncated", "originalLength":
			continue
		default:
			m.Metadata[k] = v
		}
	}
	return m
}
