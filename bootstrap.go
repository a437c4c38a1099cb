package engram

import (
	"context"
	"strings"
	"sync"
)

// BootstrapResult pairs each canned query's label with its recall
// results, plus the concatenated content of all four for convenience.
type BootstrapResult struct {
	ByQuery map[string][]RecallResult
	Context string
}

var bootstrapQueries = map[string]string{
	"identity":    "who am I, my name, my role",
	"priorities":  "what matters most right now, top priorities",
	"decisions":   "decisions we made, what we decided",
	"preferences": "preferences, things I like, how I like things done",
}

// Bootstrap runs spec §4.2's four canned recall queries in parallel
// (identity / priorities / decisions / preferences, limit 4, minScore
// 0.15) and returns their concatenated contents plus the raw results.
func (s *Store) Bootstrap(ctx context.Context) (BootstrapResult, error) {
	opts := RecallOptions{Limit: 4, MinScore: 0.15}

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[string][]RecallResult, len(bootstrapQueries))
	var firstErr error

	for label, query := range bootstrapQueries {
		wg.Add(1)
		go func(label, query string) {
			defer wg.Done()
			res, err := s.Recall(ctx, query, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[label] = res
		}(label, query)
	}
	wg.Wait()

	if firstErr != nil {
		return BootstrapResult{}, firstErr
	}

	var sb strings.Builder
	for _, label := range []string{"identity", "priorities", "decisions", "preferences"} {
		for _, r := range results[label] {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(r.Memory.Content)
		}
	}

	return BootstrapResult{ByQuery: results, Context: sb.String()}, nil
}
