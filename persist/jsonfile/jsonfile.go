// Package jsonfile is the default persistence adapter: the JSON fallback
// container from spec §6, `{version:1, format:"engram-trace", memories:[...]}`.
// It is always available, unlike persist/chromem which needs the
// "chromem" build tag.
package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kestrel-labs/engram/internal/logx"
	"github.com/kestrel-labs/engram/persist"
)

const containerFormat = "engram-trace"
const containerVersion = 1

type container struct {
	Version  int            `json:"version"`
	Format   string         `json:"format"`
	Memories []jsonMemory   `json:"memories"`
}

type jsonMemory struct {
	ID           string                 `json:"id"`
	Content      string                 `json:"content"`
	Embedding    []float32              `json:"embedding"`
	Tags         []string               `json:"tags"`
	Importance   float64                `json:"importance"`
	Tier         string                 `json:"tier"`
	CreatedAt    time.Time              `json:"createdAt"`
	LastAccessed time.Time              `json:"lastAccessed"`
	AccessCount  int                    `json:"accessCount"`
	Source       string                 `json:"source"`
	Metadata     map[string]interface{} `json:"metadata"`

	Temporal struct {
		Created   time.Time `json:"created"`
		Modified  time.Time `json:"modified"`
		Accessed  time.Time `json:"accessed"`
		DecayTier string    `json:"decayTier"`
	} `json:"temporal"`
	Quality struct {
		Score float64 `json:"score"`
	} `json:"quality"`
}

// Adapter implements persist.Adapter against a single JSON file on disk.
type Adapter struct {
	path string
	log  *logx.Logger
}

// New returns a JSON file adapter rooted at path. It does not touch the
// filesystem until Load or Save is called.
func New(path string, log *logx.Logger) *Adapter {
	return &Adapter{path: path, log: log}
}

// Load implements persist.Adapter. A missing, empty, or unparseable file
// yields an empty record set with a warning rather than an error, per
// spec §6.
func (a *Adapter) Load(ctx context.Context) ([]persist.Record, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		a.log.Debugf("load: %s does not exist, starting empty", a.path)
		return nil, nil
	}
	if err != nil {
		a.log.Printf("load: read %s failed, starting empty: %v", a.path, err)
		return nil, nil
	}
	if len(data) == 0 {
		a.log.Debugf("load: %s is empty, starting empty", a.path)
		return nil, nil
	}

	var c container
	if err := json.Unmarshal(data, &c); err != nil {
		a.log.Printf("load: parse %s failed, starting empty: %v", a.path, err)
		return nil, nil
	}

	records := make([]persist.Record, 0, len(c.Memories))
	for i, jm := range c.Memories {
		if jm.ID == "" || jm.Content == "" || len(jm.Embedding) == 0 {
			a.log.Debugf("load: skipping corrupt record #%d", i)
			continue
		}
		records = append(records, jsonMemoryToRecord(jm))
	}
	return records, nil
}

// Save implements persist.Adapter, writing the full container atomically
// (write to a temp file, then rename) so a crash mid-write never leaves a
// half-written container behind.
func (a *Adapter) Save(ctx context.Context, records []persist.Record) error {
	c := container{Version: containerVersion, Format: containerFormat}
	c.Memories = make([]jsonMemory, len(records))
	for i, r := range records {
		c.Memories[i] = recordToJSONMemory(r)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}

// Close is a no-op; the adapter holds no open handles between calls.
func (a *Adapter) Close() error { return nil }

func jsonMemoryToRecord(jm jsonMemory) persist.Record {
	meta := make(map[string]interface{}, len(jm.Metadata)+6)
	for k, v := range jm.Metadata {
		meta[k] = v
	}
	meta["tags"] = jm.Tags
	meta["importance"] = jm.Importance
	meta["tier"] = jm.Tier
	meta["createdAt"] = jm.CreatedAt
	meta["lastAccessed"] = jm.LastAccessed
	meta["accessCount"] = jm.AccessCount
	meta["source"] = jm.Source

	return persist.Record{
		ID:             jm.ID,
		Content:        jm.Content,
		Embedding:      jm.Embedding,
		CustomMetadata: meta,
		Temporal: persist.Temporal{
			Created: jm.CreatedAt, Modified: jm.LastAccessed, Accessed: jm.LastAccessed,
			DecayTier: jm.Tier,
		},
		Quality: persist.Quality{Score: jm.Importance},
	}
}

func recordToJSONMemory(r persist.Record) jsonMemory {
	jm := jsonMemory{ID: r.ID, Content: r.Content, Embedding: r.Embedding}

	meta := make(map[string]interface{}, len(r.CustomMetadata))
	for k, v := range r.CustomMetadata {
		meta[k] = v
	}
	if v, ok := meta["tags"].([]string); ok {
		jm.Tags = v
		delete(meta, "tags")
	}
	if v, ok := meta["importance"].(float64); ok {
		jm.Importance = v
		delete(meta, "importance")
	}
	if v, ok := meta["tier"].(string); ok {
		jm.Tier = v
		delete(meta, "tier")
	}
	if v, ok := meta["createdAt"].(time.Time); ok {
		jm.CreatedAt = v
		delete(meta, "createdAt")
	}
	if v, ok := meta["lastAccessed"].(time.Time); ok {
		jm.LastAccessed = v
		delete(meta, "lastAccessed")
	}
	if v, ok := meta["accessCount"].(int); ok {
		jm.AccessCount = v
		delete(meta, "accessCount")
	}
	if v, ok := meta["source"].(string); ok {
		jm.Source = v
		delete(meta, "source")
	}
	jm.Metadata = meta

	jm.Temporal.Created = jm.CreatedAt
	jm.Temporal.Modified = jm.LastAccessed
	jm.Temporal.Accessed = jm.LastAccessed
	jm.Temporal.DecayTier = jm.Tier
	jm.Quality.Score = jm.Importance

	return jm
}
