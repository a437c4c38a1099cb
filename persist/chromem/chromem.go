//go:build chromem

// Package chromem is the optional richer persistence container: a
// chromem-go persistent (gob-encoded) collection standing in for the
// "engram" neural-memory container spec §6 describes. Build with the
// "chromem" tag to link it in; the default build uses persist/jsonfile.
//
// Grounded on becomeliminal-nim-go-sdk's memory/store/chromem package: the
// same getOrCreateCollection/AddDocument/QueryEmbedding shape, and the same
// isInsufficientDocsError retry loop for querying a collection smaller than
// the requested result count.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/kestrel-labs/engram/internal/logx"
	"github.com/kestrel-labs/engram/persist"
)

const collectionName = "engram"

// Adapter implements persist.Adapter on top of a chromem-go persistent DB.
type Adapter struct {
	db   *chromemgo.DB
	log  *logx.Logger
	path string
}

// New opens (or creates) a persistent chromem-go database rooted at path.
func New(path string, log *logx.Logger) (*Adapter, error) {
	db, err := chromemgo.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Adapter{db: db, log: log, path: path}, nil
}

func (a *Adapter) collection() (*chromemgo.Collection, error) {
	col := a.db.GetCollection(collectionName, nil)
	if col != nil {
		return col, nil
	}
	return a.db.CreateCollection(collectionName, nil, nil)
}

// Load implements persist.Adapter. chromem-go exposes no "list all"
// query, so Load reads the collection's document count and issues a
// zero-vector QueryEmbedding for exactly that many results — every
// document scores identically against the zero vector, so the "ranking"
// is arbitrary but complete.
func (a *Adapter) Load(ctx context.Context) ([]persist.Record, error) {
	col, err := a.collection()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", persist.ErrUnavailable, err)
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	dim := 384
	zero := make([]float32, dim)

	var results []chromemgo.Result
	for n := count; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, zero, n, nil, nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, fmt.Errorf("query chromem collection: %w", err)
		}
	}

	records := make([]persist.Record, 0, len(results))
	for i, res := range results {
		rec, err := resultToRecord(res)
		if err != nil {
			a.log.Debugf("load: skipping corrupt record #%d: %v", i, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save implements persist.Adapter by overwriting the collection's
// documents wholesale: chromem-go has no bulk-replace, so the simplest
// correct approach is to drop and recreate the collection each save.
func (a *Adapter) Save(ctx context.Context, records []persist.Record) error {
	_ = a.db.DeleteCollection(collectionName)
	col, err := a.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate chromem collection: %w", err)
	}

	for _, r := range records {
		doc, err := recordToDocument(r)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", r.ID, err)
		}
	}
	return nil
}

// Close is a no-op: chromem-go's persistent DB writes through on every
// mutating call, there is no buffered handle to flush.
func (a *Adapter) Close() error { return nil }

type documentPayload struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Temporal persist.Temporal       `json:"temporal"`
	Quality  persist.Quality        `json:"quality"`
}

func recordToDocument(r persist.Record) (chromemgo.Document, error) {
	payload := documentPayload{
		Content:  r.Content,
		Metadata: r.CustomMetadata,
		Temporal: r.Temporal,
		Quality:  r.Quality,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return chromemgo.Document{}, err
	}
	return chromemgo.Document{
		ID:        r.ID,
		Content:   string(body),
		Embedding: r.Embedding,
		Metadata:  map[string]string{"decayTier": r.Temporal.DecayTier},
	}, nil
}

func resultToRecord(res chromemgo.Result) (persist.Record, error) {
	var payload documentPayload
	if err := json.Unmarshal([]byte(res.Content), &payload); err != nil {
		return persist.Record{}, err
	}
	if payload.Content == "" {
		return persist.Record{}, fmt.Errorf("empty content")
	}
	return persist.Record{
		ID:             res.ID,
		Content:        payload.Content,
		Embedding:      res.Embedding,
		CustomMetadata: payload.Metadata,
		Temporal:       payload.Temporal,
		Quality:        payload.Quality,
	}, nil
}

func isInsufficientDocsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "number of results")
}
