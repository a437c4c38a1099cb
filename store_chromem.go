//go:build chromem

package engram

import (
	"context"

	"github.com/kestrel-labs/engram/internal/logx"
	"github.com/kestrel-labs/engram/persist/chromem"
)

// OpenWithChromemContainer is Open's chromem-go-backed variant, linked in
// only when the "chromem" build tag is set. cfg.File is the directory the
// persistent chromem-go database is rooted at, rather than a single JSON
// file path.
func OpenWithChromemContainer(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logx.New("ENGRAM", cfg.Debug)

	adapter, err := chromem.New(cfg.File, log)
	if err != nil {
		return nil, err
	}
	return openWithAdapter(ctx, cfg, adapter, log)
}
