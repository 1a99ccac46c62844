package database

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/noah-isme/library-loans-api/pkg/config"
)

// NewBadger opens the embedded key-value store used by the single-node
// deployment.
func NewBadger(cfg config.BadgerConfig) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return db, nil
}
