// Package config holds the bootstrapping options the core accepts from
// its callers: a small, plain-struct Config with flag parsing that
// populates it living entirely in cmd/, never in the core itself.
package config

import "time"

// StoreConfig collects store options for callers. store.Open takes only
// a path and a logger; no package in this module reads these fields.
type StoreConfig struct {
	// Path is the SQLite database file path, or "" for an ephemeral
	// in-memory store.
	Path string

	// WAL selects write-ahead-log journal mode, the setting Store.SetWAL
	// toggles; store.Open does not apply it.
	WAL bool

	// CacheEvictAfter is a staleness cutoff for Store.FlushCache, which
	// always takes its cutoff from the caller and has no default.
	CacheEvictAfter time.Duration

	// SnapshotPath names a packed snapshot that store.OpenSnapshot can
	// open read-only; store.Open does not consult it.
	SnapshotPath string
}

// DefaultStoreConfig matches store.Open's own defaults (8192-entry
// cache, WAL off, relational backing).
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		WAL:             false,
		CacheEvictAfter: 60 * time.Second,
	}
}

// ImportConfig configures one ingestion run.
type ImportConfig struct {
	// FlushEvery is the object count between periodic FlushCache calls
	// during recompute. recompute.Engine does not read it; it flushes
	// every 1024 objects.
	FlushEvery int

	// FlushCutoff is the staleness cutoff passed to each periodic
	// FlushCache call. recompute.Engine does not read it; it uses a
	// fixed 60-second cutoff.
	FlushCutoff time.Duration

	// ModifiedAfter, if non-zero, restricts recompute to objects whose
	// modified timestamp is at or after this Unix-seconds cutoff.
	ModifiedAfter int64

	// Cancel, if non-nil, is polled between objects during recompute; a
	// closed channel signals cancellation.
	Cancel <-chan struct{}

	// RequireZeroErrors gates promotion of the temp partition on the
	// ingester's accumulated error count being zero.
	RequireZeroErrors bool
}

// DefaultImportConfig returns the recompute loop's literal defaults:
// flush every 1024 objects with a 60-second staleness cutoff, and
// require zero errors before promotion.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		FlushEvery:        1024,
		FlushCutoff:       60 * time.Second,
		RequireZeroErrors: true,
	}
}

// CancelFunc adapts a Cancel channel into the predicate shape
// recompute.Engine.SetCancelFunc expects.
func (c ImportConfig) CancelFunc() func() bool {
	return func() bool {
		if c.Cancel == nil {
			return false
		}
		select {
		case <-c.Cancel:
			return true
		default:
			return false
		}
	}
}
