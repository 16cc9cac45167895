package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"billexact/internal/logging"
)

// Source hands out consistent rule snapshots.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

type staticSource struct {
	snap *Snapshot
}

// Static returns a Source that always yields snap.
func Static(snap *Snapshot) Source {
	if snap == nil {
		snap = &Snapshot{}
	}
	return staticSource{snap: snap}
}

func (s staticSource) Snapshot(context.Context) (*Snapshot, error) { return s.snap, nil }

// Backend persists keyword and override rules.
type Backend interface {
	ListOverrides(ctx context.Context) ([]OverrideRule, error)
	ListKeywords(ctx context.Context) ([]KeywordRule, error)
	UpsertOverride(ctx context.Context, rule OverrideRule) (OverrideRule, error)
	UpsertKeyword(ctx context.Context, rule KeywordRule) (KeywordRule, error)
	DeleteOverride(ctx context.Context, id int64) error
	DeleteKeyword(ctx context.Context, id int64) error
}

// CachedSource caches the backend's rule tables and invalidates on writes.
type CachedSource struct {
	backend Backend
	logger  *slog.Logger

	mu   sync.RWMutex
	snap *Snapshot
}

// NewCachedSource wraps backend. A nil logger disables logging.
func NewCachedSource(backend Backend, logger *slog.Logger) *CachedSource {
	return &CachedSource{
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "keywords"),
	}
}

// Snapshot returns the cached snapshot, loading it on first use or after a write.
func (c *CachedSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil {
		return c.snap, nil
	}
	overrides, err := c.backend.ListOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	kws, err := c.backend.ListKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	snap, err = NewSnapshot(overrides, kws)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}
	c.snap = snap
	c.logger.Debug("keyword snapshot loaded",
		logging.Int("overrides", len(overrides)),
		logging.Int("keywords", len(kws)),
	)
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *CachedSource) UpsertKeyword(ctx context.Context, rule KeywordRule) (KeywordRule, error) {
	if err := rule.Normalize(); err != nil {
		return KeywordRule{}, err
	}
	defer c.Invalidate()
	return c.backend.UpsertKeyword(ctx, rule)
}

func (c *CachedSource) UpsertOverride(ctx context.Context, rule OverrideRule) (OverrideRule, error) {
	if err := rule.Normalize(); err != nil {
		return OverrideRule{}, err
	}
	defer c.Invalidate()
	return c.backend.UpsertOverride(ctx, rule)
}

func (c *CachedSource) DeleteKeyword(ctx context.Context, id int64) error {
	defer c.Invalidate()
	return c.backend.DeleteKeyword(ctx, id)
}

func (c *CachedSource) DeleteOverride(ctx context.Context, id int64) error {
	defer c.Invalidate()
	return c.backend.DeleteOverride(ctx, id)
}
