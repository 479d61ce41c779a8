package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpungsan/trove/internal/cache"
	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/index"
)

// Reaper removes entries whose retention window has elapsed. Retention is
// read from each entry row, not from live config, so entries written under
// an older policy keep the window they were written with.
type Reaper struct {
	cache *cache.Cache
}

// New creates a reaper over the given cache.
func New(c *cache.Cache) *Reaper {
	return &Reaper{cache: c}
}

// Result summarizes one reap pass.
type Result struct {
	DeletedCount int     `json:"deleted_count"`
	FreedBytes   int64   `json:"freed_bytes"`
	Errors       []error `json:"-"`
}

// RunOnce deletes every expired entry: payload file first, index row second.
// A payload that fails to delete keeps its index row so a later pass can
// retry; the failure is collected, not fatal. A missing payload file is not
// an error, the row is still removed.
func (r *Reaper) RunOnce(ctx context.Context) (*Result, error) {
	now := time.Now().Unix()
	expired, err := index.Expired(r.cache.DB(), now)
	if err != nil {
		return nil, err
	}
	return r.reap(ctx, expired)
}

// RunOnceOlderThan deletes every entry older than days, overriding per-entry
// retention for this pass only. Entries written with zero retention are
// deleted too when they fall past the cutoff.
func (r *Reaper) RunOnceOlderThan(ctx context.Context, days int) (*Result, error) {
	if days <= 0 {
		return nil, errors.NewInvalidRequest("days must be positive")
	}

	cutoff := time.Now().Unix() - int64(days)*86400
	old, err := index.Scan(r.cache.DB(), index.Filter{Until: cutoff})
	if err != nil {
		return nil, err
	}
	return r.reap(ctx, old)
}

func (r *Reaper) reap(ctx context.Context, expired []entry.Entry) (*Result, error) {
	result := &Result{}
	for i := range expired {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		e := &expired[i]
		if err := r.cache.PayloadStore().Delete(e.PayloadLocation); err != nil {
			result.Errors = append(result.Errors,
				fmt.Errorf("payload delete for %s: %w", e.ID, err))
			continue
		}
		if err := index.Delete(r.cache.DB(), e.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
			result.Errors = append(result.Errors,
				fmt.Errorf("index delete for %s: %w", e.ID, err))
			continue
		}

		result.DeletedCount++
		result.FreedBytes += e.SizeBytes
	}

	if result.DeletedCount > 0 || len(result.Errors) > 0 {
		slog.Info("reap pass finished",
			"deleted", result.DeletedCount,
			"freed_bytes", result.FreedBytes,
			"errors", len(result.Errors))
	}

	return result, nil
}

// Run reaps immediately, then on every interval tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		slog.Error("reap pass failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				slog.Error("reap pass failed", "error", err)
			}
		}
	}
}
