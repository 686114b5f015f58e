package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ReferenceChecker reports which of the given blob names are still referenced by a row.
type ReferenceChecker func(ctx context.Context, names []string) (map[string]bool, error)

// Sweeper removes blobs that no row references once they are older than MinAge.
// It covers a crash between writing a blob and inserting its row.
type Sweeper struct {
	Store    *DiskStore
	Check    ReferenceChecker
	MinAge   time.Duration
	Interval time.Duration
	Logger   *zap.Logger

	now func() time.Time
}

// Start runs the sweeper until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.SweepOnce(ctx); err != nil {
					log.Warn("orphan sweep failed", zap.Error(err))
				} else if n > 0 {
					log.Info("orphan blobs removed", zap.Int("count", n))
				}
			}
		}
	}()
}

// SweepOnce performs a single pass and returns how many blobs were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	minAge := s.MinAge
	if minAge <= 0 {
		minAge = time.Hour
	}

	entries, err := os.ReadDir(s.Store.Dir())
	if err != nil {
		return 0, err
	}
	cutoff := now().Add(-minAge)
	var candidates []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		candidates = append(candidates, e.Name())
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := s.Check(ctx, candidates)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range candidates {
		if referenced[name] {
			continue
		}
		if err := os.Remove(filepath.Join(s.Store.Dir(), name)); err == nil {
			removed++
		}
	}
	return removed, nil
}
