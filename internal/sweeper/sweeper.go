package sweeper

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/lalith-99/echoforum/internal/repository"
	"github.com/lalith-99/echoforum/internal/storage"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Recorder receives the number of objects removed by each run.
type Recorder interface {
	Swept(n int)
}

// Sweeper deletes stored uploads that no row references once they are
// older than the grace period. The grace period covers the window between
// an upload landing in storage and its record being committed.
type Sweeper struct {
	refs     repository.ReferenceLister
	backend  storage.Backend
	grace    time.Duration
	recorder Recorder
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

func New(refs repository.ReferenceLister, backend storage.Backend, grace time.Duration, recorder Recorder, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		refs:     refs,
		backend:  backend,
		grace:    grace,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules Sweep on a cron spec such as "@every 1h". An empty spec
// leaves the sweeper disabled.
func (s *Sweeper) Start(spec string) error {
	if spec == "" {
		s.logger.Info("upload sweeper disabled")
		return nil
	}
	if s.cron != nil {
		return fmt.Errorf("sweeper already running")
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("upload sweeper started", zap.String("schedule", spec), zap.Duration("grace", s.grace))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.cron = nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	removed, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("failed to sweep uploads", zap.Error(err), zap.Int("removed", removed))
		return
	}
	s.logger.Info("upload sweep finished", zap.Int("removed", removed))
}

// Sweep performs one pass and returns how many objects it removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	urls, err := s.refs.ReferencedURLs(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if key := KeyFromURL(u); key != "" {
			referenced[key] = struct{}{}
		}
	}

	cutoff := s.now().Add(-s.grace)
	var orphans []string
	err = s.backend.Walk(ctx, func(o storage.Object) error {
		if _, ok := referenced[o.Key]; ok {
			return nil
		}
		if o.ModTime.After(cutoff) {
			return nil
		}
		orphans = append(orphans, o.Key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk uploads: %w", err)
	}

	removed := 0
	for _, key := range orphans {
		if err := s.backend.Remove(ctx, key); err != nil {
			s.recordRemoved(removed)
			return removed, err
		}
		s.logger.Debug("removed orphaned upload", zap.String("key", key))
		removed++
	}
	s.recordRemoved(removed)
	return removed, nil
}

func (s *Sweeper) recordRemoved(n int) {
	if s.recorder != nil && n > 0 {
		s.recorder.Swept(n)
	}
}

// KeyFromURL returns the storage key a public URL points at: its last
// path segment, unescaped.
func KeyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return ""
	}
	key := path.Base(u.Path)
	if key == "/" || key == "." {
		return ""
	}
	return key
}
