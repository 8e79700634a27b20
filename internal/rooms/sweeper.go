package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bsuchat/internal/models"
	"bsuchat/internal/observability"

	"golang.org/x/sync/errgroup"
)

// DefaultSweepInterval is how often expired messages are pruned.
const DefaultSweepInterval = 60 * time.Second

// Pruner is the part of the Registry the sweeper needs.
type Pruner interface {
	AllKeys() []RoomKey
	PruneOlderThan(key RoomKey, cutoff int64) (int, error)
}

// ExpiryPolicy supplies the current retention windows.
type ExpiryPolicy interface {
	MessageExpiry(ctx context.Context) (models.MessageExpiry, error)
}

// SweepResult summarizes one pass.
type SweepResult struct {
	Rooms   int
	Pruned  int
	Failed  int
	Skipped int
}

// Sweeper periodically removes expired messages from every room. Rooms are
// pruned as independent tasks: a failing or panicking room is logged and
// counted, and a room still busy from an earlier pass is skipped.
type Sweeper struct {
	pruner   Pruner
	policy   ExpiryPolicy
	interval time.Duration
	workers  int
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[RoomKey]struct{}
	passes   sync.WaitGroup
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithWorkers bounds how many rooms are pruned at once.
func WithWorkers(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a sweeper over pruner using policy for retention.
func NewSweeper(pruner Pruner, policy ExpiryPolicy, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		pruner:   pruner,
		policy:   policy,
		interval: DefaultSweepInterval,
		workers:  8,
		now:      time.Now,
		logger:   observability.GlobalLogger.With(slog.String("component", "sweeper")),
		inflight: make(map[RoomKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx is cancelled. Each pass runs in its
// own goroutine so a slow pass never delays the next tick. Run returns only
// after every pass it started has finished.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.passes.Wait()
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.passes.Add(1)
			go func() {
				defer s.passes.Done()
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Warn("sweep skipped", slog.String("error", err.Error()))
				}
			}()
		}
	}
}

// Sweep runs one pass. The clock and the expiry settings are read once, so
// every room in the pass uses the same cutoffs. A settings failure skips the
// whole pass and is returned.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	defer func() { observability.SweepDuration.Observe(time.Since(start).Seconds()) }()

	expiry, err := s.policy.MessageExpiry(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("read message expiry: %w", err)
	}

	now := s.now().UnixMilli()
	cutoffs := map[models.RoomClass]int64{
		models.RoomClassGroup:   now - expiry.For(models.RoomClassGroup).Milliseconds(),
		models.RoomClassPrivate: now - expiry.For(models.RoomClassPrivate).Milliseconds(),
	}

	keys := s.pruner.AllKeys()
	var pruned, failed, skipped atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		if !s.claim(key) {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			defer s.release(key)
			n, err := s.pruneRoom(key, cutoffs[key.Class])
			if err != nil {
				failed.Add(1)
				observability.SweepRoomFailures.Inc()
				s.logger.Error("room prune failed",
					slog.String("room", key.String()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if n > 0 {
				pruned.Add(int64(n))
				observability.SweepPrunedMessages.WithLabelValues(string(key.Class)).Add(float64(n))
			}
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{
		Rooms:   len(keys),
		Pruned:  int(pruned.Load()),
		Failed:  int(failed.Load()),
		Skipped: int(skipped.Load()),
	}
	if res.Pruned > 0 || res.Failed > 0 {
		s.logger.Info("sweep finished",
			slog.Int("rooms", res.Rooms),
			slog.Int("pruned", res.Pruned),
			slog.Int("failed", res.Failed),
			slog.Int("skipped", res.Skipped),
		)
	}
	return res, nil
}

func (s *Sweeper) pruneRoom(key RoomKey, cutoff int64) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.pruner.PruneOlderThan(key, cutoff)
}

func (s *Sweeper) claim(key RoomKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Sweeper) release(key RoomKey) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}
