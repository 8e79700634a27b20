package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bsuchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPolicy struct {
	expiry models.MessageExpiry
	err    error
	calls  int
	mu     sync.Mutex
}

func (p *fixedPolicy) MessageExpiry(context.Context) (models.MessageExpiry, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.expiry, p.err
}

func defaultPolicy() *fixedPolicy {
	return &fixedPolicy{expiry: models.MessageExpiry{
		Group:   models.ExpiryDuration{Value: 24, Unit: models.ExpiryHours},
		Private: models.ExpiryDuration{Value: 48, Unit: models.ExpiryHours},
	}}
}

// faultyPruner fails or panics for selected rooms and delegates the rest.
type faultyPruner struct {
	*Registry
	fail  map[RoomKey]bool
	panic map[RoomKey]bool
	block map[RoomKey]chan struct{}
}

func (p *faultyPruner) PruneOlderThan(key RoomKey, cutoff int64) (int, error) {
	if ch, ok := p.block[key]; ok {
		<-ch
	}
	if p.panic[key] {
		panic("corrupted history")
	}
	if p.fail[key] {
		return 0, errors.New("prune failed")
	}
	return p.Registry.PruneOlderThan(key, cutoff)
}

func TestSweeper_UsesClassExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry()

	group := GroupKey("Fizika fakültəsi")
	private := PairKey("a", "b")
	thirtyHoursAgo := now.Add(-30 * time.Hour).UnixMilli()

	r.Append(group, msg("old-group", thirtyHoursAgo), nil)
	r.Append(group, msg("fresh-group", now.Add(-time.Hour).UnixMilli()), nil)
	r.Append(private, msg("kept-private", thirtyHoursAgo), nil)
	r.Append(private, msg("old-private", now.Add(-49*time.Hour).UnixMilli()), nil)

	policy := defaultPolicy()
	s := NewSweeper(r, policy, WithClock(func() time.Time { return now }))

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rooms)
	assert.Equal(t, 2, res.Pruned)
	assert.Equal(t, 1, policy.calls)

	assert.Equal(t, []string{"fresh-group"}, ids(r.Snapshot(group)))
	assert.Equal(t, []string{"kept-private"}, ids(r.Snapshot(private)))
}

func TestSweeper_IsolatesFailingRooms(t *testing.T) {
	now := time.Now()
	r := NewRegistry()
	old := now.Add(-72 * time.Hour).UnixMilli()

	bad := GroupKey("bad")
	panicky := GroupKey("panicky")
	good := GroupKey("good")
	for _, k := range []RoomKey{bad, panicky, good} {
		r.Append(k, msg("old", old), nil)
	}

	p := &faultyPruner{
		Registry: r,
		fail:     map[RoomKey]bool{bad: true},
		panic:    map[RoomKey]bool{panicky: true},
	}
	s := NewSweeper(p, defaultPolicy(), WithClock(func() time.Time { return now }))

	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Pruned)
	assert.Zero(t, r.Len(good))
	assert.Equal(t, 1, r.Len(bad))
}

func TestSweeper_SettingsFailureSkipsPass(t *testing.T) {
	r := NewRegistry()
	r.Append(GroupKey("x"), msg("old", 1), nil)

	s := NewSweeper(r, &fixedPolicy{err: errors.New("db down")})
	_, err := s.Sweep(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, r.Len(GroupKey("x")))
}

func TestSweeper_SkipsRoomStillBeingPruned(t *testing.T) {
	now := time.Now()
	r := NewRegistry()
	hung := GroupKey("hung")
	other := GroupKey("other")
	old := now.Add(-72 * time.Hour).UnixMilli()
	r.Append(hung, msg("old", old), nil)
	r.Append(other, msg("old", old), nil)

	release := make(chan struct{})
	p := &faultyPruner{Registry: r, block: map[RoomKey]chan struct{}{hung: release}}
	s := NewSweeper(p, defaultPolicy(), WithClock(func() time.Time { return now }))

	firstDone := make(chan SweepResult)
	go func() {
		res, _ := s.Sweep(context.Background())
		firstDone <- res
	}()

	// Wait until the first pass is done with every room except the hung one.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, busy := s.inflight[hung]
		return busy && len(s.inflight) == 1 && r.Len(other) == 0
	}, time.Second, 5*time.Millisecond)

	r.Append(other, msg("old-again", old), nil)
	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, r.Len(other))

	close(release)
	first := <-firstDone
	assert.Zero(t, first.Failed)
	assert.Zero(t, r.Len(hung))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	r := NewRegistry()
	r.Append(GroupKey("x"), msg("old", 1), nil)

	s := NewSweeper(r, defaultPolicy(), WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.Len(GroupKey("x")) == 0 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_RunWaitsForInflightPass(t *testing.T) {
	r := NewRegistry()
	hung := GroupKey("hung")
	r.Append(hung, msg("old", 1), nil)

	release := make(chan struct{})
	p := &faultyPruner{Registry: r, block: map[RoomKey]chan struct{}{hung: release}}
	s := NewSweeper(p, defaultPolicy(), WithInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, busy := s.inflight[hung]
		return busy
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while a pass was still pruning")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Zero(t, r.Len(hung))
}
