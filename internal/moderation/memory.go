package moderation

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store. Blocks and reports are guarded by
// separate locks so report traffic never waits on block lookups.
type MemoryStore struct {
	blockMu  sync.RWMutex
	blocks   map[string]map[string]struct{} // blocker -> blocked
	blockers map[string]map[string]struct{} // blocked -> blockers

	reportMu sync.RWMutex
	reports  map[string]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks:   make(map[string]map[string]struct{}),
		blockers: make(map[string]map[string]struct{}),
		reports:  make(map[string]int64),
	}
}

func (s *MemoryStore) Block(_ context.Context, actorID, targetID string) error {
	s.blockMu.Lock()
	defer s.blockMu.Unlock()

	addEdge(s.blocks, actorID, targetID)
	addEdge(s.blockers, targetID, actorID)
	return nil
}

func addEdge(m map[string]map[string]struct{}, from, to string) {
	set, ok := m[from]
	if !ok {
		set = make(map[string]struct{})
		m[from] = set
	}
	set[to] = struct{}{}
}

func (s *MemoryStore) IsBlockedBy(_ context.Context, actorID, targetID string) (bool, error) {
	s.blockMu.RLock()
	defer s.blockMu.RUnlock()

	_, ok := s.blocks[targetID][actorID]
	return ok, nil
}

func (s *MemoryStore) Blocked(_ context.Context, userID string) ([]string, error) {
	s.blockMu.RLock()
	defer s.blockMu.RUnlock()
	return sortedKeys(s.blocks[userID]), nil
}

func (s *MemoryStore) Blockers(_ context.Context, userID string) ([]string, error) {
	s.blockMu.RLock()
	defer s.blockMu.RUnlock()
	return sortedKeys(s.blockers[userID]), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryStore) Report(_ context.Context, targetID string) (int64, error) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	s.reports[targetID]++
	return s.reports[targetID], nil
}

func (s *MemoryStore) ReportCount(_ context.Context, userID string) (int64, error) {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.reports[userID], nil
}

func (s *MemoryStore) ListReported(_ context.Context, threshold int64) ([]ReportEntry, error) {
	s.reportMu.RLock()
	entries := make([]ReportEntry, 0)
	for id, n := range s.reports {
		if n >= threshold {
			entries = append(entries, ReportEntry{UserID: id, Count: n})
		}
	}
	s.reportMu.RUnlock()

	sortEntries(entries)
	return entries, nil
}

// Reset clears all state. Test hook.
func (s *MemoryStore) Reset() {
	s.blockMu.Lock()
	s.blocks = make(map[string]map[string]struct{})
	s.blockers = make(map[string]map[string]struct{})
	s.blockMu.Unlock()

	s.reportMu.Lock()
	s.reports = make(map[string]int64)
	s.reportMu.Unlock()
}
