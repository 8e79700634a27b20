// Package settings stores the admin-editable chat settings.
package settings

import (
	"context"
	"slices"
	"strings"
	"sync"

	"bsuchat/internal/models"
)

// Store reads and writes chat settings. Readers get a value as of the call.
type Store interface {
	BannedWords(ctx context.Context) ([]string, error)
	SetBannedWords(ctx context.Context, words []string) error
	MessageExpiry(ctx context.Context) (models.MessageExpiry, error)
	SetMessageExpiry(ctx context.Context, expiry models.MessageExpiry) error
	DailyTopic(ctx context.Context) (string, error)
	SetDailyTopic(ctx context.Context, topic string) error
	Rules(ctx context.Context) (string, error)
	SetRules(ctx context.Context, rules string) error
}

// Defaults are returned for settings that were never written.
type Defaults struct {
	BannedWords   []string
	MessageExpiry models.MessageExpiry
	DailyTopic    string
	Rules         string
}

// DefaultValues mirrors the settings a fresh install starts with.
func DefaultValues() Defaults {
	return Defaults{
		BannedWords: []string{"spam", "reklam"},
		MessageExpiry: models.MessageExpiry{
			Group:   models.ExpiryDuration{Value: 24, Unit: models.ExpiryHours},
			Private: models.ExpiryDuration{Value: 48, Unit: models.ExpiryHours},
		},
		DailyTopic: "Bugün fakültənizlə bağlı fikirlərini paylaş!",
		Rules:      "BSU Chat qaydalarına xoş gəlmisiniz!",
	}
}

// NormalizeWords trims words, drops blanks and duplicates, keeps order.
func NormalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	defaults Defaults
	values   Defaults
}

// NewMemoryStore creates a store initialized with d.
func NewMemoryStore(d Defaults) *MemoryStore {
	d.BannedWords = NormalizeWords(d.BannedWords)
	return &MemoryStore{defaults: d, values: d}
}

func (s *MemoryStore) BannedWords(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.values.BannedWords), nil
}

func (s *MemoryStore) SetBannedWords(_ context.Context, words []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.BannedWords = NormalizeWords(words)
	return nil
}

func (s *MemoryStore) MessageExpiry(context.Context) (models.MessageExpiry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.MessageExpiry, nil
}

func (s *MemoryStore) SetMessageExpiry(_ context.Context, expiry models.MessageExpiry) error {
	if err := expiry.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.MessageExpiry = expiry
	return nil
}

func (s *MemoryStore) DailyTopic(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.DailyTopic, nil
}

func (s *MemoryStore) SetDailyTopic(_ context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.DailyTopic = topic
	return nil
}

func (s *MemoryStore) Rules(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Rules, nil
}

func (s *MemoryStore) SetRules(_ context.Context, rules string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values.Rules = rules
	return nil
}

// Reset restores the defaults. Test hook.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	s.values = s.defaults
	s.mu.Unlock()
}
