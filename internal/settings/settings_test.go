package settings

import (
	"context"
	"testing"

	"bsuchat/internal/models"
	"bsuchat/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGormStore(t *testing.T) *GormStore {
	t.Helper()
	db := testutil.NewSQLiteDB(t, &models.Setting{})
	return NewGormStore(db, DefaultValues())
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(DefaultValues()),
		"gorm":   setupGormStore(t),
	}
}

func TestStore_Defaults(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			words, err := s.BannedWords(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"spam", "reklam"}, words)

			expiry, err := s.MessageExpiry(ctx)
			require.NoError(t, err)
			assert.Equal(t, 24, expiry.Group.Value)
			assert.Equal(t, models.ExpiryHours, expiry.Private.Unit)
			assert.Equal(t, 48, expiry.Private.Value)

			topic, err := s.DailyTopic(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, topic)
		})
	}
}

func TestStore_WritesAreReadBack(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.SetBannedWords(ctx, []string{" pul ", "", "PUL", "spam"}))
			words, err := s.BannedWords(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"pul", "spam"}, words)

			expiry := models.MessageExpiry{
				Group:   models.ExpiryDuration{Value: 30, Unit: models.ExpiryMinutes},
				Private: models.ExpiryDuration{Value: 3, Unit: models.ExpiryDays},
			}
			require.NoError(t, s.SetMessageExpiry(ctx, expiry))
			got, err := s.MessageExpiry(ctx)
			require.NoError(t, err)
			assert.Equal(t, expiry, got)

			require.NoError(t, s.SetDailyTopic(ctx, "Imtahanlar"))
			require.NoError(t, s.SetDailyTopic(ctx, "Sessiya"))
			topic, err := s.DailyTopic(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Sessiya", topic)

			require.NoError(t, s.SetRules(ctx, "Hörmətli olun"))
			rules, err := s.Rules(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Hörmətli olun", rules)
		})
	}
}

func TestStore_RejectsInvalidExpiry(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bad := models.MessageExpiry{
				Group:   models.ExpiryDuration{Value: 0, Unit: models.ExpiryHours},
				Private: models.ExpiryDuration{Value: 1, Unit: models.ExpiryHours},
			}
			assert.Error(t, s.SetMessageExpiry(ctx, bad))

			got, err := s.MessageExpiry(ctx)
			require.NoError(t, err)
			assert.Equal(t, 24, got.Group.Value)
		})
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	s := NewMemoryStore(DefaultValues())
	ctx := context.Background()
	require.NoError(t, s.SetBannedWords(ctx, nil))

	s.Reset()
	words, _ := s.BannedWords(ctx)
	assert.Equal(t, []string{"spam", "reklam"}, words)
}
