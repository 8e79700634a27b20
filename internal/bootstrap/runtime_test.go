package bootstrap

import (
	"context"
	"testing"
	"time"

	"bsuchat/internal/config"
	"bsuchat/internal/database"
	"bsuchat/internal/models"
	"bsuchat/internal/moderation"
	"bsuchat/internal/rooms"
	"bsuchat/internal/settings"
	"bsuchat/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		ModerationBackend:  "memory",
		SettingsBackend:    "database",
		SweepInterval:      time.Minute,
		SweepWorkers:       2,
		Timezone:           "Asia/Baku",
		BannedWords:        "Spam, reklam,,",
		GroupExpiryValue:   30,
		GroupExpiryUnit:    "minutes",
		PrivateExpiryValue: 2,
		PrivateExpiryUnit:  "days",
		DailyTopic:         "Sessiya",
	}
}

func TestAssemble_DatabaseSettings(t *testing.T) {
	db := testutil.NewSQLiteDB(t, database.PersistentModels()...)

	rt, err := Assemble(testConfig(), db, nil)
	require.NoError(t, err)
	assert.IsType(t, &settings.GormStore{}, rt.Settings)
	assert.IsType(t, &moderation.MemoryStore{}, rt.Moderation)
	assert.NotNil(t, rt.Router)
	assert.NotNil(t, rt.Sweeper)

	ctx := context.Background()
	words, err := rt.Settings.BannedWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Spam", "reklam"}, words)

	expiry, err := rt.Settings.MessageExpiry(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, expiry.For(models.RoomClassGroup))
	assert.Equal(t, 48*time.Hour, expiry.For(models.RoomClassPrivate))

	topic, err := rt.Settings.DailyTopic(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sessiya", topic)

	// Every faculty room exists before anyone joins.
	for _, f := range models.Faculties {
		assert.Contains(t, rt.Rooms.AllKeys(), rooms.GroupKey(f))
	}
}

func TestAssemble_RedisModerationNeedsClient(t *testing.T) {
	cfg := testConfig()
	cfg.ModerationBackend = "redis"
	db := testutil.NewSQLiteDB(t, database.PersistentModels()...)

	_, err := Assemble(cfg, db, nil)
	require.Error(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rt, err := Assemble(cfg, db, rdb)
	require.NoError(t, err)
	assert.IsType(t, &moderation.RedisStore{}, rt.Moderation)
	assert.Equal(t, rdb, rt.ServerDeps().Redis)
}

func TestSettingsDefaults_InvalidExpiryKeepsBuiltIn(t *testing.T) {
	cfg := testConfig()
	cfg.GroupExpiryUnit = "weeks"
	cfg.BannedWords = ""

	d := SettingsDefaults(cfg)
	builtIn := settings.DefaultValues()
	assert.Equal(t, builtIn.MessageExpiry, d.MessageExpiry)
	assert.Equal(t, builtIn.BannedWords, d.BannedWords)
}
