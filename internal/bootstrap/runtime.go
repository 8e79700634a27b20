// Package bootstrap wires the chat runtime from configuration.
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"bsuchat/internal/cache"
	"bsuchat/internal/config"
	"bsuchat/internal/database"
	"bsuchat/internal/featureflags"
	"bsuchat/internal/models"
	"bsuchat/internal/moderation"
	"bsuchat/internal/notifications"
	"bsuchat/internal/repository"
	"bsuchat/internal/rooms"
	"bsuchat/internal/security"
	"bsuchat/internal/server"
	"bsuchat/internal/service"
	"bsuchat/internal/settings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// TokenTTL is the lifetime of tokens minted by the runtime.
const TokenTTL = 7 * 24 * time.Hour

// Runtime holds the long-lived collaborators of the chat service.
type Runtime struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Users      repository.UserRepository
	Settings   settings.Store
	Moderation moderation.Store
	Rooms      *rooms.Registry
	Hub        *notifications.Hub
	Router     *service.MessageRouter
	Tokens     *security.TokenService
	Flags      *featureflags.Manager
	Sweeper    *rooms.Sweeper
}

// InitRuntime connects to the database and Redis and builds the stores and
// the router on top of them. Redis is optional unless the moderation store
// lives there.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	return Assemble(cfg, db, cache.GetClient())
}

// Assemble builds a Runtime over already-opened connections. rdb may be nil.
func Assemble(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Runtime, error) {
	modStore, err := moderationStore(cfg, rdb)
	if err != nil {
		return nil, err
	}
	settingsStore, err := settingsStore(cfg, db)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		DB:         db,
		Redis:      rdb,
		Users:      repository.NewUserRepository(db),
		Settings:   settingsStore,
		Moderation: modStore,
		Rooms:      rooms.NewRegistry(),
		Hub:        notifications.NewHub(),
		Tokens:     security.NewTokenService(cfg.JWTSecret, TokenTTL),
		Flags:      featureflags.NewManager(cfg.FeatureFlags),
	}

	for _, faculty := range models.Faculties {
		rt.Rooms.EnsureRoom(rooms.GroupKey(faculty))
	}

	rt.Router = service.NewMessageRouter(service.RouterConfig{
		Users:      rt.Users,
		Settings:   rt.Settings,
		Rooms:      rt.Rooms,
		Moderation: rt.Moderation,
		Hub:        rt.Hub,
		Flags:      rt.Flags,
		Location:   service.ResolveLocation(cfg.Timezone),
	})
	rt.Sweeper = rooms.NewSweeper(rt.Rooms, rt.Settings,
		rooms.WithInterval(cfg.SweepInterval),
		rooms.WithWorkers(cfg.SweepWorkers),
	)
	return rt, nil
}

// ServerDeps returns the collaborators the HTTP server needs.
func (rt *Runtime) ServerDeps() server.Deps {
	return server.Deps{
		DB:         rt.DB,
		Redis:      rt.Redis,
		Users:      rt.Users,
		Settings:   rt.Settings,
		Moderation: rt.Moderation,
		Rooms:      rt.Rooms,
		Hub:        rt.Hub,
		Router:     rt.Router,
		Tokens:     rt.Tokens,
		Flags:      rt.Flags,
	}
}

func moderationStore(cfg *config.Config, rdb *redis.Client) (moderation.Store, error) {
	switch cfg.ModerationBackend {
	case "redis":
		if rdb == nil {
			return nil, errors.New("MODERATION_BACKEND=redis requires a reachable REDIS_URL")
		}
		return moderation.NewRedisStore(rdb), nil
	case "memory", "":
		return moderation.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown moderation backend %q", cfg.ModerationBackend)
	}
}

func settingsStore(cfg *config.Config, db *gorm.DB) (settings.Store, error) {
	d := SettingsDefaults(cfg)
	switch cfg.SettingsBackend {
	case "database":
		return settings.NewGormStore(db, d), nil
	case "memory", "":
		return settings.NewMemoryStore(d), nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.SettingsBackend)
	}
}

// SettingsDefaults overlays configured seed values on the built-in defaults.
func SettingsDefaults(cfg *config.Config) settings.Defaults {
	d := settings.DefaultValues()
	if words := cfg.BannedWordList(); len(words) > 0 {
		d.BannedWords = settings.NormalizeWords(words)
	}

	group := models.ExpiryDuration{Value: cfg.GroupExpiryValue, Unit: models.ExpiryUnit(cfg.GroupExpiryUnit)}
	private := models.ExpiryDuration{Value: cfg.PrivateExpiryValue, Unit: models.ExpiryUnit(cfg.PrivateExpiryUnit)}
	if expiry := (models.MessageExpiry{Group: group, Private: private}); expiry.Validate() == nil {
		d.MessageExpiry = expiry
	}

	if cfg.DailyTopic != "" {
		d.DailyTopic = cfg.DailyTopic
	}
	if cfg.Rules != "" {
		d.Rules = cfg.Rules
	}
	return d
}
