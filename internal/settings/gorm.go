package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bsuchat/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	keyBannedWords   = "filter_words"
	keyMessageExpiry = "message_expiry"
	keyDailyTopic    = "daily_topic"
	keyRules         = "rules"
)

// GormStore persists settings as JSON values in the settings table.
type GormStore struct {
	db       *gorm.DB
	defaults Defaults
}

// NewGormStore wraps db. Missing rows read as the matching default.
func NewGormStore(db *gorm.DB, d Defaults) *GormStore {
	d.BannedWords = NormalizeWords(d.BannedWords)
	return &GormStore{db: db, defaults: d}
}

func (s *GormStore) load(ctx context.Context, key string, dest any) (bool, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(row.Value), dest); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

func (s *GormStore) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	row := models.Setting{Key: key, Value: string(raw)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) BannedWords(ctx context.Context) ([]string, error) {
	var words []string
	found, err := s.load(ctx, keyBannedWords, &words)
	if err != nil {
		return nil, err
	}
	if !found {
		return append([]string(nil), s.defaults.BannedWords...), nil
	}
	return words, nil
}

func (s *GormStore) SetBannedWords(ctx context.Context, words []string) error {
	return s.save(ctx, keyBannedWords, NormalizeWords(words))
}

func (s *GormStore) MessageExpiry(ctx context.Context) (models.MessageExpiry, error) {
	var expiry models.MessageExpiry
	found, err := s.load(ctx, keyMessageExpiry, &expiry)
	if err != nil {
		return models.MessageExpiry{}, err
	}
	if !found {
		return s.defaults.MessageExpiry, nil
	}
	return expiry, nil
}

func (s *GormStore) SetMessageExpiry(ctx context.Context, expiry models.MessageExpiry) error {
	if err := expiry.Validate(); err != nil {
		return err
	}
	return s.save(ctx, keyMessageExpiry, expiry)
}

func (s *GormStore) DailyTopic(ctx context.Context) (string, error) {
	return s.loadString(ctx, keyDailyTopic, s.defaults.DailyTopic)
}

func (s *GormStore) SetDailyTopic(ctx context.Context, topic string) error {
	return s.save(ctx, keyDailyTopic, topic)
}

func (s *GormStore) Rules(ctx context.Context) (string, error) {
	return s.loadString(ctx, keyRules, s.defaults.Rules)
}

func (s *GormStore) SetRules(ctx context.Context, rules string) error {
	return s.save(ctx, keyRules, rules)
}

func (s *GormStore) loadString(ctx context.Context, key, fallback string) (string, error) {
	var v string
	found, err := s.load(ctx, key, &v)
	if err != nil {
		return "", err
	}
	if !found {
		return fallback, nil
	}
	return v, nil
}
