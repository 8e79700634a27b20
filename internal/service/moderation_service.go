package service

import (
	"context"
	"fmt"

	"bsuchat/internal/models"
	"bsuchat/internal/moderation"
)

// ReportedUser is a row for the admin review listing.
type ReportedUser struct {
	User        models.User `json:"user"`
	ReportCount int64       `json:"reportCount"`
}

// ModerationAudit aggregates block and report data for one user.
type ModerationAudit struct {
	User        models.User `json:"user"`
	ReportCount int64       `json:"reportCount"`
	Blocked     []string    `json:"blocked"`
	BlockedBy   []string    `json:"blockedBy"`
}

// UserDirectory resolves users for admin views.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.User, error)
}

// ModerationService provides admin moderation and reporting logic.
type ModerationService struct {
	store moderation.Store
	users UserDirectory
}

// NewModerationService returns a new ModerationService.
func NewModerationService(store moderation.Store, users UserDirectory) *ModerationService {
	return &ModerationService{store: store, users: users}
}

// ListReported returns users with at least threshold reports, most reported
// first. Users missing from the directory are listed with their id only.
func (s *ModerationService) ListReported(ctx context.Context, threshold int64) ([]ReportedUser, error) {
	if threshold <= 0 {
		threshold = moderation.ReviewThreshold
	}
	entries, err := s.store.ListReported(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("list reported: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	rows := make([]ReportedUser, 0, len(entries))
	for _, e := range entries {
		u, ok := users[e.UserID]
		if !ok {
			u = models.User{ID: e.UserID}
		}
		rows = append(rows, ReportedUser{User: u, ReportCount: e.Count})
	}
	return rows, nil
}

// UserAudit returns the report count and block relations of a user.
func (s *ModerationService) UserAudit(ctx context.Context, userID string) (*ModerationAudit, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.ReportCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("report count: %w", err)
	}
	blocked, err := s.store.Blocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("blocked users: %w", err)
	}
	blockers, err := s.store.Blockers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("blockers: %w", err)
	}

	return &ModerationAudit{
		User:        *user,
		ReportCount: count,
		Blocked:     nonNilIDs(blocked),
		BlockedBy:   nonNilIDs(blockers),
	}, nil
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
