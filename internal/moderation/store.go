// Package moderation keeps block relations and report counters.
package moderation

import (
	"context"
	"sort"
)

// ReviewThreshold is the report count at which a user shows up on the
// admin review list.
const ReviewThreshold = 16

// ReportEntry is a user with its report count.
type ReportEntry struct {
	UserID string `json:"userId"`
	Count  int64  `json:"count"`
}

// Store is the block and report bookkeeping used by the router and admin API.
// Blocks are directed: Block(a, b) means a no longer wants messages from b.
type Store interface {
	Block(ctx context.Context, actorID, targetID string) error
	// IsBlockedBy reports whether targetID has blocked actorID.
	IsBlockedBy(ctx context.Context, actorID, targetID string) (bool, error)
	// Blocked lists the users userID has blocked.
	Blocked(ctx context.Context, userID string) ([]string, error)
	// Blockers lists the users that have blocked userID.
	Blockers(ctx context.Context, userID string) ([]string, error)
	// Report increments the counter for targetID and returns the new value.
	Report(ctx context.Context, targetID string) (int64, error)
	ReportCount(ctx context.Context, userID string) (int64, error)
	// ListReported returns users with at least threshold reports, highest first.
	ListReported(ctx context.Context, threshold int64) ([]ReportEntry, error)
}

func sortEntries(entries []ReportEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].UserID < entries[j].UserID
	})
}
