// Package service provides the chat business logic: routing messages into
// rooms and the moderation views used by the admin API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bsuchat/internal/featureflags"
	"bsuchat/internal/filter"
	"bsuchat/internal/models"
	"bsuchat/internal/moderation"
	"bsuchat/internal/notifications"
	"bsuchat/internal/observability"
	"bsuchat/internal/protocol"
	"bsuchat/internal/rooms"
	"bsuchat/internal/settings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// TimeLayout formats the human-readable message time.
const TimeLayout = "02.01.2006 15:04:05"

// UserLookup resolves chat users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Fanout delivers events to room subscribers. *notifications.Hub implements it.
type Fanout interface {
	Subscribe(c *notifications.Client, key rooms.RoomKey)
	Unsubscribe(c *notifications.Client)
	Publish(key rooms.RoomKey, ev protocol.Event, skip func(userID string) bool) int
	Broadcast(ev protocol.Event)
}

// RouterConfig holds the collaborators of a MessageRouter.
type RouterConfig struct {
	Users      UserLookup
	Settings   settings.Store
	Rooms      *rooms.Registry
	Moderation moderation.Store
	Hub        Fanout
	Flags      *featureflags.Manager
	// Location is used for Message.Time. Defaults to Asia/Baku.
	Location *time.Location
	Now      func() time.Time
}

// MessageRouter validates senders, filters text and fans messages out to rooms.
type MessageRouter struct {
	users      UserLookup
	settings   settings.Store
	rooms      *rooms.Registry
	moderation moderation.Store
	hub        Fanout
	flags      *featureflags.Manager
	loc        *time.Location
	now        func() time.Time
}

// NewMessageRouter returns a new MessageRouter.
func NewMessageRouter(cfg RouterConfig) *MessageRouter {
	r := &MessageRouter{
		users:      cfg.Users,
		settings:   cfg.Settings,
		rooms:      cfg.Rooms,
		moderation: cfg.Moderation,
		hub:        cfg.Hub,
		flags:      cfg.Flags,
		loc:        cfg.Location,
		now:        cfg.Now,
	}
	if r.loc == nil {
		r.loc = ResolveLocation("Asia/Baku")
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// ResolveLocation loads a time zone, falling back to UTC+4 when the zone
// database is unavailable.
func ResolveLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("+04", 4*60*60)
	}
	return loc
}

// SendGroupMessage stores a message in the faculty room and broadcasts it to
// the room's subscribers. Subscribers who blocked the sender are skipped.
func (r *MessageRouter) SendGroupMessage(ctx context.Context, senderID, faculty, raw string) (*models.Message, error) {
	span, ctx := observability.NewSpan(ctx, "router.send_group",
		attribute.String("chat.sender_id", senderID),
		attribute.String("chat.faculty", faculty),
	)
	defer span.End()

	msg, err := r.sendGroup(ctx, senderID, faculty, raw)
	r.recordOutcome(span, models.RoomClassGroup, err)
	return msg, err
}

func (r *MessageRouter) sendGroup(ctx context.Context, senderID, faculty, raw string) (*models.Message, error) {
	sender, err := r.activeUser(ctx, senderID)
	if err != nil {
		return nil, err
	}

	body, err := r.filterBody(ctx, senderID, raw)
	if err != nil {
		return nil, err
	}

	var skip func(string) bool
	if r.flags.Enabled(featureflags.GroupBlockFilter, senderID) {
		blockers, err := r.moderation.Blockers(ctx, senderID)
		if err != nil {
			return nil, fmt.Errorf("load blockers: %w", err)
		}
		skip = memberOf(blockers)
	}

	msg := r.newMessage("msg_", sender, body)
	key := rooms.GroupKey(faculty)
	r.rooms.Append(key, msg, func(m models.Message) {
		r.hub.Publish(key, protocol.NewFacultyMessage(m), skip)
	})
	return &msg, nil
}

// SendPrivateMessage stores a message in the pair room of sender and
// recipient and delivers it to that room only. It returns
// ErrBlockedByRecipient without storing anything when the recipient has
// blocked the sender.
func (r *MessageRouter) SendPrivateMessage(ctx context.Context, senderID, recipientID, raw string) (*models.Message, error) {
	span, ctx := observability.NewSpan(ctx, "router.send_private",
		attribute.String("chat.sender_id", senderID),
		attribute.String("chat.recipient_id", recipientID),
	)
	defer span.End()

	msg, err := r.sendPrivate(ctx, senderID, recipientID, raw)
	r.recordOutcome(span, models.RoomClassPrivate, err)
	return msg, err
}

func (r *MessageRouter) sendPrivate(ctx context.Context, senderID, recipientID, raw string) (*models.Message, error) {
	sender, err := r.activeUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := r.existingUser(ctx, recipientID, ErrRecipientUnavailable); err != nil {
		return nil, err
	}

	blocked, err := r.moderation.IsBlockedBy(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("check block: %w", err)
	}
	if blocked {
		return nil, ErrBlockedByRecipient
	}

	body, err := r.filterBody(ctx, senderID, raw)
	if err != nil {
		return nil, err
	}

	msg := r.newMessage("pmsg_", sender, body)
	msg.ReceiverID = recipientID
	key := rooms.PairKey(senderID, recipientID)
	r.rooms.Append(key, msg, func(m models.Message) {
		r.hub.Publish(key, protocol.NewPrivateMessage(m), nil)
	})
	return &msg, nil
}

// JoinRoom subscribes sub to the faculty room and sends it the current
// history. Messages from users the joiner blocked are left out.
func (r *MessageRouter) JoinRoom(ctx context.Context, sub *notifications.Client, userID, faculty string) error {
	span, ctx := observability.NewSpan(ctx, "router.join_group",
		attribute.String("chat.user_id", userID),
		attribute.String("chat.faculty", faculty),
	)
	defer span.End()

	if _, err := r.activeUser(ctx, userID); err != nil {
		return err
	}

	var hidden func(string) bool
	if r.flags.Enabled(featureflags.GroupBlockFilter, userID) {
		blocked, err := r.moderation.Blocked(ctx, userID)
		if err != nil {
			span.SetError(err)
			return fmt.Errorf("load blocked users: %w", err)
		}
		hidden = memberOf(blocked)
	}

	key := rooms.GroupKey(faculty)
	r.rooms.WithSnapshot(key, func(history []models.Message) {
		r.hub.Subscribe(sub, key)
		if hidden != nil {
			history = visibleTo(history, hidden)
		}
		sub.Deliver(protocol.FacultyMessages(history))
	})
	return nil
}

// JoinPrivateRoom subscribes sub to the pair room of the two users and sends
// it the current history.
func (r *MessageRouter) JoinPrivateRoom(ctx context.Context, sub *notifications.Client, userID, otherUserID string) error {
	span, ctx := observability.NewSpan(ctx, "router.join_private",
		attribute.String("chat.user_id", userID),
		attribute.String("chat.other_user_id", otherUserID),
	)
	defer span.End()

	if _, err := r.existingUser(ctx, userID, ErrSenderUnavailable); err != nil {
		return err
	}
	if _, err := r.existingUser(ctx, otherUserID, ErrRecipientUnavailable); err != nil {
		return err
	}

	key := rooms.PairKey(userID, otherUserID)
	r.rooms.WithSnapshot(key, func(history []models.Message) {
		r.hub.Subscribe(sub, key)
		sub.Deliver(protocol.PrivateMessages(history))
	})
	return nil
}

// LeaveRoom stops sub from receiving events of the room it listens to.
// The room and its history are untouched.
func (r *MessageRouter) LeaveRoom(_ context.Context, sub *notifications.Client) error {
	r.hub.Unsubscribe(sub)
	return nil
}

// Block records that actorID blocked targetID and confirms to sub.
func (r *MessageRouter) Block(ctx context.Context, sub *notifications.Client, actorID, targetID string) error {
	if targetID == "" || actorID == targetID {
		return ErrInvalidTarget
	}
	if err := r.moderation.Block(ctx, actorID, targetID); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	observability.ModerationActions.WithLabelValues("block").Inc()
	sub.Deliver(protocol.UserBlocked(targetID))
	return nil
}

// Report increments the report counter of targetID and confirms to sub.
func (r *MessageRouter) Report(ctx context.Context, sub *notifications.Client, actorID, targetID string) error {
	if targetID == "" || actorID == targetID {
		return ErrInvalidTarget
	}
	count, err := r.moderation.Report(ctx, targetID)
	if err != nil {
		return fmt.Errorf("report user: %w", err)
	}
	observability.ModerationActions.WithLabelValues("report").Inc()
	if count == moderation.ReviewThreshold {
		observability.GlobalLogger.InfoContext(ctx, "user reached review threshold",
			"target_user_id", targetID,
			"reports", count,
		)
	}
	sub.Deliver(protocol.UserReported(targetID))
	return nil
}

// PublishDailyTopic stores the topic and announces it to every connection.
func (r *MessageRouter) PublishDailyTopic(ctx context.Context, topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return models.NewValidationError("Topic cannot be empty")
	}
	if err := r.settings.SetDailyTopic(ctx, topic); err != nil {
		return fmt.Errorf("save daily topic: %w", err)
	}
	r.hub.Broadcast(protocol.DailyTopicUpdated(topic))
	return nil
}

func (r *MessageRouter) activeUser(ctx context.Context, id string) (*models.User, error) {
	user, err := r.existingUser(ctx, id, ErrSenderUnavailable)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrSenderUnavailable
	}
	return user, nil
}

func (r *MessageRouter) existingUser(ctx context.Context, id string, missing error) (*models.User, error) {
	if id == "" {
		return nil, missing
	}
	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, missing
		}
		return nil, fmt.Errorf("lookup user %s: %w", id, err)
	}
	if user == nil {
		return nil, missing
	}
	return user, nil
}

func (r *MessageRouter) filterBody(ctx context.Context, senderID, raw string) (string, error) {
	words, err := r.settings.BannedWords(ctx)
	if err != nil {
		return "", fmt.Errorf("load banned words: %w", err)
	}
	body := filter.Apply(raw, words)
	if r.flags.Enabled(featureflags.EmptyMessageGuard, senderID) && strings.TrimSpace(body) == "" {
		return "", ErrEmptyMessage
	}
	return body, nil
}

func (r *MessageRouter) newMessage(prefix string, sender *models.User, body string) models.Message {
	now := r.now()
	return models.Message{
		ID:        prefix + uuid.NewString(),
		SenderID:  sender.ID,
		FullName:  sender.FullName,
		Faculty:   sender.Faculty,
		Degree:    sender.Degree,
		Course:    sender.Course,
		Avatar:    sender.Avatar,
		Body:      body,
		Timestamp: now.UnixMilli(),
		Time:      now.In(r.loc).Format(TimeLayout),
	}
}

func (r *MessageRouter) recordOutcome(span *observability.Span, class models.RoomClass, err error) {
	outcome := "delivered"
	switch {
	case err == nil:
	case errors.Is(err, ErrBlockedByRecipient):
		outcome = "blocked"
	case IsSilent(err):
		outcome = "rejected"
	default:
		outcome = "error"
		span.SetError(err)
	}
	observability.MessagesRouted.WithLabelValues(string(class), outcome).Inc()
}

func memberOf(ids []string) func(string) bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

func visibleTo(history []models.Message, hidden func(string) bool) []models.Message {
	out := history[:0]
	for _, m := range history {
		if !hidden(m.SenderID) {
			out = append(out, m)
		}
	}
	return out
}
