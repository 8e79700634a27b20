// Package gateway turns websocket frames into router calls for one connection.
package gateway

import (
	"context"
	"errors"
	"sync"

	"bsuchat/internal/middleware"
	"bsuchat/internal/models"
	"bsuchat/internal/notifications"
	"bsuchat/internal/observability"
	"bsuchat/internal/protocol"
	"bsuchat/internal/rooms"
	"bsuchat/internal/service"
)

// State is the lifecycle position of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateSubscribedGroup
	StateSubscribedPrivate
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribedGroup:
		return "subscribed_group"
	case StateSubscribedPrivate:
		return "subscribed_private"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// ErrAlreadyAuthenticated is returned when a session authenticates twice.
var ErrAlreadyAuthenticated = errors.New("session already authenticated")

// Router is the chat behavior a session drives.
type Router interface {
	SendGroupMessage(ctx context.Context, senderID, faculty, raw string) (*models.Message, error)
	SendPrivateMessage(ctx context.Context, senderID, recipientID, raw string) (*models.Message, error)
	JoinRoom(ctx context.Context, sub *notifications.Client, userID, faculty string) error
	JoinPrivateRoom(ctx context.Context, sub *notifications.Client, userID, otherUserID string) error
	Block(ctx context.Context, sub *notifications.Client, actorID, targetID string) error
	Report(ctx context.Context, sub *notifications.Client, actorID, targetID string) error
	LeaveRoom(ctx context.Context, sub *notifications.Client) error
}

// Presence binds connections to users. *notifications.Hub implements it.
type Presence interface {
	BindUser(c *notifications.Client, userID string) error
	CurrentRoom(c *notifications.Client) (rooms.RoomKey, bool)
	UnregisterClient(c *notifications.Client)
}

// SendLimiter throttles message sends per user.
type SendLimiter interface {
	Allow(ctx context.Context, userID string) bool
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Router   Router
	Tokens   middleware.TokenParser
	Presence Presence
	// Limiter is optional; nil allows every send.
	Limiter SendLimiter
}

// Session is the per-connection state machine.
type Session struct {
	mu     sync.Mutex
	state  State
	userID string

	client *notifications.Client
	deps   Deps
	log    *observability.WSLogger
}

// NewSession creates an unauthenticated session for client.
func NewSession(client *notifications.Client, deps Deps) *Session {
	return &Session{
		client: client,
		deps:   deps,
		log:    observability.NewWSLogger("gateway"),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the authenticated user, empty before authentication.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Room returns the room the session listens to, as recorded by presence.
func (s *Session) Room() (rooms.RoomKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubscribedGroup && s.state != StateSubscribedPrivate {
		return rooms.RoomKey{}, false
	}
	return s.deps.Presence.CurrentRoom(s.client)
}

// Authenticate validates token and binds the connection to its user.
func (s *Session) Authenticate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticateLocked(ctx, token)
}

func (s *Session) authenticateLocked(ctx context.Context, token string) error {
	if s.state != StateUnauthenticated {
		return ErrAlreadyAuthenticated
	}
	claims, err := s.deps.Tokens.Parse(token)
	if err != nil {
		return err
	}
	return s.bindLocked(ctx, claims.UserID)
}

// AuthenticateUser binds a user whose identity the HTTP layer already
// verified, e.g. through a websocket ticket.
func (s *Session) AuthenticateUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnauthenticated {
		return ErrAlreadyAuthenticated
	}
	return s.bindLocked(ctx, userID)
}

func (s *Session) bindLocked(ctx context.Context, userID string) error {
	if err := protocol.ValidateUserID("userId", userID); err != nil {
		return err
	}
	if err := s.deps.Presence.BindUser(s.client, userID); err != nil {
		return err
	}
	s.userID = userID
	s.state = StateAuthenticated
	s.client.Deliver(protocol.Connected(userID))
	s.log.LogConnect(ctx, userID)
	return nil
}

// Handle decodes one frame and dispatches it. Events are processed one at a
// time per session.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	ev, err := protocol.Decode(raw)
	if err != nil {
		s.log.LogRejected(ctx, s.UserID(), "decode", err.Error())
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(ev.Type()).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDisconnected:
		return
	case StateUnauthenticated:
		if auth, ok := ev.(protocol.Authenticate); ok {
			if err := s.authenticateLocked(ctx, auth.Token); err != nil {
				s.log.LogRejected(ctx, "", ev.Type(), err.Error())
				s.client.Deliver(protocol.Error(protocol.ErrTextUnauthorized))
			}
			return
		}
		s.client.Deliver(protocol.Error(protocol.ErrTextUnauthorized))
		return
	}

	if ev.Type() == protocol.TypeAuthenticate {
		s.log.LogRejected(ctx, s.userID, ev.Type(), ErrAlreadyAuthenticated.Error())
		return
	}
	if ev.Actor() != s.userID {
		s.log.LogRejected(ctx, s.userID, ev.Type(), "actor mismatch")
		return
	}

	s.report(ctx, ev.Type(), s.dispatch(ctx, ev))
}

func (s *Session) dispatch(ctx context.Context, ev protocol.Inbound) error {
	r := s.deps.Router
	switch e := ev.(type) {
	case protocol.JoinFaculty:
		if err := r.JoinRoom(ctx, s.client, s.userID, e.Faculty); err != nil {
			return err
		}
		s.state = StateSubscribedGroup

	case protocol.JoinPrivateChat:
		if err := r.JoinPrivateRoom(ctx, s.client, s.userID, e.OtherUserID); err != nil {
			return err
		}
		s.state = StateSubscribedPrivate

	case protocol.LeaveRoom:
		if s.state == StateAuthenticated {
			return nil
		}
		if err := r.LeaveRoom(ctx, s.client); err != nil {
			return err
		}
		s.state = StateAuthenticated

	case protocol.SendFacultyMessage:
		if !s.allowSend(ctx) {
			return nil
		}
		_, err := r.SendGroupMessage(ctx, s.userID, e.Faculty, e.Message)
		return err

	case protocol.SendPrivateMessage:
		if !s.allowSend(ctx) {
			return nil
		}
		_, err := r.SendPrivateMessage(ctx, s.userID, e.OtherUserID, e.Message)
		return err

	case protocol.BlockUser:
		return r.Block(ctx, s.client, s.userID, e.TargetUserID)

	case protocol.ReportUser:
		return r.Report(ctx, s.client, s.userID, e.TargetUserID)
	}
	return nil
}

func (s *Session) allowSend(ctx context.Context) bool {
	if s.deps.Limiter == nil || s.deps.Limiter.Allow(ctx, s.userID) {
		return true
	}
	s.client.Deliver(protocol.Error(protocol.ErrTextRateLimited))
	return false
}

func (s *Session) report(ctx context.Context, eventType string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, service.ErrBlockedByRecipient):
		s.client.Deliver(protocol.Error(protocol.ErrTextBlocked))
	case service.IsSilent(err):
		s.log.LogRejected(ctx, s.userID, eventType, err.Error())
	default:
		room, _ := s.deps.Presence.CurrentRoom(s.client)
		s.log.LogError(ctx, s.userID, room.String(), err, eventType)
	}
}

// Close moves the session to Disconnected and releases its subscriptions.
// Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.deps.Presence.UnregisterClient(s.client)
}
