package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bsuchat/internal/featureflags"
	"bsuchat/internal/models"
	"bsuchat/internal/moderation"
	"bsuchat/internal/notifications"
	"bsuchat/internal/protocol"
	"bsuchat/internal/rooms"
	"bsuchat/internal/security"
	"bsuchat/internal/service"
	"bsuchat/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const physics = "Fizika fakültəsi"

type users map[string]*models.User

func (u users) GetByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, models.NewNotFoundError("User", id)
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) bool { return false }

type harness struct {
	hub    *notifications.Hub
	rooms  *rooms.Registry
	tokens *security.TokenService
	deps   Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		hub:    notifications.NewHub(),
		rooms:  rooms.NewRegistry(),
		tokens: security.NewTokenService("test-secret", time.Hour),
	}
	router := service.NewMessageRouter(service.RouterConfig{
		Users: users{
			"x": {ID: "x", FullName: "Xəyal", Faculty: physics, Status: models.UserStatusActive},
			"y": {ID: "y", FullName: "Yeganə", Faculty: physics, Status: models.UserStatusActive},
		},
		Settings:   settings.NewMemoryStore(settings.DefaultValues()),
		Rooms:      h.rooms,
		Moderation: moderation.NewMemoryStore(),
		Hub:        h.hub,
		Flags:      featureflags.NewManager(""),
	})
	h.deps = Deps{Router: router, Tokens: h.tokens, Presence: h.hub}
	return h
}

func (h *harness) open(t *testing.T) (*Session, *notifications.Client) {
	t.Helper()
	c := &notifications.Client{Send: make(chan []byte, 32)}
	require.NoError(t, h.hub.Add(c))
	return NewSession(c, h.deps), c
}

func (h *harness) login(t *testing.T, userID string) (*Session, *notifications.Client) {
	t.Helper()
	s, c := h.open(t)
	token, err := h.tokens.CreateForUser(userID, false)
	require.NoError(t, err)
	require.NoError(t, s.Authenticate(context.Background(), token))
	_ = received(t, c)
	return s, c
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func received(t *testing.T, c *notifications.Client) []frame {
	t.Helper()
	var out []frame
	for {
		select {
		case raw := <-c.Send:
			var f frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func event(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	out, err := json.Marshal(protocol.Envelope{Type: typ, Payload: raw})
	require.NoError(t, err)
	return out
}

func TestSession_AuthenticateEvent(t *testing.T) {
	h := newHarness(t)
	s, c := h.open(t)
	ctx := context.Background()

	s.Handle(ctx, event(t, protocol.TypeJoinFaculty, protocol.JoinFaculty{UserID: "x", Faculty: physics}))
	got := received(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeError, got[0].Type)
	assert.Equal(t, StateUnauthenticated, s.State())

	s.Handle(ctx, event(t, protocol.TypeAuthenticate, protocol.Authenticate{Token: "garbage"}))
	assert.Equal(t, StateUnauthenticated, s.State())
	_ = received(t, c)

	token, err := h.tokens.CreateForUser("x", false)
	require.NoError(t, err)
	s.Handle(ctx, event(t, protocol.TypeAuthenticate, protocol.Authenticate{Token: token}))
	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, "x", s.UserID())

	got = received(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeConnected, got[0].Type)

	assert.ErrorIs(t, s.Authenticate(ctx, token), ErrAlreadyAuthenticated)
}

func TestSession_StateTransitions(t *testing.T) {
	h := newHarness(t)
	s, c := h.login(t, "x")
	ctx := context.Background()

	s.Handle(ctx, event(t, protocol.TypeJoinFaculty, protocol.JoinFaculty{UserID: "x", Faculty: physics}))
	assert.Equal(t, StateSubscribedGroup, s.State())
	room, ok := s.Room()
	require.True(t, ok)
	assert.Equal(t, rooms.GroupKey(physics), room)
	got := received(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeFacultyMessages, got[0].Type)

	s.Handle(ctx, event(t, protocol.TypeJoinPrivateChat, protocol.JoinPrivateChat{UserID: "x", OtherUserID: "y"}))
	assert.Equal(t, StateSubscribedPrivate, s.State())
	room, _ = s.Room()
	assert.Equal(t, rooms.PairKey("x", "y"), room)

	s.Close()
	assert.Equal(t, StateDisconnected, s.State())
	assert.Zero(t, h.hub.ConnectionCount())

	s.Handle(ctx, event(t, protocol.TypeJoinFaculty, protocol.JoinFaculty{UserID: "x", Faculty: physics}))
	assert.Equal(t, StateDisconnected, s.State())
	s.Close()
}

func TestSession_ActorMismatchIsDropped(t *testing.T) {
	h := newHarness(t)
	s, c := h.login(t, "x")

	s.Handle(context.Background(), event(t, protocol.TypeSendFacultyMessage,
		protocol.SendFacultyMessage{UserID: "y", Faculty: physics, Message: "salam"}))

	assert.Zero(t, h.rooms.Len(rooms.GroupKey(physics)))
	assert.Empty(t, received(t, c))
}

func TestSession_MalformedFramesAreDropped(t *testing.T) {
	h := newHarness(t)
	s, c := h.login(t, "x")
	ctx := context.Background()

	s.Handle(ctx, []byte("not json"))
	s.Handle(ctx, []byte(`{"type":"dance","payload":{}}`))
	s.Handle(ctx, event(t, protocol.TypeJoinPrivateChat, protocol.JoinPrivateChat{UserID: "x", OtherUserID: "a|b"}))

	assert.Equal(t, StateAuthenticated, s.State())
	assert.Empty(t, received(t, c))
}

func TestSession_BlockedPrivateSendSignalsSenderOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sx, cx := h.login(t, "x")
	sy, cy := h.login(t, "y")

	sy.Handle(ctx, event(t, protocol.TypeJoinPrivateChat, protocol.JoinPrivateChat{UserID: "y", OtherUserID: "x"}))
	sy.Handle(ctx, event(t, protocol.TypeBlockUser, protocol.BlockUser{UserID: "y", TargetUserID: "x"}))
	got := received(t, cy)
	require.Len(t, got, 2)
	assert.Equal(t, protocol.TypeUserBlocked, got[1].Type)

	sx.Handle(ctx, event(t, protocol.TypeSendPrivateMessage,
		protocol.SendPrivateMessage{UserID: "x", OtherUserID: "y", Message: "hi"}))

	got = received(t, cx)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeError, got[0].Type)
	assert.JSONEq(t, `{"message":"`+protocol.ErrTextBlocked+`"}`, string(got[0].Payload))
	assert.Empty(t, received(t, cy))
	assert.Zero(t, h.rooms.Len(rooms.PairKey("x", "y")))
}

func TestSession_RateLimitedSend(t *testing.T) {
	h := newHarness(t)
	h.deps.Limiter = denyAll{}
	s, c := h.login(t, "x")

	s.Handle(context.Background(), event(t, protocol.TypeSendFacultyMessage,
		protocol.SendFacultyMessage{UserID: "x", Faculty: physics, Message: "salam"}))

	got := received(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeError, got[0].Type)
	assert.Zero(t, h.rooms.Len(rooms.GroupKey(physics)))
}

func TestSession_ReportConfirmsToActor(t *testing.T) {
	h := newHarness(t)
	s, c := h.login(t, "x")

	s.Handle(context.Background(), event(t, protocol.TypeReportUser, protocol.ReportUser{UserID: "x", TargetUserID: "y"}))

	got := received(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeUserReported, got[0].Type)
}

func TestSession_LeaveRoomKeepsConnection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sx, cx := h.login(t, "x")
	sy, _ := h.login(t, "y")

	sx.Handle(ctx, event(t, protocol.TypeJoinFaculty, protocol.JoinFaculty{UserID: "x", Faculty: physics}))
	_ = received(t, cx)

	sx.Handle(ctx, event(t, protocol.TypeLeaveRoom, protocol.LeaveRoom{UserID: "x"}))
	assert.Equal(t, StateAuthenticated, sx.State())
	_, ok := sx.Room()
	assert.False(t, ok)
	assert.Empty(t, h.hub.RoomMembers(rooms.GroupKey(physics)))
	assert.Equal(t, 2, h.hub.ConnectionCount())

	sy.Handle(ctx, event(t, protocol.TypeSendFacultyMessage,
		protocol.SendFacultyMessage{UserID: "y", Faculty: physics, Message: "salam"}))
	assert.Empty(t, received(t, cx))
	assert.Equal(t, 1, h.rooms.Len(rooms.GroupKey(physics)))

	// Leaving again is a no-op.
	sx.Handle(ctx, event(t, protocol.TypeLeaveRoom, protocol.LeaveRoom{UserID: "x"}))
	assert.Equal(t, StateAuthenticated, sx.State())
	assert.Empty(t, received(t, cx))
}
