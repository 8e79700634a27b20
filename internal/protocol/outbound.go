package protocol

import (
	"encoding/json"

	"bsuchat/internal/models"
)

// Outbound event types.
const (
	TypeConnected         = "connected"
	TypeFacultyMessages   = "faculty-messages"
	TypeNewFacultyMessage = "new-faculty-message"
	TypePrivateMessages   = "private-messages"
	TypeNewPrivateMessage = "new-private-message"
	TypeError             = "error"
	TypeUserBlocked       = "user-blocked"
	TypeUserReported      = "user-reported"
	TypeDailyTopicUpdated = "daily-topic-updated"
	TypeMessagesDropped   = "messages_dropped"
	TypeServerShutdown    = "server_shutdown"
)

// User-facing error texts.
const (
	ErrTextBlocked      = "Bu istifadəçi sizi əngəlləyib"
	ErrTextRateLimited  = "Çox tez mesaj göndərirsiniz, bir az gözləyin"
	ErrTextUnauthorized = "Giriş tələb olunur"
)

// Event is a server frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Marshal encodes the event for the socket.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

type messagesPayload struct {
	Messages []models.Message `json:"messages"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type targetPayload struct {
	TargetUserID string `json:"targetUserId"`
}

type topicPayload struct {
	Topic string `json:"topic"`
}

type connectedPayload struct {
	UserID string `json:"userId"`
}

func Connected(userID string) Event {
	return Event{Type: TypeConnected, Payload: connectedPayload{UserID: userID}}
}

// FacultyMessages is the history snapshot sent on join.
func FacultyMessages(msgs []models.Message) Event {
	return Event{Type: TypeFacultyMessages, Payload: messagesPayload{Messages: nonNil(msgs)}}
}

func NewFacultyMessage(m models.Message) Event {
	return Event{Type: TypeNewFacultyMessage, Payload: m}
}

func PrivateMessages(msgs []models.Message) Event {
	return Event{Type: TypePrivateMessages, Payload: messagesPayload{Messages: nonNil(msgs)}}
}

func NewPrivateMessage(m models.Message) Event {
	return Event{Type: TypeNewPrivateMessage, Payload: m}
}

func Error(text string) Event {
	return Event{Type: TypeError, Payload: errorPayload{Message: text}}
}

func UserBlocked(targetID string) Event {
	return Event{Type: TypeUserBlocked, Payload: targetPayload{TargetUserID: targetID}}
}

func UserReported(targetID string) Event {
	return Event{Type: TypeUserReported, Payload: targetPayload{TargetUserID: targetID}}
}

func DailyTopicUpdated(topic string) Event {
	return Event{Type: TypeDailyTopicUpdated, Payload: topicPayload{Topic: topic}}
}

func nonNil(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}
