// Package protocol defines the websocket event envelope and payloads.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"bsuchat/internal/rooms"
)

// Inbound event types.
const (
	TypeAuthenticate       = "authenticate"
	TypeJoinFaculty        = "join-faculty"
	TypeSendFacultyMessage = "send-faculty-message"
	TypeJoinPrivateChat    = "join-private-chat"
	TypeSendPrivateMessage = "send-private-message"
	TypeBlockUser          = "block-user"
	TypeReportUser         = "report-user"
	TypeLeaveRoom          = "leave-room"
)

const (
	// MaxMessageLength bounds the raw body in runes.
	MaxMessageLength = 2000
	maxIDLength      = 64
	maxFrameBytes    = 16 * 1024
)

var (
	// ErrUnknownType is returned for an envelope with an unrecognized type.
	ErrUnknownType = errors.New("unknown event type")
	// ErrMalformed is returned for frames that do not decode.
	ErrMalformed = errors.New("malformed event")
)

// Envelope is the wire frame for every event.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is a decoded client event.
type Inbound interface {
	Type() string
	// Actor is the user id the client claims to act as, empty if none.
	Actor() string
	Validate() error
}

type Authenticate struct {
	Token string `json:"token"`
}

type JoinFaculty struct {
	UserID  string `json:"userId"`
	Faculty string `json:"faculty"`
}

type SendFacultyMessage struct {
	UserID  string `json:"userId"`
	Faculty string `json:"faculty"`
	Message string `json:"message"`
}

type JoinPrivateChat struct {
	UserID      string `json:"userId"`
	OtherUserID string `json:"otherUserId"`
}

type SendPrivateMessage struct {
	UserID      string `json:"userId"`
	OtherUserID string `json:"otherUserId"`
	Message     string `json:"message"`
}

type BlockUser struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

type ReportUser struct {
	UserID       string `json:"userId"`
	TargetUserID string `json:"targetUserId"`
}

// LeaveRoom stops listening to the current room without disconnecting.
type LeaveRoom struct {
	UserID string `json:"userId"`
}

func (Authenticate) Type() string       { return TypeAuthenticate }
func (JoinFaculty) Type() string        { return TypeJoinFaculty }
func (SendFacultyMessage) Type() string { return TypeSendFacultyMessage }
func (JoinPrivateChat) Type() string    { return TypeJoinPrivateChat }
func (SendPrivateMessage) Type() string { return TypeSendPrivateMessage }
func (BlockUser) Type() string          { return TypeBlockUser }
func (ReportUser) Type() string         { return TypeReportUser }
func (LeaveRoom) Type() string          { return TypeLeaveRoom }

func (Authenticate) Actor() string         { return "" }
func (e JoinFaculty) Actor() string        { return e.UserID }
func (e SendFacultyMessage) Actor() string { return e.UserID }
func (e JoinPrivateChat) Actor() string    { return e.UserID }
func (e SendPrivateMessage) Actor() string { return e.UserID }
func (e BlockUser) Actor() string          { return e.UserID }
func (e ReportUser) Actor() string         { return e.UserID }
func (e LeaveRoom) Actor() string          { return e.UserID }

func (e Authenticate) Validate() error {
	if strings.TrimSpace(e.Token) == "" {
		return errors.New("token is required")
	}
	return nil
}

func (e JoinFaculty) Validate() error {
	return errors.Join(ValidateUserID("userId", e.UserID), validateFaculty(e.Faculty))
}

func (e SendFacultyMessage) Validate() error {
	return errors.Join(
		ValidateUserID("userId", e.UserID),
		validateFaculty(e.Faculty),
		validateBody(e.Message),
	)
}

func (e JoinPrivateChat) Validate() error {
	return errors.Join(ValidateUserID("userId", e.UserID), ValidateUserID("otherUserId", e.OtherUserID))
}

func (e SendPrivateMessage) Validate() error {
	return errors.Join(
		ValidateUserID("userId", e.UserID),
		ValidateUserID("otherUserId", e.OtherUserID),
		validateBody(e.Message),
	)
}

func (e BlockUser) Validate() error {
	return errors.Join(ValidateUserID("userId", e.UserID), ValidateUserID("targetUserId", e.TargetUserID))
}

func (e ReportUser) Validate() error {
	return errors.Join(ValidateUserID("userId", e.UserID), ValidateUserID("targetUserId", e.TargetUserID))
}

func (e LeaveRoom) Validate() error {
	return ValidateUserID("userId", e.UserID)
}

// ValidateUserID rejects ids that could not form an unambiguous pair key.
func ValidateUserID(field, id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%s is required", field)
	case len(id) > maxIDLength:
		return fmt.Errorf("%s is too long", field)
	case strings.Contains(id, rooms.PairSeparator):
		return fmt.Errorf("%s contains %q", field, rooms.PairSeparator)
	}
	return nil
}

func validateFaculty(faculty string) error {
	if strings.TrimSpace(faculty) == "" {
		return errors.New("faculty is required")
	}
	return nil
}

func validateBody(body string) error {
	if !utf8.ValidString(body) {
		return errors.New("message is not valid UTF-8")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return fmt.Errorf("message exceeds %d characters", MaxMessageLength)
	}
	return nil
}

// Decode parses and validates one client frame.
func Decode(raw []byte) (Inbound, error) {
	if len(raw) > maxFrameBytes {
		return nil, fmt.Errorf("%w: frame too large", ErrMalformed)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var ev Inbound
	var err error
	switch env.Type {
	case TypeAuthenticate:
		ev, err = decodePayload[Authenticate](env.Payload)
	case TypeJoinFaculty:
		ev, err = decodePayload[JoinFaculty](env.Payload)
	case TypeSendFacultyMessage:
		ev, err = decodePayload[SendFacultyMessage](env.Payload)
	case TypeJoinPrivateChat:
		ev, err = decodePayload[JoinPrivateChat](env.Payload)
	case TypeSendPrivateMessage:
		ev, err = decodePayload[SendPrivateMessage](env.Payload)
	case TypeBlockUser:
		ev, err = decodePayload[BlockUser](env.Payload)
	case TypeReportUser:
		ev, err = decodePayload[ReportUser](env.Payload)
	case TypeLeaveRoom:
		ev, err = decodePayload[LeaveRoom](env.Payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return ev, nil
}

func decodePayload[T Inbound](payload json.RawMessage) (Inbound, error) {
	var v T
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
