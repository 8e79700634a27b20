package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"bsuchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KnownTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			"join faculty",
			`{"type":"join-faculty","payload":{"userId":"u1","faculty":"Fizika fakültəsi"}}`,
			JoinFaculty{UserID: "u1", Faculty: "Fizika fakültəsi"},
		},
		{
			"send private",
			`{"type":"send-private-message","payload":{"userId":"u1","otherUserId":"u2","message":"salam"}}`,
			SendPrivateMessage{UserID: "u1", OtherUserID: "u2", Message: "salam"},
		},
		{
			"block",
			`{"type":"block-user","payload":{"userId":"u1","targetUserId":"u2"}}`,
			BlockUser{UserID: "u1", TargetUserID: "u2"},
		},
		{
			"leave room",
			`{"type":"leave-room","payload":{"userId":"u1"}}`,
			LeaveRoom{UserID: "u1"},
		},
		{
			"authenticate",
			`{"type":"authenticate","payload":{"token":"abc"}}`,
			Authenticate{Token: "abc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	long := strings.Repeat("a", MaxMessageLength+1)
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"not json", `{"type":`, ErrMalformed},
		{"unknown type", `{"type":"typing","payload":{}}`, ErrUnknownType},
		{"missing payload", `{"type":"join-faculty"}`, ErrMalformed},
		{"missing user", `{"type":"join-faculty","payload":{"faculty":"x"}}`, ErrMalformed},
		{"separator in id", `{"type":"join-private-chat","payload":{"userId":"a|b","otherUserId":"c"}}`, ErrMalformed},
		{"body too long", `{"type":"send-faculty-message","payload":{"userId":"u","faculty":"f","message":"` + long + `"}}`, ErrMalformed},
		{"wrong field type", `{"type":"report-user","payload":{"userId":1,"targetUserId":"x"}}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInbound_Actor(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"report-user","payload":{"userId":"u1","targetUserId":"u2"}}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", ev.Actor())
	assert.Equal(t, TypeReportUser, ev.Type())
}

func TestOutbound_Shapes(t *testing.T) {
	raw, err := FacultyMessages(nil).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"faculty-messages","payload":{"messages":[]}}`, string(raw))

	raw, err = Error(ErrTextBlocked).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"message":"Bu istifadəçi sizi əngəlləyib"}}`, string(raw))

	m := models.Message{ID: "pmsg_1", SenderID: "a", ReceiverID: "b", Body: "hi", Timestamp: 5, Time: "01.01.2026 10:00:00"}
	raw, err = NewPrivateMessage(m).Marshal()
	require.NoError(t, err)

	var decoded struct {
		Type    string         `json:"type"`
		Payload models.Message `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TypeNewPrivateMessage, decoded.Type)
	assert.Equal(t, m, decoded.Payload)
}
