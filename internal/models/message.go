package models

// RoomClass distinguishes faculty group rooms from two-party rooms.
type RoomClass string

const (
	RoomClassGroup   RoomClass = "group"
	RoomClassPrivate RoomClass = "private"
)

// Message is an immutable chat message. The sender fields are a snapshot
// taken at send time and do not follow later profile edits.
type Message struct {
	ID         string  `json:"id"`
	SenderID   string  `json:"senderId"`
	ReceiverID string  `json:"receiverId,omitempty"`
	FullName   string  `json:"fullname"`
	Faculty    string  `json:"faculty"`
	Degree     string  `json:"degree"`
	Course     int     `json:"course"`
	Avatar     *string `json:"avatar"`
	Body       string  `json:"message"`
	Timestamp  int64   `json:"timestamp"`
	Time       string  `json:"time"`
}
