// Package rooms holds per-room message histories and their expiry.
package rooms

import (
	"bsuchat/internal/models"
)

// PairSeparator joins the two user ids of a private room. User ids may not
// contain it, so distinct pairs always produce distinct names.
const PairSeparator = "|"

// RoomKey identifies a room. Group rooms are named by faculty, private rooms
// by the sorted pair of participant ids.
type RoomKey struct {
	Class models.RoomClass
	Name  string
}

// GroupKey returns the room of a faculty.
func GroupKey(faculty string) RoomKey {
	return RoomKey{Class: models.RoomClassGroup, Name: faculty}
}

// PairKey returns the private room of two users. PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) RoomKey {
	if b < a {
		a, b = b, a
	}
	return RoomKey{Class: models.RoomClassPrivate, Name: a + PairSeparator + b}
}

func (k RoomKey) String() string {
	return string(k.Class) + ":" + k.Name
}
