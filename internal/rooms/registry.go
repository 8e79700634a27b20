package rooms

import (
	"errors"
	"slices"
	"sync"

	"bsuchat/internal/models"
)

// ErrRoomNotFound is returned for operations on a room that was never created.
var ErrRoomNotFound = errors.New("room not found")

type room struct {
	mu       sync.Mutex
	messages []models.Message
}

// Registry owns every room history. The map is guarded by one RWMutex and
// each history by its own mutex, so unrelated rooms never contend.
type Registry struct {
	mu    sync.RWMutex
	rooms map[RoomKey]*room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[RoomKey]*room)}
}

// EnsureRoom creates the room if it does not exist yet.
func (r *Registry) EnsureRoom(key RoomKey) {
	r.getOrCreate(key)
}

func (r *Registry) getOrCreate(key RoomKey) *room {
	r.mu.RLock()
	rm, ok := r.rooms[key]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[key]; !ok {
		rm = &room{}
		r.rooms[key] = rm
	}
	return rm
}

func (r *Registry) get(key RoomKey) (*room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[key]
	return rm, ok
}

// Append adds msg to the end of the room history, creating the room if
// needed. notify, when non-nil, runs while the room is still locked, so
// deliveries observe the same order as the history.
func (r *Registry) Append(key RoomKey, msg models.Message, notify func(models.Message)) {
	rm := r.getOrCreate(key)
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.messages = append(rm.messages, msg)
	if notify != nil {
		notify(msg)
	}
}

// Snapshot returns a copy of the room history in insertion order.
// Unknown rooms yield an empty slice.
func (r *Registry) Snapshot(key RoomKey) []models.Message {
	rm, ok := r.get(key)
	if !ok {
		return []models.Message{}
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return slices.Clone(rm.messages)
}

// WithSnapshot creates the room if needed and calls fn with a copy of its
// history while holding the room lock. A subscription made inside fn sees
// every later Append and none of the messages already in the copy twice.
func (r *Registry) WithSnapshot(key RoomKey, fn func([]models.Message)) {
	rm := r.getOrCreate(key)
	rm.mu.Lock()
	defer rm.mu.Unlock()

	snapshot := slices.Clone(rm.messages)
	if snapshot == nil {
		snapshot = []models.Message{}
	}
	fn(snapshot)
}

// PruneOlderThan removes messages with a timestamp before cutoff (epoch
// millis) and returns how many were removed. Survivors keep their order.
func (r *Registry) PruneOlderThan(key RoomKey, cutoff int64) (int, error) {
	rm, ok := r.get(key)
	if !ok {
		return 0, ErrRoomNotFound
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()

	before := len(rm.messages)
	rm.messages = slices.DeleteFunc(rm.messages, func(m models.Message) bool {
		return m.Timestamp < cutoff
	})
	return before - len(rm.messages), nil
}

// Len returns the number of messages in a room.
func (r *Registry) Len(key RoomKey) int {
	rm, ok := r.get(key)
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.messages)
}

// AllKeys lists the keys of every room, in no particular order.
func (r *Registry) AllKeys() []RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]RoomKey, 0, len(r.rooms))
	for k := range r.rooms {
		keys = append(keys, k)
	}
	return keys
}

// Reset drops every room. Test hook.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.rooms = make(map[RoomKey]*room)
	r.mu.Unlock()
}
