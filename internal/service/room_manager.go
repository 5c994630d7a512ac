package service

import (
	"errors"
	"sync"

	"github.com/PeterKeDer/connect-5-server/internal/model"
)

var (
	ErrRoomIDTaken  = errors.New("room_id_taken")
	ErrRoomNotFound = errors.New("room_not_found")
)

// RoomManager is the in-memory room directory. It only guards the map;
// room state itself is serialized by each room's own lock.
type RoomManager struct {
	rooms map[string]*model.Room
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*model.Room),
	}
}

// Insert adds a room to the directory. A room is invisible to Find and
// ListPublic until inserted, so callers can finish setting it up first.
func (rm *RoomManager) Insert(room *model.Room) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.rooms[room.ID]; exists {
		return ErrRoomIDTaken
	}

	rm.rooms[room.ID] = room
	return nil
}

func (rm *RoomManager) Find(id string) (*model.Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, exists := rm.rooms[id]
	return room, exists
}

func (rm *RoomManager) ListPublic() []*model.Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rooms := make([]*model.Room, 0)
	for _, room := range rm.rooms {
		if room.Settings.IsPublic {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

func (rm *RoomManager) Remove(id string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	delete(rm.rooms, id)
}
