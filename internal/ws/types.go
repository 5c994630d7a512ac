package ws

import (
	"encoding/json"

	"github.com/PeterKeDer/connect-5-server/internal/model"
)

// MessageType represents the different kinds of messages our system can handle
type MessageType string

const (
	// Client -> server
	MessageTypeMove    MessageType = "move"
	MessageTypeRestart MessageType = "restart"
	MessageTypeLeave   MessageType = "leave"

	// Server -> client
	MessageTypeRoomUpdate MessageType = "room-update"
	MessageTypeError      MessageType = "error"
)

// Message represents a WebSocket message in our system
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EventDescription names a room lifecycle event.
type EventDescription string

const (
	EventUserJoined       EventDescription = "user-joined"
	EventUserLeft         EventDescription = "user-left"
	EventUserDisconnected EventDescription = "user-disconnected"
	EventUserReconnected  EventDescription = "user-reconnected"
	EventUserSetRestart   EventDescription = "user-set-restart"
	EventStartGame        EventDescription = "start-game"
	EventStepAdded        EventDescription = "step-added"
	EventGameEnded        EventDescription = "game-ended"
	EventGameReset        EventDescription = "game-reset"
)

// RoomEvent is what happened; broadcasts always pair it with the room
// snapshot taken right after the event completed.
type RoomEvent struct {
	Description EventDescription `json:"description"`
	User        *model.User      `json:"user,omitempty"`
	Role        model.Role       `json:"role,omitempty"`
}

type RoomUpdate struct {
	Event RoomEvent          `json:"event"`
	Room  model.RoomSnapshot `json:"room"`
}

type ErrorPayload struct {
	Code string `json:"code"`
}

// NewRoomUpdateMessage builds the broadcast message for an event.
func NewRoomUpdateMessage(event RoomEvent, room model.RoomSnapshot) Message {
	payload, _ := json.Marshal(RoomUpdate{Event: event, Room: room})
	return Message{Type: MessageTypeRoomUpdate, Payload: payload}
}

// NewErrorMessage builds a single-connection error message.
func NewErrorMessage(code string) Message {
	payload, _ := json.Marshal(ErrorPayload{Code: code})
	return Message{Type: MessageTypeError, Payload: payload}
}
