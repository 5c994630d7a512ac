package controller

import (
	"encoding/json"
	"sync"

	"github.com/PeterKeDer/connect-5-server/internal/model"
	"github.com/PeterKeDer/connect-5-server/internal/service"
	"github.com/PeterKeDer/connect-5-server/internal/ws"
	"github.com/gofiber/websocket/v2"
	"github.com/labstack/gommon/log"
)

// syncConn serializes writes to one websocket connection. Room broadcasts
// arrive on other connections' goroutines while replies come from this
// connection's own read loop, and the underlying conn permits only one
// writer at a time.
type syncConn struct {
	mu   sync.Mutex
	conn service.Conn
}

func newSyncConn(conn service.Conn) *syncConn {
	return &syncConn{conn: conn}
}

func (c *syncConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type WebSocketController struct {
	roomService *service.RoomService
}

func NewWebSocketController(roomService *service.RoomService) *WebSocketController {
	return &WebSocketController{
		roomService: roomService,
	}
}

// HandleConnection is called when a new WebSocket connection is established.
// The connection must present a user id issued by a create/join command;
// anything else is rejected and closed.
func (wsc *WebSocketController) HandleConnection(c *websocket.Conn) {
	roomID := c.Params("roomId")
	userID := c.Query("userId")

	conn := newSyncConn(c)
	if _, err := wsc.roomService.Connect(roomID, userID, conn); err != nil {
		log.Infof("rejecting connection to room %s: %v", roomID, err)
		_ = conn.WriteJSON(ws.NewErrorMessage(err.Error()))
		c.Close()
		return
	}

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ws.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Warnf("parse error: %v", err)
			continue
		}

		if wsc.handleMessage(conn, userID, msg) {
			break
		}
	}

	// No-op if the user already left explicitly.
	wsc.roomService.Disconnect(userID)
	c.Close()
}

// handleMessage dispatches one incoming command. Returns true once the
// connection should stop reading (explicit leave).
func (wsc *WebSocketController) handleMessage(conn *syncConn, userID string, msg ws.Message) bool {
	switch msg.Type {
	case ws.MessageTypeMove:
		var point model.Point
		if err := json.Unmarshal(msg.Payload, &point); err != nil {
			_ = conn.WriteJSON(ws.NewErrorMessage("invalid_move"))
			return false
		}
		wsc.roomService.HandleMove(userID, point)

	case ws.MessageTypeRestart:
		wsc.roomService.HandleRestart(userID)

	case ws.MessageTypeLeave:
		wsc.roomService.HandleLeave(userID)
		return true

	default:
		log.Warnf("unknown message type: %s", msg.Type)
	}
	return false
}
