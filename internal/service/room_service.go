package service

import (
	"errors"
	"sync"

	"github.com/PeterKeDer/connect-5-server/internal/model"
	"github.com/PeterKeDer/connect-5-server/internal/ws"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// Conn is the slice of a websocket connection the coordinator writes to.
type Conn interface {
	WriteJSON(v interface{}) error
}

var (
	ErrJoinRejected      = errors.New("join_failed")
	ErrInvalidUserID     = errors.New("invalid_user_id")
	ErrConnectionTimeout = errors.New("connection_timeout")
)

// activeConn binds a live transport connection to the seat it is acting
// for. Only users in the Active state have one.
type activeConn struct {
	conn Conn
	room *model.Room
	role model.Role
	user *model.User
}

// RoomService coordinates transport events, the session registry and the
// rooms. Commands against one room run under that room's lock for their
// full duration, so broadcasts go out in the order operations complete.
type RoomService struct {
	manager  *RoomManager
	registry *SessionRegistry
	pool     *workerpool.WorkerPool

	mu     sync.Mutex
	active map[string]*activeConn
}

func NewRoomService(manager *RoomManager, registry *SessionRegistry, pool *workerpool.WorkerPool) *RoomService {
	return &RoomService{
		manager:  manager,
		registry: registry,
		pool:     pool,
		active:   make(map[string]*activeConn),
	}
}

// CreateRoom creates the room and admits its first user as pending. The
// room only enters the directory once the creator is seated, so joins
// can never observe a half-created room.
func (s *RoomService) CreateRoom(roomID string, settings model.RoomSettings, role model.Role, nickname string) (*model.User, model.RoomSnapshot, error) {
	room := model.NewRoom(roomID, settings)

	user, snap, err := s.admit(room, role, nickname)
	if err != nil {
		return nil, model.RoomSnapshot{}, err
	}

	if err := s.manager.Insert(room); err != nil {
		s.registry.Remove(user.ID)
		return nil, model.RoomSnapshot{}, err
	}
	return user, snap, nil
}

// JoinRoom seats a new user in an existing room and registers them as
// pending until their transport connects.
func (s *RoomService) JoinRoom(roomID string, role model.Role, nickname string) (*model.User, model.RoomSnapshot, error) {
	room, ok := s.manager.Find(roomID)
	if !ok {
		return nil, model.RoomSnapshot{}, ErrRoomNotFound
	}
	return s.admit(room, role, nickname)
}

func (s *RoomService) admit(room *model.Room, role model.Role, nickname string) (*model.User, model.RoomSnapshot, error) {
	user := &model.User{ID: uuid.New().String(), Nickname: nickname}

	room.Lock()
	defer room.Unlock()

	if !room.OnUserJoin(role, user) {
		return nil, model.RoomSnapshot{}, ErrJoinRejected
	}
	s.registry.AddPending(user, room, role, s.expireSession)
	return user, room.Snapshot(), nil
}

// expireSession is the registry's expiry callback: the grace window ran
// out, so the user is fully removed from their room.
func (s *RoomService) expireSession(sess *Session) {
	s.pool.Submit(func() {
		log.Infof("session expired for user %s in room %s", sess.User.ID, sess.Room.ID)
		s.fullLeave(sess.Room, sess.Role, sess.User)
	})
}

// Connect resolves a presented user id against the registry and binds the
// connection to the user's seat. Returns the role the connection acts as.
func (s *RoomService) Connect(roomID, userID string, conn Conn) (model.Role, error) {
	sess, state := s.registry.Resolve(userID)
	if state == SessionNotFound {
		return 0, ErrConnectionTimeout
	}

	if sess.Room.ID != roomID {
		// The entry is consumed either way; vacate whatever it held.
		s.pool.Submit(func() { s.fullLeave(sess.Room, sess.Role, sess.User) })
		return 0, ErrInvalidUserID
	}

	room := sess.Room
	room.Lock()
	defer room.Unlock()

	sess.User.IsConnected = true

	s.mu.Lock()
	s.active[userID] = &activeConn{conn: conn, room: room, role: sess.Role, user: sess.User}
	s.mu.Unlock()

	desc := ws.EventUserJoined
	if state == SessionDisconnected {
		desc = ws.EventUserReconnected
	}
	s.broadcast(room, ws.RoomEvent{Description: desc, User: sess.User, Role: sess.Role})

	// The first game begins once both seats are filled and both players
	// actually have a live connection.
	if room.Game == nil && room.CanStartGame() && room.Player1.IsConnected && room.Player2.IsConnected {
		room.StartGame()
		s.broadcast(room, ws.RoomEvent{Description: ws.EventStartGame})
	}
	return sess.Role, nil
}

// Disconnect moves an active user into the disconnect grace period. A
// player dropping mid-game ends the game immediately; the seat itself
// survives until the grace window expires.
func (s *RoomService) Disconnect(userID string) {
	ac := s.takeActive(userID)
	if ac == nil {
		return
	}

	room := ac.room
	room.Lock()
	defer room.Unlock()

	ac.user.IsConnected = false
	s.broadcast(room, ws.RoomEvent{Description: ws.EventUserDisconnected, User: ac.user, Role: ac.role})

	if ac.role.IsPlayer() && room.InProgress {
		room.EndGame()
		s.broadcast(room, ws.RoomEvent{Description: ws.EventGameEnded})
	}

	s.registry.AddDisconnected(ac.user, room, ac.role, s.expireSession)
}

// HandleMove applies a move command from an active connection. Moves out
// of turn or rejected by the engine notify the sender only; moves that
// make no sense at all (spectator, no game) are dropped.
func (s *RoomService) HandleMove(userID string, point model.Point) {
	ac := s.lookupActive(userID)
	if ac == nil {
		return
	}

	room := ac.room
	room.Lock()
	defer room.Unlock()

	if !ac.role.IsPlayer() || !room.InProgress || room.Game == nil || room.Game.IsFinished() {
		return
	}

	side, ok := ac.role.Side()
	if !ok || room.Game.CurrentSide() != side {
		s.send(ac.conn, ws.NewErrorMessage("invalid_move"))
		return
	}

	if err := room.Game.AddStep(point); err != nil {
		s.send(ac.conn, ws.NewErrorMessage("invalid_move"))
		return
	}

	s.broadcast(room, ws.RoomEvent{Description: ws.EventStepAdded, User: ac.user, Role: ac.role})

	if room.Game.IsFinished() {
		room.EndGame()
		s.broadcast(room, ws.RoomEvent{Description: ws.EventGameEnded})
	}
}

// HandleRestart records a restart vote. Once every seated player has
// voted, the room resets and, with both seats filled, starts the next
// game in the same step.
func (s *RoomService) HandleRestart(userID string) {
	ac := s.lookupActive(userID)
	if ac == nil {
		return
	}

	room := ac.room
	room.Lock()
	defer room.Unlock()

	if !ac.role.IsPlayer() || room.Game == nil || room.InProgress {
		return
	}
	if !room.SetRestart(ac.role) {
		return
	}

	didReset, started := false, false
	if room.CanResetGame() {
		started = room.ResetGame()
		didReset = true
	}

	s.broadcast(room, ws.RoomEvent{Description: ws.EventUserSetRestart, User: ac.user, Role: ac.role})
	if started {
		s.broadcast(room, ws.RoomEvent{Description: ws.EventStartGame})
	} else if didReset {
		s.broadcast(room, ws.RoomEvent{Description: ws.EventGameReset})
	}
}

// HandleLeave removes a user immediately, skipping any grace period.
func (s *RoomService) HandleLeave(userID string) {
	ac := s.takeActive(userID)
	if ac == nil {
		return
	}
	s.fullLeave(ac.room, ac.role, ac.user)
}

// fullLeave is the single terminal path out of a room, shared by explicit
// leave and both expiry flavors.
func (s *RoomService) fullLeave(room *model.Room, role model.Role, user *model.User) {
	room.Lock()
	defer room.Unlock()

	s.registry.Remove(user.ID)
	s.takeActive(user.ID)
	room.OnUserLeave(role, user)

	if room.IsEmpty() {
		s.manager.Remove(room.ID)
		log.Infof("room %s is empty, removed", room.ID)
		return
	}

	if role.IsPlayer() && room.InProgress {
		room.EndGame()
		s.broadcast(room, ws.RoomEvent{Description: ws.EventGameEnded})
	} else if room.CanResetGame() {
		room.ResetGame()
		s.broadcast(room, ws.RoomEvent{Description: ws.EventGameReset})
	}

	s.broadcast(room, ws.RoomEvent{Description: ws.EventUserLeft, User: user, Role: role})
}

// GetRoomSnapshot returns the current state of a room.
func (s *RoomService) GetRoomSnapshot(roomID string) (model.RoomSnapshot, error) {
	room, ok := s.manager.Find(roomID)
	if !ok {
		return model.RoomSnapshot{}, ErrRoomNotFound
	}
	room.Lock()
	defer room.Unlock()
	return room.Snapshot(), nil
}

// ListPublicRooms returns snapshots of all public rooms, for the lobby.
func (s *RoomService) ListPublicRooms() []model.RoomSnapshot {
	rooms := s.manager.ListPublic()
	snaps := make([]model.RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		room.Lock()
		snaps = append(snaps, room.Snapshot())
		room.Unlock()
	}
	return snaps
}

func (s *RoomService) lookupActive(userID string) *activeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[userID]
}

func (s *RoomService) takeActive(userID string) *activeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac := s.active[userID]
	delete(s.active, userID)
	return ac
}

// broadcast sends the event plus a fresh snapshot to every connection in
// the room. Caller holds the room lock, which keeps per-room broadcast
// order equal to operation order.
func (s *RoomService) broadcast(room *model.Room, event ws.RoomEvent) {
	msg := ws.NewRoomUpdateMessage(event, room.Snapshot())

	s.mu.Lock()
	conns := make([]Conn, 0, len(s.active))
	for _, ac := range s.active {
		if ac.room.ID == room.ID {
			conns = append(conns, ac.conn)
		}
	}
	s.mu.Unlock()

	for _, conn := range conns {
		s.send(conn, msg)
	}
}

func (s *RoomService) send(conn Conn, msg ws.Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Warnf("websocket write failed: %v", err)
	}
}
