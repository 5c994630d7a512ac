package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/PeterKeDer/connect-5-server/internal/model"
	"github.com/PeterKeDer/connect-5-server/internal/ws"
	"github.com/gammazero/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records everything the coordinator writes to it.
type fakeConn struct {
	mu       sync.Mutex
	messages []ws.Message
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, v.(ws.Message))
	return nil
}

// events returns the descriptions of all room updates received so far.
func (f *fakeConn) events(t *testing.T) []ws.EventDescription {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []ws.EventDescription
	for _, msg := range f.messages {
		if msg.Type != ws.MessageTypeRoomUpdate {
			continue
		}
		var update ws.RoomUpdate
		require.NoError(t, json.Unmarshal(msg.Payload, &update))
		events = append(events, update.Event.Description)
	}
	return events
}

func (f *fakeConn) lastUpdate(t *testing.T) ws.RoomUpdate {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].Type != ws.MessageTypeRoomUpdate {
			continue
		}
		var update ws.RoomUpdate
		require.NoError(t, json.Unmarshal(f.messages[i].Payload, &update))
		return update
	}
	t.Fatal("no room update received")
	return ws.RoomUpdate{}
}

func (f *fakeConn) errorCodes(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var codes []string
	for _, msg := range f.messages {
		if msg.Type != ws.MessageTypeError {
			continue
		}
		var payload ws.ErrorPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		codes = append(codes, payload.Code)
	}
	return codes
}

func newTestService() *RoomService {
	return NewRoomService(
		NewRoomManager(),
		NewSessionRegistry(200*time.Millisecond, 400*time.Millisecond),
		workerpool.New(4),
	)
}

func testRoomSettings() model.RoomSettings {
	return model.RoomSettings{BoardSize: 9, AllowSpectators: true, IsPublic: true}
}

// setupGame creates a room, connects both players and waits for the game
// to start.
func setupGame(t *testing.T, s *RoomService) (p1, p2 string, c1, c2 *fakeConn) {
	t.Helper()

	u1, _, err := s.CreateRoom("room1", testRoomSettings(), model.RolePlayer1, "alice")
	require.NoError(t, err)
	u2, _, err := s.JoinRoom("room1", model.RolePlayer2, "bob")
	require.NoError(t, err)

	c1, c2 = &fakeConn{}, &fakeConn{}
	_, err = s.Connect("room1", u1.ID, c1)
	require.NoError(t, err)
	_, err = s.Connect("room1", u2.ID, c2)
	require.NoError(t, err)

	require.Contains(t, c1.events(t), ws.EventStartGame)
	return u1.ID, u2.ID, c1, c2
}

func TestCreateRoomDuplicateID(t *testing.T) {
	s := newTestService()

	u1, _, err := s.CreateRoom("room1", testRoomSettings(), model.RolePlayer1, "")
	require.NoError(t, err)
	_, _, err = s.CreateRoom("room1", testRoomSettings(), model.RolePlayer1, "")
	assert.ErrorIs(t, err, ErrRoomIDTaken)

	// The loser's pending entry is cleaned up; only the winner's remains.
	s.registry.mu.Lock()
	pending := len(s.registry.pending)
	s.registry.mu.Unlock()
	assert.Equal(t, 1, pending)

	// The winning room is untouched and its creator can still connect.
	_, err = s.Connect("room1", u1.ID, &fakeConn{})
	require.NoError(t, err)
	snap, err := s.GetRoomSnapshot("room1")
	require.NoError(t, err)
	require.NotNil(t, snap.Player1)
	assert.Equal(t, u1.ID, snap.Player1.ID)
}

func TestJoinRoomNotFound(t *testing.T) {
	s := newTestService()
	_, _, err := s.JoinRoom("nope", model.RolePlayer1, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRejections(t *testing.T) {
	s := newTestService()

	settings := testRoomSettings()
	settings.AllowSpectators = false
	_, _, err := s.CreateRoom("room1", settings, model.RolePlayer1, "")
	require.NoError(t, err)

	_, _, err = s.JoinRoom("room1", model.RolePlayer1, "")
	assert.ErrorIs(t, err, ErrJoinRejected, "seat already claimed")

	_, _, err = s.JoinRoom("room1", model.RoleSpectator, "")
	assert.ErrorIs(t, err, ErrJoinRejected, "spectators not allowed")

	_, _, err = s.JoinRoom("room1", model.RolePlayer2, "")
	assert.NoError(t, err)
}

func TestCreateRoomRejectedJoinLeavesNoRoom(t *testing.T) {
	s := newTestService()

	settings := testRoomSettings()
	settings.AllowSpectators = false
	_, _, err := s.CreateRoom("room1", settings, model.RoleSpectator, "")
	require.ErrorIs(t, err, ErrJoinRejected)

	_, ok := s.manager.Find("room1")
	assert.False(t, ok, "a rejected create must never publish the room")

	// The id stays free for a valid create.
	_, _, err = s.CreateRoom("room1", testRoomSettings(), model.RolePlayer1, "")
	assert.NoError(t, err)
}

func TestConnectUnknownUserTimesOut(t *testing.T) {
	s := newTestService()
	_, err := s.Connect("room1", "ghost", &fakeConn{})
	assert.ErrorIs(t, err, ErrConnectionTimeout)
}

func TestConnectWrongRoomRejected(t *testing.T) {
	s := newTestService()

	u1, _, err := s.CreateRoom("room1", testRoomSettings(), model.RolePlayer1, "")
	require.NoError(t, err)
	_, _, err = s.CreateRoom("room2", testRoomSettings(), model.RolePlayer1, "")
	require.NoError(t, err)

	_, err = s.Connect("room2", u1.ID, &fakeConn{})
	assert.ErrorIs(t, err, ErrInvalidUserID)

	// The entry was consumed; the right room no longer accepts it either,
	// and the now-vacated room disappears.
	_, err = s.Connect("room1", u1.ID, &fakeConn{})
	assert.ErrorIs(t, err, ErrConnectionTimeout)

	assert.Eventually(t, func() bool {
		_, ok := s.manager.Find("room1")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestConnectPromotesPendingAndStartsGame(t *testing.T) {
	s := newTestService()
	_, _, c1, _ := setupGame(t, s)

	events := c1.events(t)
	assert.Contains(t, events, ws.EventUserJoined)
	assert.Contains(t, events, ws.EventStartGame)

	update := c1.lastUpdate(t)
	assert.True(t, update.Room.InProgress)
	require.NotNil(t, update.Room.Game)
	assert.Equal(t, model.SideBlack, update.Room.Game.CurrentSide)

	// Promoted entries never expire: well past the pending window both
	// seats are still occupied.
	time.Sleep(300 * time.Millisecond)
	snap, err := s.GetRoomSnapshot("room1")
	require.NoError(t, err)
	assert.NotNil(t, snap.Player1)
	assert.NotNil(t, snap.Player2)
}

func TestPendingExpiryRemovesEmptyRoom(t *testing.T) {
	s := newTestService()

	u1, _, err := s.CreateRoom("room1", testRoomSettings(), model.RolePlayer1, "")
	require.NoError(t, err)

	// No connection ever arrives.
	assert.Eventually(t, func() bool {
		_, ok := s.manager.Find("room1")
		return !ok
	}, time.Second, 10*time.Millisecond)

	_, err = s.Connect("room1", u1.ID, &fakeConn{})
	assert.ErrorIs(t, err, ErrConnectionTimeout)
}

func TestMoveFlow(t *testing.T) {
	s := newTestService()
	p1, p2, c1, c2 := setupGame(t, s)

	s.HandleMove(p1, model.Point{X: 0, Y: 0})
	assert.Contains(t, c2.events(t), ws.EventStepAdded)
	update := c2.lastUpdate(t)
	require.NotNil(t, update.Room.Game)
	assert.Equal(t, []model.Point{{X: 0, Y: 0}}, update.Room.Game.Steps)

	// Out of turn: the sender alone is notified, nothing is broadcast.
	before := len(c2.events(t))
	s.HandleMove(p1, model.Point{X: 1, Y: 0})
	assert.Equal(t, []string{"invalid_move"}, c1.errorCodes(t))
	assert.Len(t, c2.events(t), before)

	// Taken spot.
	s.HandleMove(p2, model.Point{X: 0, Y: 0})
	assert.Equal(t, []string{"invalid_move"}, c2.errorCodes(t))

	// Out of bounds.
	s.HandleMove(p2, model.Point{X: 9, Y: 0})
	assert.Equal(t, []string{"invalid_move", "invalid_move"}, c2.errorCodes(t))
}

func TestSpectatorCommandsAreIgnored(t *testing.T) {
	s := newTestService()
	_, _, c1, _ := setupGame(t, s)

	watcher, _, err := s.JoinRoom("room1", model.RoleSpectator, "watcher")
	require.NoError(t, err)
	cs := &fakeConn{}
	_, err = s.Connect("room1", watcher.ID, cs)
	require.NoError(t, err)

	before := len(c1.events(t))
	s.HandleMove(watcher.ID, model.Point{X: 3, Y: 3})
	s.HandleRestart(watcher.ID)

	assert.Len(t, c1.events(t), before)
	assert.Empty(t, cs.errorCodes(t))
}

// playBlackWin drives the game to a black win along x=0.
func playBlackWin(t *testing.T, s *RoomService, p1, p2 string) {
	t.Helper()
	white := []model.Point{{X: 8, Y: 8}, {X: 8, Y: 7}, {X: 8, Y: 6}, {X: 8, Y: 5}}
	for i := 0; i < 5; i++ {
		s.HandleMove(p1, model.Point{X: 0, Y: i})
		if i < len(white) {
			s.HandleMove(p2, white[i])
		}
	}
}

func TestWinEndsGame(t *testing.T) {
	s := newTestService()
	p1, p2, _, c2 := setupGame(t, s)

	playBlackWin(t, s, p1, p2)

	events := c2.events(t)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, ws.EventStepAdded, events[len(events)-2])
	assert.Equal(t, ws.EventGameEnded, events[len(events)-1])

	update := c2.lastUpdate(t)
	assert.False(t, update.Room.InProgress)
	require.NotNil(t, update.Room.Game)
	require.NotNil(t, update.Room.Game.Winner)
	assert.Equal(t, model.SideBlack, update.Room.Game.Winner.Side)
	assert.Equal(t, []model.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2}, {X: 0, Y: 3}, {X: 0, Y: 4}},
		update.Room.Game.Winner.Points)

	// Moves against a finished game are dropped.
	before := len(c2.events(t))
	s.HandleMove(p2, model.Point{X: 5, Y: 5})
	assert.Len(t, c2.events(t), before)
}

func TestRestartAutoStart(t *testing.T) {
	s := newTestService()
	p1, p2, c1, c2 := setupGame(t, s)
	playBlackWin(t, s, p1, p2)

	s.HandleRestart(p1)
	events := c2.events(t)
	assert.Equal(t, ws.EventUserSetRestart, events[len(events)-1], "one vote must not reset yet")

	s.HandleRestart(p2)
	events = c1.events(t)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, ws.EventUserSetRestart, events[len(events)-2])
	assert.Equal(t, ws.EventStartGame, events[len(events)-1], "reset with both seats filled starts immediately")
	assert.NotContains(t, events, ws.EventGameReset)

	update := c1.lastUpdate(t)
	assert.True(t, update.Room.InProgress)
	require.NotNil(t, update.Room.Game)
	assert.Empty(t, update.Room.Game.Steps)
	assert.Nil(t, update.Room.Game.Winner)
}

func TestRepeatRestartVoteIsNoOp(t *testing.T) {
	s := newTestService()
	p1, p2, _, c2 := setupGame(t, s)
	playBlackWin(t, s, p1, p2)

	s.HandleRestart(p1)
	before := len(c2.events(t))
	s.HandleRestart(p1)
	assert.Len(t, c2.events(t), before)
}

func TestDisconnectGraceAndReconnect(t *testing.T) {
	s := newTestService()
	p1, _, _, c2 := setupGame(t, s)

	s.HandleMove(p1, model.Point{X: 0, Y: 0})
	s.Disconnect(p1)

	events := c2.events(t)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, ws.EventUserDisconnected, events[len(events)-2])
	assert.Equal(t, ws.EventGameEnded, events[len(events)-1], "a player dropping mid-game ends it")

	update := c2.lastUpdate(t)
	require.NotNil(t, update.Room.Player1, "seat survives the grace period")
	assert.False(t, update.Room.Player1.IsConnected)

	// Reconnect inside the grace window restores the seat.
	c1b := &fakeConn{}
	role, err := s.Connect("room1", p1, c1b)
	require.NoError(t, err)
	assert.Equal(t, model.RolePlayer1, role)

	events = c2.events(t)
	assert.Equal(t, ws.EventUserReconnected, events[len(events)-1])
	update = c2.lastUpdate(t)
	require.NotNil(t, update.Room.Player1)
	assert.True(t, update.Room.Player1.IsConnected)
}

func TestDisconnectGraceExpiryClearsSeat(t *testing.T) {
	s := newTestService()
	p1, _, _, c2 := setupGame(t, s)

	s.HandleMove(p1, model.Point{X: 0, Y: 0})
	s.Disconnect(p1)

	assert.Eventually(t, func() bool {
		snap, err := s.GetRoomSnapshot("room1")
		return err == nil && snap.Player1 == nil
	}, 2*time.Second, 20*time.Millisecond)

	events := c2.events(t)
	assert.Equal(t, ws.EventUserLeft, events[len(events)-1])
}

func TestExplicitLeaveSkipsGrace(t *testing.T) {
	s := newTestService()
	p1, p2, c1, _ := setupGame(t, s)

	s.HandleLeave(p2)

	events := c1.events(t)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, ws.EventGameEnded, events[len(events)-2])
	assert.Equal(t, ws.EventUserLeft, events[len(events)-1])

	snap, err := s.GetRoomSnapshot("room1")
	require.NoError(t, err)
	assert.Nil(t, snap.Player2)
	assert.False(t, snap.InProgress)

	// The departed user's commands are dead.
	before := len(c1.events(t))
	s.HandleMove(p2, model.Point{X: 4, Y: 4})
	assert.Len(t, c1.events(t), before)

	// Last occupant leaving removes the room.
	s.HandleLeave(p1)
	_, ok := s.manager.Find("room1")
	assert.False(t, ok)
}

func TestListPublicRooms(t *testing.T) {
	s := newTestService()

	_, _, err := s.CreateRoom("pub", testRoomSettings(), model.RolePlayer1, "")
	require.NoError(t, err)

	private := testRoomSettings()
	private.IsPublic = false
	_, _, err = s.CreateRoom("priv", private, model.RolePlayer1, "")
	require.NoError(t, err)

	snaps := s.ListPublicRooms()
	require.Len(t, snaps, 1)
	assert.Equal(t, "pub", snaps[0].ID)
}
