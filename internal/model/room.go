package model

import "sync"

const (
	MinBoardSize = 9
	MaxBoardSize = 19
)

// RoomSettings are fixed at room creation.
type RoomSettings struct {
	BoardSize       int  `json:"boardSize"`
	AllowSpectators bool `json:"allowSpectators"`
	IsPublic        bool `json:"isPublic"`
}

func (s RoomSettings) Valid() bool {
	return s.BoardSize >= MinBoardSize && s.BoardSize <= MaxBoardSize
}

// Room owns one game's lifecycle: two player seats, a spectator set, the
// current (or finished) game and the restart votes.
//
// Room does no locking of its own. The mutex serializes every operation
// against the room; the service holds it for the duration of each command
// so that composite steps (move then end-game, vote then reset) never
// interleave with another connection's command.
type Room struct {
	mu sync.Mutex

	ID       string
	Settings RoomSettings

	Player1    *User
	Player2    *User
	Spectators map[string]*User

	Game       *Game
	InProgress bool

	Player1Restart bool
	Player2Restart bool
}

func NewRoom(id string, settings RoomSettings) *Room {
	return &Room{
		ID:         id,
		Settings:   settings,
		Spectators: make(map[string]*User),
	}
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// OnUserJoin seats the user for the role. Player seats can only be taken
// while empty and while no game is in progress; spectators only if the
// room allows them. Returns false if the join must be rejected.
func (r *Room) OnUserJoin(role Role, user *User) bool {
	switch role {
	case RolePlayer1:
		if r.Player1 != nil || r.InProgress {
			return false
		}
		r.Player1 = user
	case RolePlayer2:
		if r.Player2 != nil || r.InProgress {
			return false
		}
		r.Player2 = user
	case RoleSpectator:
		if !r.Settings.AllowSpectators {
			return false
		}
		r.Spectators[user.ID] = user
	default:
		return false
	}
	return true
}

// OnUserLeave clears the user's seat and, for players, their restart vote.
func (r *Room) OnUserLeave(role Role, user *User) {
	switch role {
	case RolePlayer1:
		if r.Player1 != nil && r.Player1.ID == user.ID {
			r.Player1 = nil
			r.Player1Restart = false
		}
	case RolePlayer2:
		if r.Player2 != nil && r.Player2.ID == user.ID {
			r.Player2 = nil
			r.Player2Restart = false
		}
	case RoleSpectator:
		delete(r.Spectators, user.ID)
	}
}

// UserForRole returns the seated user for a player role, or the spectator
// with the given id.
func (r *Room) UserForRole(role Role, userID string) *User {
	switch role {
	case RolePlayer1:
		return r.Player1
	case RolePlayer2:
		return r.Player2
	case RoleSpectator:
		return r.Spectators[userID]
	}
	return nil
}

func (r *Room) IsEmpty() bool {
	return r.Player1 == nil && r.Player2 == nil && len(r.Spectators) == 0
}

func (r *Room) CanStartGame() bool {
	return r.Player1 != nil && r.Player2 != nil
}

func (r *Room) StartGame() {
	r.Game = NewGame(r.Settings.BoardSize)
	r.InProgress = true
}

// EndGame stops play but keeps the finished game readable until reset.
func (r *Room) EndGame() {
	r.InProgress = false
}

// SetRestart records a player's restart vote. Returns false if the vote
// was already cast or the role holds no vote.
func (r *Room) SetRestart(role Role) bool {
	switch role {
	case RolePlayer1:
		if r.Player1Restart {
			return false
		}
		r.Player1Restart = true
	case RolePlayer2:
		if r.Player2Restart {
			return false
		}
		r.Player2Restart = true
	default:
		return false
	}
	return true
}

// CanResetGame holds once a finished game exists and every occupied player
// seat has voted to restart.
func (r *Room) CanResetGame() bool {
	if r.Game == nil || r.InProgress {
		return false
	}
	if r.Player1 != nil && !r.Player1Restart {
		return false
	}
	if r.Player2 != nil && !r.Player2Restart {
		return false
	}
	return true
}

// ResetGame discards the finished game and clears both votes. If both
// seats are still filled the next game starts immediately, collapsing
// "reset then start" into one step. Reports whether a new game started.
func (r *Room) ResetGame() bool {
	r.Game = nil
	r.Player1Restart = false
	r.Player2Restart = false
	if r.CanStartGame() {
		r.StartGame()
		return true
	}
	return false
}

type RoomSnapshot struct {
	ID             string        `json:"id"`
	Settings       RoomSettings  `json:"settings"`
	Player1        *User         `json:"player1,omitempty"`
	Player2        *User         `json:"player2,omitempty"`
	Spectators     []*User       `json:"spectators"`
	Game           *GameSnapshot `json:"game,omitempty"`
	InProgress     bool          `json:"inProgress"`
	Player1Restart bool          `json:"player1Restart"`
	Player2Restart bool          `json:"player2Restart"`
}

// Snapshot captures the room state for the wire. Caller must hold the
// room lock.
func (r *Room) Snapshot() RoomSnapshot {
	snap := RoomSnapshot{
		ID:             r.ID,
		Settings:       r.Settings,
		Player1:        r.Player1,
		Player2:        r.Player2,
		Spectators:     make([]*User, 0, len(r.Spectators)),
		InProgress:     r.InProgress,
		Player1Restart: r.Player1Restart,
		Player2Restart: r.Player2Restart,
	}
	for _, u := range r.Spectators {
		snap.Spectators = append(snap.Spectators, u)
	}
	if r.Game != nil {
		gs := r.Game.Snapshot()
		snap.Game = &gs
	}
	return snap
}
