package model

// Role identifies what a user joined a room as. Parsed from the wire as a
// bounded integer; anything outside {1, 2, 3} is rejected.
type Role int

const (
	RolePlayer1   Role = 1
	RolePlayer2   Role = 2
	RoleSpectator Role = 3
)

// ParseRole returns the role for a wire value, or false for anything
// outside the closed set. There is no default role.
func ParseRole(v int) (Role, bool) {
	switch Role(v) {
	case RolePlayer1, RolePlayer2, RoleSpectator:
		return Role(v), true
	default:
		return 0, false
	}
}

// Side returns the stone color a player role moves for. Spectators have
// no side.
func (r Role) Side() (Side, bool) {
	switch r {
	case RolePlayer1:
		return SideBlack, true
	case RolePlayer2:
		return SideWhite, true
	default:
		return 0, false
	}
}

func (r Role) IsPlayer() bool {
	return r == RolePlayer1 || r == RolePlayer2
}

// User is one participant. The ID is assigned by the server when the join
// command is accepted, never by the client. IsConnected tracks whether a
// live transport connection is currently bound to this user.
type User struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname,omitempty"`
	IsConnected bool   `json:"isConnected"`
}
