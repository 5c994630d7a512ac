package model

// Side is a stone color. Serialized as an integer to match the role values
// on the wire (Player1 plays black, Player2 plays white).
type Side int

const (
	SideBlack Side = 1
	SideWhite Side = 2
)

func (s Side) Other() Side {
	if s == SideBlack {
		return SideWhite
	}
	return SideBlack
}

// Spot is the content of one board cell.
type Spot int

const (
	SpotEmpty Spot = 0
	SpotBlack Spot = 1
	SpotWhite Spot = 2
)

func (s Side) Spot() Spot {
	return Spot(s)
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Board is a size x size grid of spots. It is derived state: the game
// replays its step history into it and never mutates it any other way.
type Board struct {
	Size  int
	spots [][]Spot
}

func NewBoard(size int) *Board {
	spots := make([][]Spot, size)
	for i := range spots {
		spots[i] = make([]Spot, size)
	}
	return &Board{Size: size, spots: spots}
}

func (b *Board) Contains(p Point) bool {
	return p.X >= 0 && p.X < b.Size && p.Y >= 0 && p.Y < b.Size
}

// At returns the spot at p. Caller must have bounds-checked p.
func (b *Board) At(p Point) Spot {
	return b.spots[p.X][p.Y]
}

func (b *Board) set(p Point, s Spot) {
	b.spots[p.X][p.Y] = s
}

func (b *Board) IsFull() bool {
	for _, row := range b.spots {
		for _, s := range row {
			if s == SpotEmpty {
				return false
			}
		}
	}
	return true
}
