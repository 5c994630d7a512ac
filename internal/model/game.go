package model

import (
	"errors"
)

var (
	ErrOutOfBounds = errors.New("point out of bounds")
	ErrSpotTaken   = errors.New("spot already taken")
)

// WinnerDetails describes a finished game's winning run: the side that won
// and the contiguous points of the first qualifying run, in line order.
type WinnerDetails struct {
	Side   Side    `json:"side"`
	Points []Point `json:"points"`
}

// Game holds one five-in-a-row game: the append-only step history, the
// board derived from it, and a lazily recomputed winner.
//
// The game does not enforce whose turn it is against a particular user;
// callers check the acting role against CurrentSide before stepping.
type Game struct {
	Size        int
	InitialSide Side

	currentSide Side
	steps       []Point
	board       *Board

	winner      *WinnerDetails
	winnerStale bool
}

func NewGame(size int) *Game {
	return &Game{
		Size:        size,
		InitialSide: SideBlack,
		currentSide: SideBlack,
		steps:       make([]Point, 0),
		board:       NewBoard(size),
	}
}

func (g *Game) CurrentSide() Side {
	return g.currentSide
}

func (g *Game) Steps() []Point {
	return g.steps
}

func (g *Game) Board() *Board {
	return g.board
}

// AddStep places the current side's stone at p. It fails with
// ErrOutOfBounds or ErrSpotTaken and otherwise appends the step,
// invalidates the cached winner and flips the side to move.
func (g *Game) AddStep(p Point) error {
	if !g.board.Contains(p) {
		return ErrOutOfBounds
	}
	if g.board.At(p) != SpotEmpty {
		return ErrSpotTaken
	}

	g.board.set(p, g.currentSide.Spot())
	g.steps = append(g.steps, p)
	g.winnerStale = true
	g.currentSide = g.currentSide.Other()
	return nil
}

// Winner returns the winning run, or nil if nobody has won. The scan is
// memoized and only rerun after the history changed.
func (g *Game) Winner() *WinnerDetails {
	if g.winnerStale {
		g.winner = scanWinner(g.board)
		g.winnerStale = false
	}
	return g.winner
}

// IsFinished reports whether the game is over: someone won, or the board
// filled up with no winner (a draw).
func (g *Game) IsFinished() bool {
	return g.Winner() != nil || g.board.IsFull()
}

type GameSnapshot struct {
	Size        int            `json:"size"`
	InitialSide Side           `json:"initialSide"`
	CurrentSide Side           `json:"currentSide"`
	Steps       []Point        `json:"steps"`
	Winner      *WinnerDetails `json:"winner,omitempty"`
}

func (g *Game) Snapshot() GameSnapshot {
	return GameSnapshot{
		Size:        g.Size,
		InitialSide: g.InitialSide,
		CurrentSide: g.currentSide,
		Steps:       g.steps,
		Winner:      g.Winner(),
	}
}

// scanWinner searches every maximal line of the board for a run of at
// least five same-colored stones. Lines are visited in a fixed order:
// rows by increasing x, columns by increasing y, down-sloping diagonals
// then up-sloping diagonals by increasing offset. Within a line the first
// qualifying run wins, so a move completing two lines at once always
// resolves to the same one.
func scanWinner(b *Board) *WinnerDetails {
	n := b.Size
	for x := 0; x < n; x++ {
		if w := scanLine(b, Point{X: x, Y: 0}, 0, 1); w != nil {
			return w
		}
	}
	for y := 0; y < n; y++ {
		if w := scanLine(b, Point{X: 0, Y: y}, 1, 0); w != nil {
			return w
		}
	}
	for d := -(n - 1); d <= n-1; d++ {
		start := Point{X: max(d, 0), Y: max(-d, 0)}
		if w := scanLine(b, start, 1, 1); w != nil {
			return w
		}
	}
	for d := 0; d <= 2*(n-1); d++ {
		start := Point{X: max(d-(n-1), 0), Y: min(d, n-1)}
		if w := scanLine(b, start, 1, -1); w != nil {
			return w
		}
	}
	return nil
}

// scanLine walks one line from start in direction (dx, dy) and returns the
// first run of >=5 consecutive same-colored stones, or nil.
func scanLine(b *Board, start Point, dx, dy int) *WinnerDetails {
	var run []Point
	var runSpot Spot

	for p := start; b.Contains(p); p = (Point{X: p.X + dx, Y: p.Y + dy}) {
		s := b.At(p)
		if s != runSpot {
			if runSpot != SpotEmpty && len(run) >= 5 {
				break
			}
			run = nil
			runSpot = s
		}
		if s != SpotEmpty {
			run = append(run, p)
		}
	}

	if runSpot != SpotEmpty && len(run) >= 5 {
		return &WinnerDetails{Side: Side(runSpot), Points: run}
	}
	return nil
}
