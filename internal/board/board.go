// Package board replays games move by move and renders positions as FEN.
// Chess rules come from a board library; this package only adapts it.
package board

import (
	"fmt"
	"strings"
)

// Color is the side to move.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an immutable board state.
type Position struct {
	FEN        string `json:"fen"`
	SideToMove Color  `json:"side_to_move"`
}

// Replayer applies moves to positions.
type Replayer interface {
	Start() Position
	// Apply returns the position after move, or an *IllegalMoveError.
	Apply(pos Position, move string) (Position, error)
}

// Replayer names accepted by NewReplayer.
const (
	ReplayerPGN    = "pgn"
	ReplayerNotnil = "notnil"
)

// NewReplayer returns the named replayer; "" selects pgn.
func NewReplayer(name string) (Replayer, error) {
	switch name {
	case "", ReplayerPGN:
		return PGNReplayer{}, nil
	case ReplayerNotnil:
		return NotnilReplayer{}, nil
	default:
		return nil, fmt.Errorf("unknown board replayer %q", name)
	}
}

// IllegalMoveError reports a move the board library refused.
type IllegalMoveError struct {
	FEN  string
	Move string
	Err  error
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %q in %s: %v", e.Move, e.FEN, e.Err)
}

func (e *IllegalMoveError) Unwrap() error { return e.Err }

func positionFromFEN(fen string) Position {
	side := White
	if f := strings.Fields(fen); len(f) > 1 && f[1] == "b" {
		side = Black
	}
	return Position{FEN: fen, SideToMove: side}
}

// cleanSAN drops check, mate and annotation suffixes.
func cleanSAN(san string) string {
	return strings.TrimRight(strings.TrimSpace(san), "+#!?")
}
