package board

import (
	"errors"
	"fmt"

	"github.com/freeeve/pgn/v3"
)

// PGNReplayer replays SAN moves with github.com/freeeve/pgn.
type PGNReplayer struct{}

func (PGNReplayer) Start() Position {
	return positionFromFEN(pgn.NewStartingPosition().ToFEN())
}

func (PGNReplayer) Apply(pos Position, move string) (Position, error) {
	gs, err := pgn.NewGame(pos.FEN)
	if err != nil {
		return Position{}, fmt.Errorf("parse FEN %q: %w", pos.FEN, err)
	}
	san := cleanSAN(move)
	mv, err := pgn.ParseSAN(gs, san)
	if err != nil {
		return Position{}, &IllegalMoveError{FEN: pos.FEN, Move: move, Err: err}
	}
	if !isLegal(gs, mv) {
		return Position{}, &IllegalMoveError{FEN: pos.FEN, Move: move, Err: errors.New("not a legal move in this position")}
	}
	if err := pgn.ApplyMove(gs, mv); err != nil {
		return Position{}, &IllegalMoveError{FEN: pos.FEN, Move: move, Err: err}
	}
	return positionFromFEN(gs.ToFEN()), nil
}

// isLegal guards ApplyMove, which trusts ParseSAN's output for king moves,
// castling and malformed pawn moves.
func isLegal(gs *pgn.GameState, mv pgn.Mv) bool {
	for _, legal := range pgn.GenerateLegalMoves(gs) {
		if legal.From == mv.From && legal.To == mv.To && legal.Promo == mv.Promo {
			return true
		}
	}
	return false
}
