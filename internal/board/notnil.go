package board

import (
	"fmt"

	"github.com/notnil/chess"
)

// NotnilReplayer replays SAN moves with github.com/notnil/chess.
type NotnilReplayer struct{}

func (NotnilReplayer) Start() Position {
	return fromNotnil(chess.NewGame().Position())
}

func (NotnilReplayer) Apply(pos Position, move string) (Position, error) {
	opt, err := chess.FEN(pos.FEN)
	if err != nil {
		return Position{}, fmt.Errorf("parse FEN %q: %w", pos.FEN, err)
	}
	g := chess.NewGame(opt)
	if err := g.MoveStr(cleanSAN(move)); err != nil {
		return Position{}, &IllegalMoveError{FEN: pos.FEN, Move: move, Err: err}
	}
	return fromNotnil(g.Position()), nil
}

func fromNotnil(p *chess.Position) Position {
	side := White
	if p.Turn() == chess.Black {
		side = Black
	}
	return Position{FEN: p.String(), SideToMove: side}
}
