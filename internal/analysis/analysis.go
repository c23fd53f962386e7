// Package analysis evaluates every position of a game with one engine session.
package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessgraph/depthscan/internal/board"
	"github.com/freeeve/chessgraph/depthscan/internal/coalesce"
	"github.com/freeeve/chessgraph/depthscan/internal/eco"
	"github.com/freeeve/chessgraph/depthscan/internal/engine"
	"github.com/freeeve/chessgraph/depthscan/internal/games"
)

// PositionAnalysis is the engine's view of one ply boundary.
type PositionAnalysis struct {
	Ply        int                                `json:"ply"`
	Move       string                             `json:"move,omitempty"` // move that led here; empty at ply 0
	FEN        string                             `json:"fen"`
	SideToMove board.Color                        `json:"side_to_move"`
	Candidates map[string]*coalesce.CandidateMove `json:"potential_moves"`
	BestMove   string                             `json:"bestmove,omitempty"`
}

// GameAnalysis is the persisted record for one game at one depth.
// Positions has exactly len(Game.Moves)+1 entries.
type GameAnalysis struct {
	Game       games.GameRecord   `json:"game"`
	Player     string             `json:"player"`
	Depth      int                `json:"depth"`
	Positions  []PositionAnalysis `json:"positions"`
	Opening    *eco.Opening       `json:"opening,omitempty"` // deepest named position reached
	Engine     string             `json:"engine"`
	AnalyzedAt time.Time          `json:"analyzed_at"`
	Elapsed    time.Duration      `json:"elapsed_ns"`
}

// Config configures an Analyzer.
type Config struct {
	Open     engine.Opener
	Replayer board.Replayer
	Engine   engine.Config
	Openings *eco.Database // optional
	Logger   zerolog.Logger
}

// Analyzer turns game records into GameAnalysis values.
type Analyzer struct {
	open     engine.Opener
	replayer board.Replayer
	engine   engine.Config
	openings *eco.Database
	log      zerolog.Logger
}

// New creates an Analyzer. A nil Opener uses the driver named in cfg.Engine;
// a nil Replayer uses the pgn replayer.
func New(cfg Config) *Analyzer {
	open := cfg.Open
	if open == nil {
		open = engine.NewOpener(cfg.Logger)
	}
	replayer := cfg.Replayer
	if replayer == nil {
		replayer = board.PGNReplayer{}
	}
	return &Analyzer{
		open:     open,
		replayer: replayer,
		engine:   cfg.Engine,
		openings: cfg.Openings,
		log:      cfg.Logger.With().Str("component", "analysis").Logger(),
	}
}

// Analyze evaluates the starting position and the position after every move
// of game to the given depth. The engine session lives exactly as long as the
// call. Any error aborts the whole game; no partial analysis is returned.
func (a *Analyzer) Analyze(game games.GameRecord, player string, depth int) (*GameAnalysis, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be positive, got %d", depth)
	}
	start := time.Now()
	log := a.log.With().Str("game_id", game.ID).Int("depth", depth).Logger()

	ev, err := a.open(a.engine)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ev.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("engine close")
		}
	}()

	out := &GameAnalysis{
		Game:      game,
		Player:    player,
		Depth:     depth,
		Positions: make([]PositionAnalysis, 0, len(game.Moves)+1),
		Engine:    driverName(a.engine),
	}

	pos := a.replayer.Start()
	pa, err := a.evaluate(ev, pos, 0, "", depth)
	if err != nil {
		return nil, err
	}
	out.Positions = append(out.Positions, pa)

	for i, mv := range game.Moves {
		ply := i + 1
		next, err := a.replayer.Apply(pos, mv)
		if err != nil {
			return nil, fmt.Errorf("ply %d: %w", ply, err)
		}
		pos = next
		if a.openings != nil {
			if o := a.openings.Lookup(pos.FEN); o != nil {
				out.Opening = o
			}
		}

		pa, err := a.evaluate(ev, pos, ply, mv, depth)
		if err != nil {
			return nil, err
		}
		out.Positions = append(out.Positions, pa)
		log.Debug().Int("ply", ply).Str("move", mv).Int("candidates", len(pa.Candidates)).Msg("position analyzed")
	}

	out.AnalyzedAt = time.Now().UTC()
	out.Elapsed = time.Since(start)
	log.Debug().Int("positions", len(out.Positions)).Dur("elapsed", out.Elapsed).Msg("game analyzed")
	return out, nil
}

func (a *Analyzer) evaluate(ev engine.Evaluator, pos board.Position, ply int, move string, depth int) (PositionAnalysis, error) {
	lines, err := ev.Evaluate(pos.FEN, depth)
	if err != nil {
		return PositionAnalysis{}, fmt.Errorf("ply %d: evaluate: %w", ply, err)
	}
	return PositionAnalysis{
		Ply:        ply,
		Move:       move,
		FEN:        pos.FEN,
		SideToMove: pos.SideToMove,
		Candidates: coalesce.Coalesce(lines, depth),
		BestMove:   coalesce.BestMove(lines),
	}, nil
}

func driverName(cfg engine.Config) string {
	if cfg.Driver == "" {
		return engine.DriverProcess
	}
	return cfg.Driver
}

// IsIllegalMove reports whether err came from a rejected move.
func IsIllegalMove(err error) bool {
	var ime *board.IllegalMoveError
	return errors.As(err, &ime)
}
