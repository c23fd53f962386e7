package httpapi

import (
	"github.com/freeeve/chessgraph/depthscan/internal/analysis"
	"github.com/freeeve/chessgraph/depthscan/internal/board"
	"github.com/freeeve/chessgraph/depthscan/internal/coalesce"
	"github.com/freeeve/chessgraph/depthscan/internal/eco"
)

// ListResponse lists the analyzed games of a player at one depth.
type ListResponse struct {
	Player string   `json:"player"`
	Depth  int      `json:"depth"`
	Games  []string `json:"games"`
}

// SummaryResponse is a compact per-ply view of one analysis.
type SummaryResponse struct {
	GameID  string       `json:"game_id"`
	Player  string       `json:"player"`
	Color   string       `json:"color,omitempty"` // player's color in the game
	Depth   int          `json:"depth"`
	Engine  string       `json:"engine"`
	Opening *eco.Opening `json:"opening,omitempty"`
	Plies   []PlySummary `json:"plies"`
}

type PlySummary struct {
	Ply        int             `json:"ply"`
	Move       string          `json:"move,omitempty"`
	SideToMove board.Color     `json:"side_to_move"`
	BestMove   string          `json:"bestmove,omitempty"`
	Score      *coalesce.Score `json:"score,omitempty"`      // best candidate, side to move's view
	Normalized float64         `json:"normalized,omitempty"` // Score on one centipawn scale
	Candidates int             `json:"candidates"`
}

// ToSummaryResponse picks, for each ply, the engine's bestmove candidate, or
// the highest-scoring candidate when bestmove was not among them.
func ToSummaryResponse(rec *analysis.GameAnalysis) *SummaryResponse {
	if rec == nil {
		return nil
	}
	resp := &SummaryResponse{
		GameID:  rec.Game.ID,
		Player:  rec.Player,
		Color:   rec.Game.ColorOf(rec.Player),
		Depth:   rec.Depth,
		Engine:  rec.Engine,
		Opening: rec.Opening,
		Plies:   make([]PlySummary, 0, len(rec.Positions)),
	}
	for _, pa := range rec.Positions {
		ps := PlySummary{
			Ply:        pa.Ply,
			Move:       pa.Move,
			SideToMove: pa.SideToMove,
			BestMove:   pa.BestMove,
			Candidates: len(pa.Candidates),
		}
		if best := pickCandidate(pa); best != nil && best.OverallScore != nil {
			s := *best.OverallScore
			ps.Score = &s
			ps.Normalized = s.Normalized()
		}
		resp.Plies = append(resp.Plies, ps)
	}
	return resp
}

func pickCandidate(pa analysis.PositionAnalysis) *coalesce.CandidateMove {
	if c, ok := pa.Candidates[pa.BestMove]; ok {
		return c
	}
	var best *coalesce.CandidateMove
	for _, c := range pa.Candidates {
		if c.OverallScore == nil {
			continue
		}
		if best == nil || c.OverallScore.Normalized() > best.OverallScore.Normalized() ||
			(c.OverallScore.Normalized() == best.OverallScore.Normalized() && c.Move < best.Move) {
			best = c
		}
	}
	return best
}
