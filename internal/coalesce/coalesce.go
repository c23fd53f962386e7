package coalesce

import "strings"

// CandidateMove aggregates every progress line seen for one move within a
// single position's search.
type CandidateMove struct {
	Move string `json:"move"`
	// ScoreAtDepth has one slot per depth (index depth-1). Nil means the
	// engine never reported this move at that depth.
	ScoreAtDepth []*Score `json:"score_at_depth"`
	// PV is the most recently reported principal variation for the move.
	PV []string `json:"pv"`
	// Depth is the depth of the most recent report, not the deepest one.
	Depth        int    `json:"depth"`
	OverallScore *Score `json:"overall_score"`
}

// Coalesce folds raw engine output into candidate moves keyed by move.
// Lines outside the progress grammar, and progress lines deeper than
// maxDepth, are ignored. A move that drops out of the reported set at
// deeper depths keeps its shallower scores.
func Coalesce(lines []string, maxDepth int) map[string]*CandidateMove {
	moves := make(map[string]*CandidateMove)
	if maxDepth < 1 {
		return moves
	}
	for _, raw := range lines {
		info, kind := ParseLine(raw)
		if kind != LineProgress {
			continue
		}
		if info.Depth > maxDepth {
			continue
		}
		mv := info.Move()
		cand, ok := moves[mv]
		if !ok {
			cand = &CandidateMove{
				Move:         mv,
				ScoreAtDepth: make([]*Score, maxDepth),
			}
			moves[mv] = cand
		}
		s := info.Score
		cand.ScoreAtDepth[info.Depth-1] = &s
		cand.PV = info.PV
		cand.Depth = info.Depth
		cand.OverallScore = deepest(cand.ScoreAtDepth)
	}
	return moves
}

// deepest scans from the tail so a late shallow report never hides a deeper one.
func deepest(scores []*Score) *Score {
	for i := len(scores) - 1; i >= 0; i-- {
		if scores[i] != nil {
			return scores[i]
		}
	}
	return nil
}

// BestMove returns the move named on the terminal bestmove line, or "".
func BestMove(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if _, kind := ParseLine(lines[i]); kind != LineBestMove {
			continue
		}
		f := strings.Fields(lines[i])
		if len(f) >= 2 {
			return f[1]
		}
		return ""
	}
	return ""
}
