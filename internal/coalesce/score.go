package coalesce

import "fmt"

// ScoreKind is the unit an engine score is reported in.
type ScoreKind string

const (
	Centipawns ScoreKind = "cp"
	Mate       ScoreKind = "mate"
)

// Mate scores are collapsed onto the centipawn scale as
// sign(m) * (MateRatio/|m| + MateOffset), so a mate in 1 outranks any
// realistic centipawn score and longer mates shrink toward MateOffset.
const (
	MateRatio  = 1000
	MateOffset = 2000
)

// Score is one engine evaluation as reported, from the side to move.
type Score struct {
	Kind  ScoreKind `json:"kind"`
	Value int       `json:"value"`
}

func (s Score) String() string {
	return fmt.Sprintf("%s %d", s.Kind, s.Value)
}

// Normalized returns the score on a single centipawn scale.
// A mate 0 report means the side to move is already mated.
func (s Score) Normalized() float64 {
	if s.Kind != Mate {
		return float64(s.Value)
	}
	switch {
	case s.Value > 0:
		return float64(MateRatio)/float64(s.Value) + MateOffset
	case s.Value < 0:
		return -(float64(MateRatio)/float64(-s.Value) + MateOffset)
	default:
		return -(MateRatio + MateOffset)
	}
}
