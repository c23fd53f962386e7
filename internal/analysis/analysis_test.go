package analysis

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessgraph/depthscan/internal/board"
	"github.com/freeeve/chessgraph/depthscan/internal/coalesce"
	"github.com/freeeve/chessgraph/depthscan/internal/eco"
	"github.com/freeeve/chessgraph/depthscan/internal/engine"
	"github.com/freeeve/chessgraph/depthscan/internal/engine/enginetest"
	"github.com/freeeve/chessgraph/depthscan/internal/games"
)

// fakeEvaluator answers every search with a depth-1 and a depth-2 line.
type fakeEvaluator struct {
	fens   []string
	failAt int // 1-based call that fails; 0 = never
	closed int
}

var twoDepthLines = []string{
	"info depth 1 seldepth 1 multipv 1 score cp 10 nodes 20 nps 2000 tbhits 0 time 1 pv e2e4",
	"info depth 2 seldepth 2 multipv 1 score cp 25 nodes 80 nps 4000 tbhits 0 time 2 pv e2e4 e7e5",
	"bestmove e2e4 ponder e7e5",
}

func (f *fakeEvaluator) Evaluate(fen string, depth int) ([]string, error) {
	f.fens = append(f.fens, fen)
	if f.failAt == len(f.fens) {
		return nil, io.ErrUnexpectedEOF
	}
	return twoDepthLines, nil
}

func (f *fakeEvaluator) Close() error {
	f.closed++
	return nil
}

func newTestAnalyzer(ev *fakeEvaluator, opens *int) *Analyzer {
	return New(Config{
		Open: func(engine.Config) (engine.Evaluator, error) {
			*opens++
			return ev, nil
		},
		Replayer: board.PGNReplayer{},
		Logger:   zerolog.Nop(),
	})
}

func TestAnalyzeTwoMoveGame(t *testing.T) {
	ev := &fakeEvaluator{}
	opens := 0
	a := newTestAnalyzer(ev, &opens)

	game := games.GameRecord{ID: "g1", Variant: "standard", Speed: "blitz", Moves: []string{"e4", "e5"}}
	got, err := a.Analyze(game, "alice", 2)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if opens != 1 || ev.closed != 1 {
		t.Errorf("opens=%d closes=%d, want 1 and 1", opens, ev.closed)
	}
	if len(got.Positions) != 3 {
		t.Fatalf("positions = %d, want 3", len(got.Positions))
	}
	if len(ev.fens) != 3 {
		t.Fatalf("evaluations = %d, want 3", len(ev.fens))
	}

	wantSide := []board.Color{board.White, board.Black, board.White}
	wantMove := []string{"", "e4", "e5"}
	for i, pa := range got.Positions {
		if pa.Ply != i {
			t.Errorf("positions[%d].Ply = %d", i, pa.Ply)
		}
		if pa.Move != wantMove[i] {
			t.Errorf("positions[%d].Move = %q, want %q", i, pa.Move, wantMove[i])
		}
		if pa.SideToMove != wantSide[i] {
			t.Errorf("positions[%d].SideToMove = %q, want %q", i, pa.SideToMove, wantSide[i])
		}
		if pa.FEN != ev.fens[i] {
			t.Errorf("positions[%d].FEN = %q, engine saw %q", i, pa.FEN, ev.fens[i])
		}
		if pa.BestMove != "e2e4" {
			t.Errorf("positions[%d].BestMove = %q", i, pa.BestMove)
		}
		cand := pa.Candidates["e2e4"]
		if cand == nil {
			t.Fatalf("positions[%d] missing candidate e2e4", i)
		}
		if len(cand.ScoreAtDepth) != 2 {
			t.Errorf("positions[%d] score slots = %d, want 2", i, len(cand.ScoreAtDepth))
		}
		want := coalesce.Score{Kind: coalesce.Centipawns, Value: 25}
		if cand.OverallScore == nil || *cand.OverallScore != want {
			t.Errorf("positions[%d] overall = %v, want %v", i, cand.OverallScore, want)
		}
	}

	if got.Positions[0].FEN != board.StartFEN {
		t.Errorf("first FEN = %q", got.Positions[0].FEN)
	}
	if !strings.HasPrefix(got.Positions[1].FEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b") {
		t.Errorf("after e4 FEN = %q", got.Positions[1].FEN)
	}
	if got.Player != "alice" || got.Depth != 2 || got.Engine != engine.DriverProcess {
		t.Errorf("header = %q/%d/%q", got.Player, got.Depth, got.Engine)
	}
}

func TestAnalyzeEmptyGame(t *testing.T) {
	ev := &fakeEvaluator{}
	opens := 0
	got, err := newTestAnalyzer(ev, &opens).Analyze(games.GameRecord{ID: "empty"}, "alice", 1)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Positions) != 1 {
		t.Errorf("positions = %d, want 1", len(got.Positions))
	}
}

func TestAnalyzeIllegalMoveAborts(t *testing.T) {
	ev := &fakeEvaluator{}
	opens := 0
	game := games.GameRecord{ID: "bad", Moves: []string{"e4", "e4"}}
	got, err := newTestAnalyzer(ev, &opens).Analyze(game, "alice", 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != nil {
		t.Error("partial analysis returned")
	}
	if !IsIllegalMove(err) {
		t.Errorf("err = %v, want IllegalMoveError", err)
	}
	if !strings.Contains(err.Error(), "ply 2") {
		t.Errorf("err = %v, want ply 2", err)
	}
	if ev.closed != 1 {
		t.Errorf("closes = %d, want 1", ev.closed)
	}
}

func TestAnalyzeEngineFailureClosesSession(t *testing.T) {
	ev := &fakeEvaluator{failAt: 2}
	opens := 0
	game := games.GameRecord{ID: "g", Moves: []string{"e4", "e5"}}
	_, err := newTestAnalyzer(ev, &opens).Analyze(game, "alice", 2)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want unexpected EOF", err)
	}
	if ev.closed != 1 {
		t.Errorf("closes = %d, want 1", ev.closed)
	}
}

func TestAnalyzeOpenFailure(t *testing.T) {
	launch := &engine.LaunchError{Path: "/nope", Err: errors.New("no such file")}
	a := New(Config{
		Open:   func(engine.Config) (engine.Evaluator, error) { return nil, launch },
		Logger: zerolog.Nop(),
	})
	_, err := a.Analyze(games.GameRecord{ID: "g"}, "alice", 1)
	var le *engine.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want LaunchError", err)
	}
}

func TestAnalyzeRejectsBadDepth(t *testing.T) {
	opens := 0
	_, err := newTestAnalyzer(&fakeEvaluator{}, &opens).Analyze(games.GameRecord{ID: "g"}, "alice", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if opens != 0 {
		t.Errorf("opens = %d, want 0", opens)
	}
}

func TestAnalyzeWithStubEngineProcess(t *testing.T) {
	path := enginetest.Write(t, enginetest.Stub{
		Lines:    twoDepthLines[:2],
		BestMove: "e2e4",
	})
	a := New(Config{
		Engine: engine.Config{Path: path},
		Logger: zerolog.Nop(),
	})

	game := games.GameRecord{ID: "stub", Moves: []string{"e4", "e5"}}
	got, err := a.Analyze(game, "alice", 2)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Positions) != 3 {
		t.Fatalf("positions = %d, want 3", len(got.Positions))
	}
	for i, pa := range got.Positions {
		cand := pa.Candidates["e2e4"]
		if cand == nil || cand.OverallScore == nil || cand.OverallScore.Value != 25 {
			t.Errorf("positions[%d] candidate = %+v", i, cand)
		}
		if cand != nil && (cand.ScoreAtDepth[0] == nil || cand.ScoreAtDepth[0].Value != 10) {
			t.Errorf("positions[%d] depth-1 score = %v", i, cand.ScoreAtDepth[0])
		}
	}
}

func TestAnalyzeNamesOpening(t *testing.T) {
	openings := eco.NewDatabase(board.PGNReplayer{})
	tsv := "B00\tKing's Pawn Game\t1. e4\nC20\tKing's Pawn Game: Open\t1. e4 e5\nC50\tItalian Game\t1. e4 e5 2. Nf3 Nc6 3. Bc4\n"
	if err := openings.Load(strings.NewReader(tsv)); err != nil {
		t.Fatal(err)
	}
	a := New(Config{
		Open:     func(engine.Config) (engine.Evaluator, error) { return &fakeEvaluator{}, nil },
		Openings: openings,
		Logger:   zerolog.Nop(),
	})

	// The game leaves book after 2. Nf3, so the deepest match is 1... e5.
	game := games.GameRecord{ID: "g", Moves: []string{"e4", "e5", "Nf3", "Nf6"}}
	got, err := a.Analyze(game, "alice", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Opening == nil || got.Opening.ECO != "C20" {
		t.Errorf("Opening = %+v, want C20", got.Opening)
	}

	got, err = a.Analyze(games.GameRecord{ID: "h", Moves: []string{"d4"}}, "alice", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Opening != nil {
		t.Errorf("Opening = %+v, want none", got.Opening)
	}
}
