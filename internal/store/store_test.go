package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/freeeve/chessgraph/depthscan/internal/analysis"
	"github.com/freeeve/chessgraph/depthscan/internal/coalesce"
	"github.com/freeeve/chessgraph/depthscan/internal/games"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAnalysis(id string) *analysis.GameAnalysis {
	return &analysis.GameAnalysis{
		Game:   games.GameRecord{ID: id, Variant: "standard", Speed: "rapid", Moves: []string{"e4"}},
		Player: "alice",
		Depth:  2,
		Engine: "process",
		Positions: []analysis.PositionAnalysis{
			{
				Ply: 0,
				FEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
				Candidates: map[string]*coalesce.CandidateMove{
					"e2e4": {
						Move:         "e2e4",
						ScoreAtDepth: []*coalesce.Score{nil, {Kind: coalesce.Mate, Value: 3}},
						PV:           []string{"e2e4"},
						Depth:        2,
						OverallScore: &coalesce.Score{Kind: coalesce.Mate, Value: 3},
					},
				},
			},
			{Ply: 1, Move: "e4"},
		},
	}
}

func TestPutGet(t *testing.T) {
	s := newTestStore(t)
	key := Key{Player: "alice", Depth: 2, GameID: "abc"}

	ok, err := s.Exists(key)
	if err != nil || ok {
		t.Fatalf("Exists before Put = %v, %v", ok, err)
	}
	if err := s.Put(key, sampleAnalysis("abc")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err = s.Exists(key)
	if err != nil || !ok {
		t.Fatalf("Exists after Put = %v, %v", ok, err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Game.ID != "abc" || len(got.Positions) != 2 {
		t.Errorf("Get = %+v", got)
	}
	cand := got.Positions[0].Candidates["e2e4"]
	if cand == nil || cand.ScoreAtDepth[0] != nil || cand.ScoreAtDepth[1].Value != 3 {
		t.Errorf("candidate round trip = %+v", cand)
	}

	wantPath := filepath.Join(s.Dir(), "alice", "depth-2", "abc.json.zst")
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("record not at %s: %v", wantPath, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(wantPath))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(Key{Player: "alice", Depth: 2, GameID: "nope"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	s := newTestStore(t)
	tests := []Key{
		{Player: "", Depth: 2, GameID: "a"},
		{Player: "alice", Depth: 0, GameID: "a"},
		{Player: "alice", Depth: 2, GameID: ""},
		{Player: "..", Depth: 2, GameID: "a"},
		{Player: "alice", Depth: 2, GameID: "../x"},
		{Player: "a/b", Depth: 2, GameID: "a"},
	}
	for _, k := range tests {
		if err := s.Put(k, sampleAnalysis("a")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%v) err = %v, want ErrInvalidKey", k, err)
		}
		if _, err := s.Exists(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Exists(%v) err = %v, want ErrInvalidKey", k, err)
		}
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ids, err := s.List("alice", 2)
	if err != nil || len(ids) != 0 {
		t.Fatalf("List empty = %v, %v", ids, err)
	}

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Put(Key{Player: "alice", Depth: 2, GameID: id}, sampleAnalysis(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Put(Key{Player: "alice", Depth: 3, GameID: "z"}, sampleAnalysis("z")); err != nil {
		t.Fatal(err)
	}
	stray := filepath.Join(s.Dir(), "alice", "depth-2", "d.json.zst.4821.tmp")
	if err := os.WriteFile(stray, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err = s.List("alice", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("List = %v, want [a b c]", ids)
	}
}

func TestPutFailureReturnsPersistenceError(t *testing.T) {
	s := newTestStore(t)
	// A regular file where the player directory should be makes mkdir fail.
	if err := os.WriteFile(filepath.Join(s.Dir(), "bob"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	key := Key{Player: "bob", Depth: 1, GameID: "g"}
	err := s.Put(key, sampleAnalysis("g"))
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if pe.Key != key {
		t.Errorf("PersistenceError.Key = %v", pe.Key)
	}
}

func TestConcurrentPutSameKey(t *testing.T) {
	dir := t.TempDir()
	var stores []*Store
	for i := 0; i < 2; i++ {
		s, err := New(Config{Dir: dir})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		stores = append(stores, s)
	}
	key := Key{Player: "alice", Depth: 2, GameID: "shared"}

	const rounds = 20
	errs := make(chan error, len(stores)*rounds)
	var wg sync.WaitGroup
	for i, s := range stores {
		wg.Add(1)
		go func(i int, s *Store) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if err := s.Put(key, sampleAnalysis("shared")); err != nil {
					errs <- fmt.Errorf("writer %d round %d: %w", i, r, err)
				}
			}
		}(i, s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	got, err := stores[0].Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Game.ID != "shared" {
		t.Errorf("Get = %+v", got)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "alice", "depth-2"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("depth dir has %d entries, want 1", len(entries))
	}
}
