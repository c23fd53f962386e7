package engine

import (
	"fmt"
	"sync"

	"github.com/freeeve/uci"

	"github.com/freeeve/chessgraph/depthscan/internal/coalesce"
)

// LibrarySession evaluates positions through github.com/freeeve/uci and
// re-renders its parsed results as progress lines, so callers see the same
// output shape as from a raw Session.
type LibrarySession struct {
	eng *uci.Engine

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
}

// OpenLibrary starts the engine at cfg.Path through the uci library.
func OpenLibrary(cfg Config) (*LibrarySession, error) {
	cfg = cfg.withDefaults()
	eng, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}
	if err := eng.UCI(); err != nil {
		eng.Close()
		return nil, &LaunchError{Path: cfg.Path, Err: fmt.Errorf("uci handshake: %w", err)}
	}

	// Only options the caller configured are sent; 0 keeps the engine default.
	type option struct {
		name  string
		value any
	}
	opts := []option{{"MultiPV", cfg.MultiPV}}
	if !cfg.NoAnalyseMode {
		opts = append(opts, option{"UCI_AnalyseMode", true})
	}
	if cfg.Threads > 0 {
		opts = append(opts, option{"Threads", cfg.Threads})
	}
	if cfg.HashMB > 0 {
		opts = append(opts, option{"Hash", cfg.HashMB})
	}
	for _, o := range opts {
		if err := eng.SendOption(o.name, o.value); err != nil {
			eng.Close()
			return nil, &LaunchError{Path: cfg.Path, Err: fmt.Errorf("set option %s: %w", o.name, err)}
		}
	}
	return &LibrarySession{eng: eng}, nil
}

// Evaluate searches fen to depth.
func (s *LibrarySession) Evaluate(fen string, depth int) ([]string, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	if err := s.eng.SetFEN(fen); err != nil {
		return nil, fmt.Errorf("set FEN: %w", err)
	}
	results, err := s.eng.GoDepth(depth)
	if err != nil {
		return nil, fmt.Errorf("go depth %d: %w", depth, err)
	}

	lines := make([]string, 0, len(results.Results)+1)
	for _, r := range results.Results {
		if len(r.BestMoves) == 0 {
			continue
		}
		multiPV := r.MultiPV
		if multiPV == 0 {
			multiPV = 1
		}
		kind := coalesce.Centipawns
		if r.Mate {
			kind = coalesce.Mate
		}
		lines = append(lines, coalesce.FormatInfoLine(coalesce.InfoLine{
			Depth:    r.Depth,
			SelDepth: r.SelDepth,
			MultiPV:  multiPV,
			Score:    coalesce.Score{Kind: kind, Value: r.Score},
			Nodes:    int64(r.Nodes),
			NPS:      int64(r.NodesPerSecond),
			TimeMS:   int64(r.Time),
			PV:       r.BestMoves,
		}))
	}
	lines = append(lines, "bestmove "+results.BestMove)
	return lines, nil
}

// Close stops the engine; repeated calls are no-ops.
func (s *LibrarySession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.eng.Close()
	})
	return nil
}
