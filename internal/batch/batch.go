// Package batch analyzes a player's game history in parallel.
//
// A run filters the games, optionally samples them, skips games that already
// have a persisted record, and fans the rest out to a fixed pool of workers.
// Each worker analyzes one game at a time with its own engine session. A
// failure in one game is logged and counted and never stops the run; only an
// engine that cannot be launched at all ends it early.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessgraph/depthscan/internal/analysis"
	"github.com/freeeve/chessgraph/depthscan/internal/engine"
	"github.com/freeeve/chessgraph/depthscan/internal/games"
	"github.com/freeeve/chessgraph/depthscan/internal/store"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 12

// Analyzer analyzes one game.
type Analyzer interface {
	Analyze(game games.GameRecord, player string, depth int) (*analysis.GameAnalysis, error)
}

// Store is where finished analyses go.
type Store interface {
	Exists(k store.Key) (bool, error)
	Put(k store.Key, rec *analysis.GameAnalysis) error
}

// Config configures an Orchestrator.
type Config struct {
	Player  string
	Depth   int
	Sample  int    // analyze a random subset of this size; 0 = all eligible games
	Seed    uint64 // sampling seed; 0 = random
	Workers int    // default DefaultWorkers
	Logger  zerolog.Logger
}

// Summary counts what a run did with each input game.
type Summary struct {
	RunID           string
	Total           int // games supplied
	Ineligible      int // wrong variant or speed
	Duplicates      int // repeated game ids
	Sampled         int // games selected for dispatch
	AlreadyAnalyzed int // skipped, record already persisted
	Analyzed        int // analyzed and persisted this run
	Failed          int // analysis or persistence failed
	Canceled        int // selected but not started before the run stopped
}

// Orchestrator runs batches.
type Orchestrator struct {
	cfg      Config
	analyzer Analyzer
	store    Store
	log      zerolog.Logger
}

// New creates an Orchestrator.
func New(cfg Config, an Analyzer, st Store) (*Orchestrator, error) {
	if cfg.Player == "" {
		return nil, errors.New("batch: player is required")
	}
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("batch: depth must be positive, got %d", cfg.Depth)
	}
	if cfg.Sample < 0 {
		return nil, fmt.Errorf("batch: negative sample size %d", cfg.Sample)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Orchestrator{
		cfg:      cfg,
		analyzer: an,
		store:    st,
		log: cfg.Logger.With().
			Str("component", "batch").
			Str("player", cfg.Player).
			Int("depth", cfg.Depth).
			Logger(),
	}, nil
}

// Eligible reports whether a game is analyzed at all: standard chess played
// at blitz or rapid speed.
func Eligible(g games.GameRecord) bool {
	if g.Variant != "standard" {
		return false
	}
	return g.Speed == "blitz" || g.Speed == "rapid"
}

type status int

const (
	statusAnalyzed status = iota
	statusSkipped
	statusFailed
	statusCanceled
)

type job struct {
	seq  int
	game games.GameRecord
}

type outcome struct {
	job     job
	status  status
	err     error
	elapsed time.Duration
}

// Run analyzes games and returns once every dispatched game is finished.
// Canceling ctx stops dispatch; games already being analyzed run to
// completion. The returned error is non-nil only when the engine could not
// be launched or ctx was canceled.
func (o *Orchestrator) Run(ctx context.Context, gs []games.GameRecord) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Total: len(gs)}
	log := o.log.With().Str("run_id", sum.RunID).Logger()
	start := time.Now()

	selected := o.selectGames(gs, &sum)
	sum.Sampled = len(selected)
	log.Info().
		Int("total", sum.Total).
		Int("ineligible", sum.Ineligible).
		Int("duplicates", sum.Duplicates).
		Int("selected", len(selected)).
		Int("workers", o.cfg.Workers).
		Msg("starting batch")

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, o.cfg.Workers)
	results := make(chan outcome, o.cfg.Workers)

	g.Go(func() error {
		defer close(jobs)
		for i, game := range selected {
			select {
			case <-gctx.Done():
				return nil
			case jobs <- job{seq: i + 1, game: game}:
			}
		}
		return nil
	})

	for w := 0; w < o.cfg.Workers; w++ {
		workerID := w
		g.Go(func() error {
			wlog := log.With().Int("worker_id", workerID).Logger()
			for j := range jobs {
				if gctx.Err() != nil {
					results <- outcome{job: j, status: statusCanceled}
					continue
				}
				out := o.process(j, wlog)
				results <- out
				var launchErr *engine.LaunchError
				if errors.As(out.err, &launchErr) {
					return launchErr
				}
			}
			return nil
		})
	}

	errc := make(chan error, 1)
	go func() {
		errc <- g.Wait()
		close(results)
	}()

	for out := range results {
		glog := log.With().Str("game_id", out.job.game.ID).Int("seq", out.job.seq).Int("of", len(selected)).Logger()
		switch out.status {
		case statusAnalyzed:
			sum.Analyzed++
			glog.Info().Dur("elapsed", out.elapsed).Msg("game analyzed")
		case statusSkipped:
			sum.AlreadyAnalyzed++
			glog.Debug().Msg("already analyzed, skipping")
		case statusFailed:
			sum.Failed++
			glog.Error().Err(out.err).Msg("game failed")
		}
	}
	err := <-errc
	// Includes jobs left queued after the last worker bailed out.
	sum.Canceled = sum.Sampled - sum.Analyzed - sum.AlreadyAnalyzed - sum.Failed
	if err == nil {
		err = ctx.Err()
	}

	log.Info().
		Int("analyzed", sum.Analyzed).
		Int("already_analyzed", sum.AlreadyAnalyzed).
		Int("failed", sum.Failed).
		Int("canceled", sum.Canceled).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")
	return sum, err
}

// selectGames applies the eligibility filter, drops repeated ids and samples.
func (o *Orchestrator) selectGames(gs []games.GameRecord, sum *Summary) []games.GameRecord {
	seen := make(map[string]struct{}, len(gs))
	eligible := make([]games.GameRecord, 0, len(gs))
	for _, g := range gs {
		if !Eligible(g) {
			sum.Ineligible++
			continue
		}
		if _, dup := seen[g.ID]; dup {
			sum.Duplicates++
			continue
		}
		seen[g.ID] = struct{}{}
		eligible = append(eligible, g)
	}
	return sample(eligible, o.cfg.Sample, o.cfg.Seed)
}

// sample returns n games chosen uniformly without replacement, or all of
// them when n is 0 or not smaller than len(gs).
func sample(gs []games.GameRecord, n int, seed uint64) []games.GameRecord {
	if n <= 0 || n >= len(gs) {
		return gs
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	picked := make([]games.GameRecord, len(gs))
	copy(picked, gs)
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked[:n]
}

func (o *Orchestrator) process(j job, log zerolog.Logger) outcome {
	key := store.Key{Player: o.cfg.Player, Depth: o.cfg.Depth, GameID: j.game.ID}
	exists, err := o.store.Exists(key)
	if err != nil {
		return outcome{job: j, status: statusFailed, err: err}
	}
	if exists {
		return outcome{job: j, status: statusSkipped}
	}

	start := time.Now()
	log.Debug().Str("game_id", j.game.ID).Int("moves", len(j.game.Moves)).Msg("analyzing game")
	rec, err := o.analyzer.Analyze(j.game, o.cfg.Player, o.cfg.Depth)
	if err != nil {
		return outcome{job: j, status: statusFailed, err: err}
	}
	if err := o.store.Put(key, rec); err != nil {
		return outcome{job: j, status: statusFailed, err: err}
	}
	return outcome{job: j, status: statusAnalyzed, elapsed: time.Since(start)}
}
