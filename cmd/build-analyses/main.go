package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/freeeve/chessgraph/depthscan/internal/analysis"
	"github.com/freeeve/chessgraph/depthscan/internal/batch"
	"github.com/freeeve/chessgraph/depthscan/internal/board"
	"github.com/freeeve/chessgraph/depthscan/internal/eco"
	"github.com/freeeve/chessgraph/depthscan/internal/engine"
	"github.com/freeeve/chessgraph/depthscan/internal/games"
	"github.com/freeeve/chessgraph/depthscan/internal/logx"
	"github.com/freeeve/chessgraph/depthscan/internal/store"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	defaultWorkers := batch.DefaultWorkers
	if env := os.Getenv("PARALLELIZATION"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			defaultWorkers = n
		}
	}

	var (
		player    = flag.String("player", "", "Player whose games are analyzed")
		gamesPath = flag.String("games", "", "NDJSON game export for the player (supports .zst)")
		depth     = flag.Int("depth", 12, "Search depth per position")
		sample    = flag.Int("sample", 0, "Analyze a random subset of this many eligible games (0 = all)")
		seed      = flag.Uint64("seed", 0, "Sampling seed (0 = random)")
		workers   = flag.Int("workers", defaultWorkers, "Parallel games (env PARALLELIZATION)")
		outDir    = flag.String("out", envOr("ANALYSES_DIR", "./data/analyses"), "Analyses directory (env ANALYSES_DIR)")

		stockfishPath = flag.String("stockfish", envOr("STOCKFISH_PATH", "stockfish"), "Path to UCI engine executable (env STOCKFISH_PATH)")
		driver        = flag.String("driver", engine.DriverProcess, "Engine driver: process or uci")
		multiPV       = flag.Int("multipv", 100, "Candidate lines per search")
		threads       = flag.Int("threads", 0, "Engine threads per game (0 = engine default)")
		hashMB        = flag.Int("hash", 0, "Engine hash MB per game (0 = engine default)")
		replayer      = flag.String("board", board.ReplayerPGN, "Board library: pgn or notnil")
		ecoDir        = flag.String("eco-dir", "./data/eco", "Directory of ECO .tsv files (empty = disabled)")

		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	if *player == "" || *gamesPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: build-analyses -player <name> -games <export.ndjson[.zst]> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger().Level(logx.ParseLevel(*logLevel))
	logger.Info().
		Str("player", *player).
		Str("games", *gamesPath).
		Int("depth", *depth).
		Int("sample", *sample).
		Int("workers", *workers).
		Str("out", *outDir).
		Str("driver", *driver).
		Msg("starting analysis build")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	gs, err := games.LoadFile(*gamesPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load games")
	}
	logger.Info().Int("games", len(gs)).Dur("elapsed", time.Since(start)).Msg("games loaded")

	rp, err := board.NewReplayer(*replayer)
	if err != nil {
		logger.Fatal().Err(err).Msg("board replayer")
	}

	var openings *eco.Database
	if *ecoDir != "" {
		openings = eco.NewDatabase(rp)
		if err := openings.LoadDir(*ecoDir); err != nil {
			logger.Warn().Err(err).Str("dir", *ecoDir).Msg("failed to load ECO database")
			openings = nil
		} else {
			logger.Info().Int("openings", openings.Count()).Msg("ECO database loaded")
		}
	}

	st, err := store.New(store.Config{Dir: *outDir})
	if err != nil {
		logger.Fatal().Err(err).Msg("open analyses store")
	}
	defer st.Close()

	an := analysis.New(analysis.Config{
		Replayer: rp,
		Openings: openings,
		Engine: engine.Config{
			Driver:  *driver,
			Path:    *stockfishPath,
			MultiPV: *multiPV,
			Threads: *threads,
			HashMB:  *hashMB,
		},
		Logger: logger,
	})

	orch, err := batch.New(batch.Config{
		Player:  *player,
		Depth:   *depth,
		Sample:  *sample,
		Seed:    *seed,
		Workers: *workers,
		Logger:  logger,
	}, an, st)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure batch")
	}

	sum, err := orch.Run(ctx, gs)
	var launchErr *engine.LaunchError
	switch {
	case errors.As(err, &launchErr):
		logger.Fatal().Err(err).Str("stockfish", *stockfishPath).Msg("engine failed to launch")
	case errors.Is(err, context.Canceled):
		logger.Warn().Int("canceled", sum.Canceled).Msg("interrupted, in-flight games finished")
	case err != nil:
		logger.Fatal().Err(err).Msg("batch")
	}

	logger.Info().
		Str("run_id", sum.RunID).
		Int("analyzed", sum.Analyzed).
		Int("already_analyzed", sum.AlreadyAnalyzed).
		Int("failed", sum.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("done")
}
