package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/freeeve/chessgraph/depthscan/internal/httpapi"
	"github.com/freeeve/chessgraph/depthscan/internal/logx"
	"github.com/freeeve/chessgraph/depthscan/internal/store"
)

func main() {
	defaultDir := "./data/analyses"
	if env := os.Getenv("ANALYSES_DIR"); env != "" {
		defaultDir = env
	}

	var (
		dir      = flag.String("dir", defaultDir, "Analyses directory (env ANALYSES_DIR)")
		addr     = flag.String("addr", ":8007", "listen address")
		logLevel = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	logger := logx.NewLogger().Level(logx.ParseLevel(*logLevel))

	st, err := store.New(store.Config{Dir: *dir})
	if err != nil {
		logger.Fatal().Err(err).Msg("open analyses store")
	}
	defer st.Close()
	logger.Info().Str("dir", *dir).Msg("opened analyses store")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      httpapi.NewRouter(logger.With().Str("component", "http").Logger(), st),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}
