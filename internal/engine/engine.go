// Package engine drives external UCI chess engines.
//
// A session owns exactly one engine process for its whole life and evaluates
// one position at a time: the caller always sends the full position, so no
// board state is carried between calls.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Driver names accepted by NewOpener.
const (
	DriverProcess = "process" // raw line protocol over os/exec
	DriverUCI     = "uci"     // github.com/freeeve/uci
)

// Config configures one engine session.
type Config struct {
	Driver        string
	Path          string
	Args          []string      // extra process arguments (process driver only)
	MultiPV       int           // candidate lines per search (default 100)
	NoAnalyseMode bool          // skip UCI_AnalyseMode
	Threads       int           // 0 = engine default
	HashMB        int           // 0 = engine default
	CloseGrace    time.Duration // wait for exit after quit before killing (default 2s)
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = DriverProcess
	}
	if c.MultiPV <= 0 {
		c.MultiPV = 100
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = 2 * time.Second
	}
	return c
}

// Evaluator evaluates positions to a fixed depth and returns the raw
// protocol lines of each search, terminal bestmove line included.
type Evaluator interface {
	Evaluate(fen string, depth int) ([]string, error)
	Close() error
}

// Opener starts a new Evaluator.
type Opener func(cfg Config) (Evaluator, error)

// NewOpener returns an Opener that dispatches on cfg.Driver.
func NewOpener(log zerolog.Logger) Opener {
	return func(cfg Config) (Evaluator, error) {
		cfg = cfg.withDefaults()
		switch cfg.Driver {
		case DriverProcess:
			s, err := Open(cfg, log)
			if err != nil {
				return nil, err
			}
			return s, nil
		case DriverUCI:
			s, err := OpenLibrary(cfg)
			if err != nil {
				return nil, err
			}
			return s, nil
		default:
			return nil, &LaunchError{Path: cfg.Path, Err: fmt.Errorf("unknown driver %q", cfg.Driver)}
		}
	}
}

var (
	// ErrSessionBusy is returned when Evaluate is called while another
	// search is still in flight on the same session.
	ErrSessionBusy = errors.New("engine session busy")
	// ErrSessionBroken is returned after a search failed partway; the
	// protocol stream is no longer in a known state.
	ErrSessionBroken = errors.New("engine session broken")
	// ErrSessionClosed is returned by Evaluate after Close.
	ErrSessionClosed = errors.New("engine session closed")
)

// LaunchError reports an engine that could not be started or never became ready.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch engine %q: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
