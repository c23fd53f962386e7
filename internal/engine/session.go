package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type protocolState int

const (
	stateIdle protocolState = iota
	stateAwaitingResult
	stateBroken
	stateClosed
)

const maxLineBytes = 1 << 20

// Session speaks the UCI line protocol to one engine process.
// Evaluate calls are strictly serial; Close must not race with Evaluate.
type Session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	in    *bufio.Writer
	out   *bufio.Scanner
	log   zerolog.Logger
	grace time.Duration

	mu    sync.Mutex
	state protocolState

	closeOnce sync.Once
	closeErr  error
}

// Open launches the engine at cfg.Path and configures it for analysis.
func Open(cfg Config, log zerolog.Logger) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.Path == "" {
		return nil, &LaunchError{Err: errors.New("engine path required")}
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}

	s := newSession(stdin, stdout, log)
	s.cmd = cmd
	s.grace = cfg.CloseGrace

	if err := s.setup(cfg); err != nil {
		_ = s.Close()
		return nil, &LaunchError{Path: cfg.Path, Err: err}
	}
	s.log.Debug().Str("engine", cfg.Path).Int("pid", cmd.Process.Pid).Int("multipv", cfg.MultiPV).Msg("engine ready")
	return s, nil
}

func newSession(stdin io.WriteCloser, stdout io.Reader, log zerolog.Logger) *Session {
	out := bufio.NewScanner(stdout)
	out.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Session{
		stdin: stdin,
		in:    bufio.NewWriter(stdin),
		out:   out,
		log:   log,
		grace: 2 * time.Second,
	}
}

// setup issues the one-time options and waits for the engine to acknowledge them.
func (s *Session) setup(cfg Config) error {
	cmds := []string{fmt.Sprintf("setoption name MultiPV value %d", cfg.MultiPV)}
	if !cfg.NoAnalyseMode {
		cmds = append(cmds, "setoption name UCI_AnalyseMode value true")
	}
	if cfg.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d", cfg.Threads))
	}
	if cfg.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d", cfg.HashMB))
	}
	cmds = append(cmds, "isready")
	if err := s.send(cmds...); err != nil {
		return fmt.Errorf("send setup: %w", err)
	}
	return s.waitFor("readyok")
}

// Evaluate searches fen to depth and returns every line the engine printed
// up to and including the bestmove line.
func (s *Session) Evaluate(fen string, depth int) ([]string, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	switch s.state {
	case stateBroken:
		return nil, ErrSessionBroken
	case stateClosed:
		return nil, ErrSessionClosed
	}
	if depth < 1 {
		return nil, fmt.Errorf("invalid search depth %d", depth)
	}

	if err := s.send("position fen "+fen, fmt.Sprintf("go depth %d", depth)); err != nil {
		s.state = stateBroken
		return nil, fmt.Errorf("send search: %w", err)
	}
	s.state = stateAwaitingResult

	var lines []string
	for s.out.Scan() {
		line := s.out.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "bestmove") {
			s.state = stateIdle
			return lines, nil
		}
	}

	s.state = stateBroken
	if err := s.out.Err(); err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}
	return nil, fmt.Errorf("read engine output after %d lines: %w", len(lines), io.ErrUnexpectedEOF)
}

// Close stops the engine. It is safe to call more than once; the process is
// killed if it has not exited within the grace period after quit.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.shutdown()
	})
	return s.closeErr
}

func (s *Session) shutdown() error {
	s.state = stateClosed
	_ = s.send("quit")
	_ = s.stdin.Close()
	if s.cmd == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- s.cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("engine exit: %w", err)
		}
		return nil
	case <-time.After(s.grace):
		s.log.Warn().Dur("grace", s.grace).Msg("engine did not quit, killing")
		_ = s.cmd.Process.Kill()
		<-done
		return nil
	}
}

func (s *Session) send(cmds ...string) error {
	for _, c := range cmds {
		if _, err := s.in.WriteString(c + "\n"); err != nil {
			return err
		}
	}
	return s.in.Flush()
}

func (s *Session) waitFor(token string) error {
	for s.out.Scan() {
		if strings.TrimSpace(s.out.Text()) == token {
			return nil
		}
	}
	if err := s.out.Err(); err != nil {
		return err
	}
	return fmt.Errorf("waiting for %s: %w", token, io.ErrUnexpectedEOF)
}
