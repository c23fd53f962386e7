// Package enginetest builds throwaway UCI engines for tests.
package enginetest

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// Stub describes a scripted engine. Every "go" command is answered with
// Lines followed by "bestmove <BestMove>".
type Stub struct {
	Lines    []string
	BestMove string
	// CrashOnGo makes the engine exit instead of answering a search.
	CrashOnGo bool
	// NeverReady makes the engine exit when asked isready.
	NeverReady bool
	// LogFile, if set, receives every command the engine reads.
	LogFile string
}

// Write writes the stub as an executable shell script under t.TempDir and
// returns its path. Tests are skipped where /bin/sh is unavailable.
func Write(t testing.TB, stub Stub) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub engine needs /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("shell stub engine needs /bin/sh")
	}

	best := stub.BestMove
	if best == "" {
		best = "0000"
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("while IFS= read -r line; do\n")
	if stub.LogFile != "" {
		b.WriteString("  printf '%s\\n' \"$line\" >> " + quote(stub.LogFile) + "\n")
	}
	b.WriteString("  case \"$line\" in\n")
	b.WriteString("    uci) echo 'id name stub'; echo uciok ;;\n")
	if stub.NeverReady {
		b.WriteString("    isready) exit 3 ;;\n")
	} else {
		b.WriteString("    isready) echo readyok ;;\n")
	}
	b.WriteString("    go*)\n")
	if stub.CrashOnGo {
		b.WriteString("      exit 2\n")
	} else {
		for _, l := range stub.Lines {
			b.WriteString("      echo " + quote(l) + "\n")
		}
		b.WriteString("      echo " + quote("bestmove "+best) + "\n")
	}
	b.WriteString("      ;;\n")
	b.WriteString("    quit) exit 0 ;;\n")
	b.WriteString("  esac\n")
	b.WriteString("done\n")

	path := filepath.Join(t.TempDir(), "stub-engine.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write stub engine: %v", err)
	}
	return path
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
