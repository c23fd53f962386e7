// Package eco names the opening a game was played in (Encyclopedia of Chess
// Openings codes), loaded from lichess chess-openings style TSV files.
package eco

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/chessgraph/depthscan/internal/board"
)

// Opening represents an ECO opening classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// Database holds ECO opening data indexed by position.
type Database struct {
	replayer   board.Replayer
	byPosition map[string]Opening
	count      int
}

// NewDatabase creates an empty ECO database. Opening lines are replayed with
// rp, which should be the replayer used to produce looked-up positions.
func NewDatabase(rp board.Replayer) *Database {
	if rp == nil {
		rp = board.PGNReplayer{}
	}
	return &Database{
		replayer:   rp,
		byPosition: make(map[string]Opening),
	}
}

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// LoadDir loads all .tsv files from a directory.
func (db *Database) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := db.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file.
func (db *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return db.Load(f)
}

// Load reads eco<TAB>name<TAB>pgn lines. Lines whose moves do not replay
// are skipped.
func (db *Database) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		pos, err := db.replay(parts[2])
		if err != nil {
			continue
		}
		key := positionKey(pos.FEN)
		if _, dup := db.byPosition[key]; !dup {
			db.count++
		}
		db.byPosition[key] = Opening{ECO: parts[0], Name: parts[1]}
	}

	return scanner.Err()
}

// replay applies PGN moves like "1. e4 e5 2. Nf3 Nc6" from the start.
func (db *Database) replay(pgnMoves string) (board.Position, error) {
	cleaned := moveNumberRegex.ReplaceAllString(pgnMoves, "")
	pos := db.replayer.Start()
	for _, san := range strings.Fields(cleaned) {
		if san[0] == '$' || san[0] == '{' {
			continue
		}
		next, err := db.replayer.Apply(pos, san)
		if err != nil {
			return board.Position{}, err
		}
		pos = next
	}
	return pos, nil
}

// positionKey keeps placement, side to move and castling rights; move
// counters and en passant targets vary between board libraries.
func positionKey(fen string) string {
	f := strings.Fields(fen)
	if len(f) > 3 {
		f = f[:3]
	}
	return strings.Join(f, " ")
}

// Lookup returns the ECO opening for a FEN, or nil if not found.
func (db *Database) Lookup(fen string) *Opening {
	if o, ok := db.byPosition[positionKey(fen)]; ok {
		return &o
	}
	return nil
}

// Count returns the number of openings loaded.
func (db *Database) Count() int {
	return db.count
}
