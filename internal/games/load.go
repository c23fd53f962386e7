package games

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// exportGame is one line of a lichess NDJSON game export.
type exportGame struct {
	ID        string `json:"id"`
	Rated     bool   `json:"rated"`
	Variant   string `json:"variant"`
	Speed     string `json:"speed"`
	CreatedAt int64  `json:"createdAt"`
	Status    string `json:"status"`
	Players   struct {
		White exportPlayer `json:"white"`
		Black exportPlayer `json:"black"`
	} `json:"players"`
	Moves string `json:"moves"`
}

type exportPlayer struct {
	User *struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"user"`
	Rating int `json:"rating"`
}

func (p exportPlayer) player() Player {
	out := Player{Rating: p.Rating}
	if p.User != nil {
		out.Name = p.User.Name
		out.ID = p.User.ID
	}
	return out
}

// LoadFile reads an NDJSON export, decompressing .zst files. Files named
// .pgn or .pgn.zst are read as PGN.
func LoadFile(path string) ([]GameRecord, error) {
	if isPGNFile(path) {
		return LoadPGN(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	games, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return games, nil
}

// Decode reads one game object per line. Blank lines are skipped.
func Decode(r io.Reader) ([]GameRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var out []GameRecord
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var g exportGame
		if err := json.Unmarshal([]byte(line), &g); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, GameRecord{
			ID:        g.ID,
			Variant:   g.Variant,
			Speed:     g.Speed,
			Rated:     g.Rated,
			CreatedAt: g.CreatedAt,
			Status:    g.Status,
			Players: Players{
				White: g.Players.White.player(),
				Black: g.Players.Black.player(),
			},
			Moves: strings.Fields(g.Moves),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
