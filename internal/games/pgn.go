package games

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// LoadPGN reads a PGN file (plain or .zst) exported from lichess.
func LoadPGN(filePath string) ([]GameRecord, error) {
	parser := pgn.Games(filePath)

	var out []GameRecord
	n := 0
	for game := range parser.Games {
		n++
		rec, err := fromPGN(game)
		if err != nil {
			parser.Stop()
			return nil, fmt.Errorf("%s: game %d: %w", filePath, n, err)
		}
		out = append(out, rec)
	}
	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return out, nil
}

func isPGNFile(name string) bool {
	return strings.HasSuffix(name, ".pgn") || strings.HasSuffix(name, ".pgn.zst")
}

func fromPGN(game *pgn.Game) (GameRecord, error) {
	tags := game.Tags
	rec := GameRecord{
		ID:      gameID(tags),
		Variant: variant(tags["Variant"]),
		Speed:   speedOf(tags["TimeControl"]),
		Rated:   strings.HasPrefix(tags["Event"], "Rated"),
		Status:  tags["Termination"],
		Players: Players{
			White: Player{Name: tags["White"], Rating: parseRating(tags["WhiteElo"])},
			Black: Player{Name: tags["Black"], Rating: parseRating(tags["BlackElo"])},
		},
		Moves: make([]string, 0, len(game.Moves)),
	}

	pos := pgn.NewStartingPosition()
	for i, mv := range game.Moves {
		rec.Moves = append(rec.Moves, mvToSAN(pos, mv))
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return GameRecord{}, fmt.Errorf("ply %d: %w", i+1, err)
		}
	}
	return rec, nil
}

// gameID prefers the lichess Site URL's last segment.
func gameID(tags map[string]string) string {
	if id := tags["GameId"]; id != "" {
		return id
	}
	if site := tags["Site"]; strings.Contains(site, "://") {
		return path.Base(site)
	}
	return ""
}

func variant(v string) string {
	switch strings.ToLower(v) {
	case "", "standard":
		return "standard"
	case "chess960":
		return "chess960"
	default:
		return strings.ToLower(strings.ReplaceAll(v, " ", ""))
	}
}

// speedOf classifies a TimeControl tag ("180+2") the way lichess does:
// estimated duration = base + 40*increment seconds.
func speedOf(tc string) string {
	if tc == "" || tc == "-" {
		return "correspondence"
	}
	base, inc, _ := strings.Cut(tc, "+")
	b, err := strconv.Atoi(base)
	if err != nil {
		return "unknown"
	}
	i, _ := strconv.Atoi(inc)
	switch est := b + 40*i; {
	case est < 30:
		return "ultraBullet"
	case est < 180:
		return "bullet"
	case est < 480:
		return "blitz"
	case est < 1500:
		return "rapid"
	default:
		return "classical"
	}
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}

// mvToSAN renders mv in SAN without check suffixes.
const (
	files = "abcdefgh"
	ranks = "12345678"
)

// disambiguate returns the SAN origin qualifier for a piece on from when the
// same kind of piece on each square in others can reach the same target:
// the file if no rival shares it, else the rank if no rival shares that,
// else both.
func disambiguate(from int, others []int) string {
	if len(others) == 0 {
		return ""
	}
	sameFile, sameRank := false, false
	for _, sq := range others {
		if sq%8 == from%8 {
			sameFile = true
		}
		if sq/8 == from/8 {
			sameRank = true
		}
	}
	switch {
	case !sameFile:
		return string(files[from%8])
	case !sameRank:
		return string(ranks[from/8])
	default:
		return string(files[from%8]) + string(ranks[from/8])
	}
}

func mvToSAN(pos *pgn.GameState, mv pgn.Mv) string {
	if mv.Flags == 4 {
		if mv.To > mv.From {
			return "O-O"
		}
		return "O-O-O"
	}

	fromSq := int(mv.From)
	toSq := int(mv.To)
	dest := string(files[toSq%8]) + string(ranks[toSq/8])

	piece := strings.ToUpper(string(rune(pos.PieceAt(mv.From))))
	isCapture := pos.PieceAt(mv.To) != 0 || (piece == "P" && mv.Flags == 2)

	if piece == "P" {
		san := dest
		if isCapture {
			san = string(files[fromSq%8]) + "x" + dest
		}
		switch mv.Promo {
		case pgn.PromoQueen:
			san += "=Q"
		case pgn.PromoRook:
			san += "=R"
		case pgn.PromoBishop:
			san += "=B"
		case pgn.PromoKnight:
			san += "=N"
		}
		return san
	}

	var others []int
	for _, other := range pgn.GenerateLegalMoves(pos) {
		if other.To != mv.To || other.From == mv.From {
			continue
		}
		if strings.ToUpper(string(rune(pos.PieceAt(other.From)))) != piece {
			continue
		}
		others = append(others, int(other.From))
	}

	san := piece + disambiguate(fromSq, others)
	if isCapture {
		san += "x"
	}
	return san + dest
}
