package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/freeeve/chessgraph/depthscan/internal/coalesce"
	"github.com/freeeve/chessgraph/depthscan/internal/store"
)

func main() {
	var (
		dir        = flag.String("dir", "./data/analyses", "Analyses directory")
		player     = flag.String("player", "", "Player to export")
		depth      = flag.Int("depth", 12, "Analysis depth to export")
		outputPath = flag.String("output", "analyses.csv", "Output CSV file")
	)
	flag.Parse()

	if *player == "" {
		fmt.Fprintln(os.Stderr, "Usage: export-analyses -player <name> [-depth N] [-output file.csv]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	st, err := store.New(store.Config{Dir: *dir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open analyses store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ids, err := st.List(*player, *depth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list analyses: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exporting %d games for %s at depth %d\n", len(ids), *player, *depth)

	outFile, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output file: %v\n", err)
		os.Exit(1)
	}
	defer outFile.Close()

	writer := csv.NewWriter(outFile)
	defer writer.Flush()

	// One row per (position, candidate); d1..dN hold the per-depth scores,
	// empty where the engine never reported the move at that depth.
	header := []string{"game_id", "ply", "move", "fen", "side_to_move", "bestmove", "candidate", "overall", "normalized"}
	for d := 1; d <= *depth; d++ {
		header = append(header, "d"+strconv.Itoa(d))
	}
	if err := writer.Write(header); err != nil {
		fmt.Fprintf(os.Stderr, "write header: %v\n", err)
		os.Exit(1)
	}

	var rows, skipped int
	for i, id := range ids {
		rec, err := st.Get(store.Key{Player: *player, Depth: *depth, GameID: id})
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", id, err)
			skipped++
			continue
		}
		for _, pa := range rec.Positions {
			moves := make([]string, 0, len(pa.Candidates))
			for mv := range pa.Candidates {
				moves = append(moves, mv)
			}
			sort.Strings(moves)

			for _, mv := range moves {
				cand := pa.Candidates[mv]
				row := []string{
					id,
					strconv.Itoa(pa.Ply),
					pa.Move,
					pa.FEN,
					string(pa.SideToMove),
					pa.BestMove,
					mv,
					scoreCell(cand.OverallScore),
					normalizedCell(cand.OverallScore),
				}
				for d := 0; d < *depth; d++ {
					var s *coalesce.Score
					if d < len(cand.ScoreAtDepth) {
						s = cand.ScoreAtDepth[d]
					}
					row = append(row, scoreCell(s))
				}
				if err := writer.Write(row); err != nil {
					fmt.Fprintf(os.Stderr, "write row: %v\n", err)
					os.Exit(1)
				}
				rows++
			}
		}
		if (i+1)%100 == 0 {
			fmt.Printf("Exported %d/%d games, %d rows\n", i+1, len(ids), rows)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "csv writer error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDone! Exported %d rows from %d games (%d skipped) to %s\n",
		rows, len(ids)-skipped, skipped, *outputPath)
}

func scoreCell(s *coalesce.Score) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func normalizedCell(s *coalesce.Score) string {
	if s == nil {
		return ""
	}
	return strconv.FormatFloat(s.Normalized(), 'f', -1, 64)
}
