package games

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

const sampleExport = `{"id":"abc12345","rated":true,"variant":"standard","speed":"blitz","createdAt":1700000000000,"status":"mate","players":{"white":{"user":{"name":"Alice","id":"alice"},"rating":1850},"black":{"user":{"name":"Bob","id":"bob"},"rating":1790}},"moves":"e4 e5 Qh5 Nc6 Bc4 Nf6 Qxf7#"}

{"id":"zzz99999","rated":false,"variant":"chess960","speed":"rapid","players":{"white":{"aiLevel":3},"black":{"user":{"name":"Alice","id":"alice"},"rating":1850}},"moves":""}
`

func TestDecode(t *testing.T) {
	got, err := Decode(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d games, want 2", len(got))
	}

	g := got[0]
	if g.ID != "abc12345" || g.Variant != "standard" || g.Speed != "blitz" || !g.Rated {
		t.Errorf("unexpected header fields: %+v", g)
	}
	if len(g.Moves) != 7 || g.Moves[6] != "Qxf7#" {
		t.Errorf("Moves = %v", g.Moves)
	}
	if g.Players.White.Name != "Alice" || g.Players.Black.Rating != 1790 {
		t.Errorf("Players = %+v", g.Players)
	}
	if c := g.ColorOf("bob"); c != "black" {
		t.Errorf("ColorOf(bob) = %q, want black", c)
	}

	ai := got[1]
	if ai.Players.White.Name != "" {
		t.Errorf("AI opponent name = %q, want empty", ai.Players.White.Name)
	}
	if len(ai.Moves) != 0 {
		t.Errorf("Moves = %v, want none", ai.Moves)
	}
	if c := ai.ColorOf("ALICE"); c != "black" {
		t.Errorf("ColorOf(ALICE) = %q, want black", c)
	}
	if c := ai.ColorOf("carol"); c != "" {
		t.Errorf("ColorOf(carol) = %q, want empty", c)
	}
}

func TestDecodeMalformedLine(t *testing.T) {
	_, err := Decode(strings.NewReader("{\"id\":\"a\"}\n{not json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("Decode error = %v, want line 2 error", err)
	}
}

func TestLoadFileZstd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.ndjson.zst")

	encoder, _ := zstd.NewWriter(nil)
	defer encoder.Close()
	if err := os.WriteFile(path, encoder.EncodeAll([]byte(sampleExport), nil), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d games, want 2", len(got))
	}
}

func TestLoadFilePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice.ndjson")
	if err := os.WriteFile(path, []byte(sampleExport), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d games, want 2", len(got))
	}
}
