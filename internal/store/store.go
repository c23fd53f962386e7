package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/chessgraph/depthscan/internal/analysis"
)

const recordExt = ".json.zst"

var (
	ErrInvalidKey = errors.New("store: invalid key")
	ErrNotFound   = errors.New("store: record not found")
)

// Key identifies one persisted analysis.
type Key struct {
	Player string
	Depth  int
	GameID string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/depth-%d/%s", k.Player, k.Depth, k.GameID)
}

func (k Key) validate() error {
	if !safeName(k.Player) || !safeName(k.GameID) || k.Depth < 1 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

func safeName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// PersistenceError reports a failed write. Nothing is left at the record path.
type PersistenceError struct {
	Key Key
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Key, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Config configures the Store
type Config struct {
	Dir         string
	Compression string // "fast" (default) or "best"
}

// Store reads and writes analysis records under one directory.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New creates a Store rooted at cfg.Dir, creating the directory if needed.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("store: empty directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	level := zstd.SpeedDefault
	if cfg.Compression == "best" {
		level = zstd.SpeedBestCompression
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, err
	}

	return &Store{dir: cfg.Dir, encoder: encoder, decoder: decoder}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the file a key maps to.
func (s *Store) Path(k Key) (string, error) {
	if err := k.validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.depthDir(k.Player, k.Depth), k.GameID+recordExt), nil
}

func (s *Store) depthDir(player string, depth int) string {
	return filepath.Join(s.dir, player, "depth-"+strconv.Itoa(depth))
}

// Exists reports whether a record has been persisted for k.
func (s *Store) Exists(k Key) (bool, error) {
	path, err := s.Path(k)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Put writes rec under k, replacing any existing record.
func (s *Store) Put(k Key, rec *analysis.GameAnalysis) error {
	path, err := s.Path(k)
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &PersistenceError{Key: k, Op: "encode", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &PersistenceError{Key: k, Op: "mkdir", Err: err}
	}
	if err := writeFileAtomic(path, s.encoder.EncodeAll(data, nil)); err != nil {
		return &PersistenceError{Key: k, Op: "write", Err: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	// A unique temp name per write keeps concurrent writers of one record
	// from truncating each other's file before the rename.
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetRaw returns the decompressed JSON stored under k.
func (s *Store) GetRaw(k Key) ([]byte, error) {
	path, err := s.Path(k)
	if err != nil {
		return nil, err
	}
	compressed, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err != nil {
		return nil, err
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", k, err)
	}
	return data, nil
}

// Get decodes the record stored under k.
func (s *Store) Get(k Key) (*analysis.GameAnalysis, error) {
	data, err := s.GetRaw(k)
	if err != nil {
		return nil, err
	}
	var rec analysis.GameAnalysis
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", k, err)
	}
	return &rec, nil
}

// List returns the sorted game ids persisted for player at depth.
// Unfinished .tmp files are not listed.
func (s *Store) List(player string, depth int) ([]string, error) {
	if err := (Key{Player: player, Depth: depth, GameID: "_"}).validate(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.depthDir(player, depth))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases the codecs.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return nil
}
