// Package cache persists strain and velocity maps under their content key.
//
// Each entry is three files in the base directory:
//
//	strain_map_num_<key>.bin    gonum mat.Dense binary
//	velocity_map_num_<key>.bin  gonum mat.Dense binary
//	strain_map_num_<key>.json   metadata
//
// Files are written to a temporary name and renamed into place, the strain
// map last, so a reader never sees a partially written entry.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMiss means no entry exists for the key.
	ErrMiss = errors.New("cache: miss")

	// ErrCorrupt means an entry exists but cannot be decoded.
	ErrCorrupt = errors.New("cache: corrupt entry")

	// ErrBadKey rejects keys that are not lowercase hex.
	ErrBadKey = errors.New("cache: malformed key")
)

const (
	strainPrefix   = "strain_map_num_"
	velocityPrefix = "velocity_map_num_"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Dir() string { return s.baseDir }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Metadata struct {
	Key       string             `json:"key"`
	Sample    string             `json:"sample"`
	Method    string             `json:"method"`
	OnlyHeat  bool               `json:"only_heat"`
	Delays    int                `json:"delays"`
	DelayGrid []float64          `json:"delay_grid,omitempty"`
	Layers    int                `json:"layers"`
	Rows      int                `json:"rows"`
	Cols      int                `json:"cols"`
	Elapsed   float64            `json:"elapsed_seconds"`
	Timestamp time.Time          `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

type Entry struct {
	Strain   *mat.Dense
	Velocity *mat.Dense
	Meta     Metadata
}

func (s *Store) StrainPath(key string) string {
	return filepath.Join(s.baseDir, strainPrefix+key+".bin")
}

func (s *Store) VelocityPath(key string) string {
	return filepath.Join(s.baseDir, velocityPrefix+key+".bin")
}

func (s *Store) MetaPath(key string) string {
	return filepath.Join(s.baseDir, strainPrefix+key+".json")
}

// Exists reports whether a strain map is stored under key.
func (s *Store) Exists(key string) bool {
	if checkKey(key) != nil {
		return false
	}
	_, err := os.Stat(s.StrainPath(key))
	return err == nil
}

// Load returns ErrMiss when nothing is stored under key and an error
// wrapping ErrCorrupt when the stored files cannot be decoded.
func (s *Store) Load(key string) (*Entry, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	strain, err := readMatrix(s.StrainPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("%w: strain map %s: %w", ErrCorrupt, key, err)
	}

	velocity, err := readMatrix(s.VelocityPath(key))
	if err != nil {
		return nil, fmt.Errorf("%w: velocity map %s: %w", ErrCorrupt, key, err)
	}

	if sr, _ := strain.Dims(); sr != velocity.RawMatrix().Rows {
		return nil, fmt.Errorf("%w: %s: strain has %d rows, velocity %d", ErrCorrupt, key, sr, velocity.RawMatrix().Rows)
	}

	entry := &Entry{Strain: strain, Velocity: velocity}
	if data, err := os.ReadFile(s.MetaPath(key)); err == nil {
		if err := json.Unmarshal(data, &entry.Meta); err != nil {
			return nil, fmt.Errorf("%w: metadata %s: %w", ErrCorrupt, key, err)
		}
	}
	entry.Meta.Key = key
	return entry, nil
}

// Save stores an entry atomically per file. The strain map is renamed into
// place last because its presence marks the entry as complete.
func (s *Store) Save(key string, e *Entry) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if e == nil || e.Strain == nil || e.Velocity == nil {
		return fmt.Errorf("cache: incomplete entry for %s", key)
	}
	if err := s.Init(); err != nil {
		return err
	}

	velocity, err := e.Velocity.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode velocity map: %w", err)
	}
	strain, err := e.Strain.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode strain map: %w", err)
	}

	meta := e.Meta
	meta.Key = key
	meta.Rows, meta.Cols = e.Strain.Dims()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := writeAtomic(s.VelocityPath(key), velocity); err != nil {
		return err
	}
	if err := writeAtomic(s.MetaPath(key), metaData); err != nil {
		return err
	}
	return writeAtomic(s.StrainPath(key), strain)
}

// Remove deletes every file of an entry. Missing files are not an error.
func (s *Store) Remove(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	for _, p := range []string{s.StrainPath(key), s.VelocityPath(key), s.MetaPath(key)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// List returns the metadata of all complete entries, newest first.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	out := make([]Metadata, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, strainPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, strainPrefix), ".json")
		if !s.Exists(key) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.baseDir, name))
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		meta.Key = key
		out = append(out, meta)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func readMatrix(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func checkKey(key string) error {
	if key == "" {
		return ErrBadKey
	}
	for _, r := range key {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return fmt.Errorf("%w: %q", ErrBadKey, key)
		}
	}
	return nil
}
