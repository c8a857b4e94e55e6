package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when no script with the requested id exists.
var ErrNotFound = errors.New("script not found")

// ErrExists is returned by Create when a script with the same id already
// exists.
var ErrExists = errors.New("script already exists")

// Summary is a listing entry for one stored script.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Host        string `json:"host"`
	StepsCount  int    `json:"steps_count"`
}

// Store persists scripts as one JSON file per script in a directory.
type Store struct {
	log *slog.Logger
	dir string
	mu  sync.Mutex
}

// NewStore creates the scripts directory if needed and returns a store over
// it.
func NewStore(log *slog.Logger, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scripts directory: %w", err)
	}
	return &Store{log: log, dir: dir}, nil
}

func (s *Store) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid script id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// List returns summaries of every readable script in the directory.
// Unreadable or malformed files are skipped.
func (s *Store) List() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}

	summaries := make([]Summary, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			s.log.Warn("skipping unreadable script file", "path", p, "error", err)
			continue
		}
		var sc Script
		if err := json.Unmarshal(data, &sc); err != nil {
			s.log.Warn("skipping malformed script file", "path", p, "error", err)
			continue
		}
		summaries = append(summaries, Summary{
			ID:          sc.ID,
			Name:        sc.Name,
			Description: sc.Description,
			Host:        sc.Host,
			StepsCount:  len(sc.Steps),
		})
	}
	return summaries, nil
}

// Get loads one script by id.
func (s *Store) Get(id string) (*Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *Store) read(id string) (*Script, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("script %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("reading script %q: %w", id, err)
	}
	var sc Script
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing script %q: %w", id, err)
	}
	return &sc, nil
}

// Create stores a new script, stamping its timestamps. Fails with ErrExists
// if the id is taken.
func (s *Store) Create(sc *Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(sc.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return fmt.Errorf("script %q: %w", sc.ID, ErrExists)
	}

	now := time.Now().UTC()
	sc.CreatedAt = now
	sc.UpdatedAt = now
	return s.write(p, sc)
}

// Update replaces an existing script, refreshing its updated timestamp.
func (s *Store) Update(sc *Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(sc.ID)
	if err != nil {
		return err
	}
	existing, err := s.read(sc.ID)
	if err != nil {
		return err
	}

	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = time.Now().UTC()
	return s.write(p, sc)
}

// Delete removes a script by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("script %q: %w", id, ErrNotFound)
		}
		return fmt.Errorf("deleting script %q: %w", id, err)
	}
	return nil
}

func (s *Store) write(path string, sc *Script) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding script %q: %w", sc.ID, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing script %q: %w", sc.ID, err)
	}
	return nil
}
