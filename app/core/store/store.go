package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pagesmith/app/pkg/logger"
	"pagesmith/app/pkg/types"
)

// Store persists processed submissions as a single JSON object mapping
// dedup keys to published results. Every read loads the file fresh so
// the on-disk state is the only source of truth; every write rewrites
// the whole file atomically.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the full map from disk. A missing file means nothing has
// been processed yet; a corrupt file is logged and treated the same so
// one bad write cannot wedge the service.
func (s *Store) Load() map[string]types.PublishedResult {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("Failed to load store %s: %v", s.path, err)
		}
		return map[string]types.PublishedResult{}
	}
	records := map[string]types.PublishedResult{}
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Error("Failed to parse store %s: %v", s.path, err)
		return map[string]types.PublishedResult{}
	}
	logger.Debug("Loaded %d processed requests from storage", len(records))
	return records
}

// Save rewrites the whole map. Write-to-temp plus rename keeps a crash
// mid-write from truncating the previous state.
func (s *Store) Save(records map[string]types.PublishedResult) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ensure store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".pagesmith-store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	logger.Debug("Saved %d processed requests to storage", len(records))
	return nil
}

// Get looks up one dedup key. Absence means not yet processed.
func (s *Store) Get(key string) (types.PublishedResult, bool) {
	res, ok := s.Load()[key]
	return res, ok
}

// Put records a new success. Existing keys are never overwritten; a
// stored result is immutable.
func (s *Store) Put(key string, res types.PublishedResult) error {
	records := s.Load()
	if _, exists := records[key]; exists {
		return nil
	}
	records[key] = res
	return s.Save(records)
}
