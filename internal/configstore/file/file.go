package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ragnotebook/internal/configstore"
	"ragnotebook/internal/domain"
)

// Storage keeps the configuration map in a single JSON file.
type Storage struct {
	mu   sync.Mutex
	path string
}

func NewStorage(path string) *Storage { return &Storage{path: path} }

func (s *Storage) Path() string { return s.path }

func (s *Storage) Load() (map[string]domain.NotebookConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]domain.NotebookConfig{}, nil
		}
		return map[string]domain.NotebookConfig{}, err
	}
	out := map[string]domain.NotebookConfig{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]domain.NotebookConfig{}, fmt.Errorf("%w: %s: %v", configstore.ErrCorrupt, s.path, err)
	}
	return out, nil
}

// Save replaces the file atomically.
func (s *Storage) Save(configs map[string]domain.NotebookConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if configs == nil {
		configs = map[string]domain.NotebookConfig{}
	}
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".notebooks-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
