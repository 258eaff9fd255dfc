// Package configstore persists the notebook id to NotebookConfig map that
// seeds settings before any remote sync.
package configstore

import (
	"errors"

	"ragnotebook/internal/domain"
)

// ErrCorrupt is returned by Load when the stored map cannot be decoded. The
// returned map is empty and usable.
var ErrCorrupt = errors.New("config store is corrupt")

// Storage loads and saves the whole notebook configuration map.
type Storage interface {
	Load() (map[string]domain.NotebookConfig, error)
	Save(configs map[string]domain.NotebookConfig) error
}
