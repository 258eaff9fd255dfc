package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ragnotebook/internal/configstore"
	"ragnotebook/internal/domain"
	"ragnotebook/internal/strategy"
)

// loadLocked reads the local store once. A corrupt store is logged and
// replaced by an empty map.
func (s *WorkspaceService) loadLocked() error {
	if s.configs != nil {
		return nil
	}
	configs, err := s.store.Load()
	if err != nil {
		if !errors.Is(err, configstore.ErrCorrupt) {
			return fmt.Errorf("load notebook configs: %w", err)
		}
		s.logger.Warn("discarding corrupt config store", zap.Error(err))
	}
	if configs == nil {
		configs = map[string]domain.NotebookConfig{}
	}
	s.configs = configs
	return nil
}

// Config returns the local configuration of a notebook, or the defaults when
// none is stored. Endpoints always come from the catalog.
func (s *WorkspaceService) Config(notebookID string) (domain.NotebookConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return domain.NotebookConfig{}, err
	}
	return s.configLocked(notebookID), nil
}

func (s *WorkspaceService) configLocked(notebookID string) domain.NotebookConfig {
	if stored, ok := s.configs[notebookID]; ok {
		return s.catalog.Merge(stored)
	}
	return s.catalog.DefaultConfig()
}

func (s *WorkspaceService) putLocked(notebookID string, cfg domain.NotebookConfig) error {
	s.configs[notebookID] = strategy.Clone(cfg)
	if err := s.store.Save(s.configs); err != nil {
		return fmt.Errorf("save notebook configs: %w", err)
	}
	return nil
}

// LoadSettings returns the configuration used when a notebook is opened: the
// local copy (or defaults) with the remote settings merged over it. The result
// is written back locally. When the remote pull fails the local result is
// still returned together with an ErrRemoteSync error.
func (s *WorkspaceService) LoadSettings(ctx context.Context, notebookID string) (domain.NotebookConfig, error) {
	remote, pullErr := s.hooks.PullSettings(ctx, notebookID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return domain.NotebookConfig{}, err
	}
	cfg := s.configLocked(notebookID)
	if pullErr == nil && len(remote) > 0 {
		cfg = strategy.MergeFlat(cfg, remote)
	}
	if err := s.putLocked(notebookID, cfg); err != nil {
		return cfg, err
	}
	if pullErr != nil {
		s.logger.Warn("settings pull failed", zap.String("notebook", notebookID), zap.Error(pullErr))
		return cfg, fmt.Errorf("%w: %v", ErrRemoteSync, pullErr)
	}
	return cfg, nil
}

// SaveSettings stores cfg locally first and then pushes it to the backend.
// A push failure leaves the local copy in place and returns ErrRemoteSync.
// The first save that changes the embedding model locks it.
func (s *WorkspaceService) SaveSettings(ctx context.Context, notebookID string, cfg domain.NotebookConfig) (domain.NotebookConfig, error) {
	s.mu.Lock()
	if err := s.loadLocked(); err != nil {
		s.mu.Unlock()
		return domain.NotebookConfig{}, err
	}
	current := s.configLocked(notebookID)
	if current.EmbeddingModelLocked && cfg.EmbeddingModel != current.EmbeddingModel {
		s.mu.Unlock()
		return current, ErrEmbeddingModelLocked
	}
	if _, ok := cfg.Strategies[cfg.ActiveStrategyID]; !ok && cfg.ActiveStrategyID != "" {
		s.mu.Unlock()
		return current, fmt.Errorf("%w: %s", ErrUnknownStrategy, cfg.ActiveStrategyID)
	}
	cfg.EmbeddingModelLocked = current.EmbeddingModelLocked ||
		(cfg.EmbeddingModel != "" && cfg.EmbeddingModel != current.EmbeddingModel)
	cfg = s.catalog.Merge(cfg)
	err := s.putLocked(notebookID, cfg)
	s.mu.Unlock()
	if err != nil {
		return cfg, err
	}

	if err := s.hooks.PushSettings(ctx, notebookID, cfg); err != nil {
		s.logger.Warn("settings push failed", zap.String("notebook", notebookID), zap.Error(err))
		return cfg, fmt.Errorf("%w: %v", ErrRemoteSync, err)
	}
	s.logger.Info("settings saved", zap.String("notebook", notebookID), zap.String("strategy", string(cfg.ActiveStrategyID)))
	return cfg, nil
}

// SetActiveStrategy switches the active strategy and saves the result.
func (s *WorkspaceService) SetActiveStrategy(ctx context.Context, notebookID string, id domain.StrategyID) (domain.NotebookConfig, error) {
	cfg, err := s.Config(notebookID)
	if err != nil {
		return cfg, err
	}
	if _, ok := cfg.Strategies[id]; !ok {
		return cfg, fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	cfg.ActiveStrategyID = id
	return s.SaveSettings(ctx, notebookID, cfg)
}

// forget drops the local configuration of a deleted notebook.
func (s *WorkspaceService) forget(notebookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.configs[notebookID]; !ok {
		return nil
	}
	delete(s.configs, notebookID)
	return s.store.Save(s.configs)
}
