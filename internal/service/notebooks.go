package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragnotebook/internal/domain"
)

// Notebooks lists the notebooks and fetches their details concurrently.
// A failed details call leaves that notebook as listed.
func (s *WorkspaceService) Notebooks(ctx context.Context) ([]domain.Notebook, error) {
	list, err := s.hooks.ListNotebooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailsConcurrency)
	for i := range list {
		nb := &list[i]
		g.Go(func() error {
			details, err := s.hooks.NotebookDetails(gctx, *nb)
			if err != nil {
				s.logger.Debug("notebook details failed", zap.String("notebook", nb.ID), zap.Error(err))
				return nil
			}
			applyDetails(nb, details)
			return nil
		})
	}
	_ = g.Wait()
	return list, nil
}

func applyDetails(nb *domain.Notebook, details map[string]any) {
	if len(details) == 0 {
		return
	}
	nb.Details = details
	if nb.DocumentCount == 0 {
		for _, k := range []string{"document_count", "documents_count", "doc_count"} {
			if n, ok := details[k].(float64); ok {
				nb.DocumentCount = int(n)
				break
			}
		}
	}
	if s, ok := details["status"].(string); ok && s != "" {
		nb.Status = s
	}
	if s, ok := details["description"].(string); ok && nb.Description == "" {
		nb.Description = s
	}
}

// CreateNotebook creates a notebook on the backend.
func (s *WorkspaceService) CreateNotebook(ctx context.Context, name, description string) (domain.Notebook, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Notebook{}, ErrEmptyName
	}
	nb, err := s.hooks.CreateNotebook(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return domain.Notebook{}, fmt.Errorf("create notebook: %w", err)
	}
	s.logger.Info("notebook created", zap.String("notebook", nb.ID), zap.String("name", nb.Name))
	return nb, nil
}

// DeleteNotebook deletes a notebook and its local configuration.
func (s *WorkspaceService) DeleteNotebook(ctx context.Context, nb domain.Notebook) error {
	if err := s.hooks.DeleteNotebook(ctx, nb); err != nil {
		return fmt.Errorf("delete notebook: %w", err)
	}
	if err := s.forget(nb.ID); err != nil {
		s.logger.Warn("drop local config failed", zap.String("notebook", nb.ID), zap.Error(err))
	}
	s.logger.Info("notebook deleted", zap.String("notebook", nb.ID))
	return nil
}

// Ingest asks the backend to ingest a file path or URL.
func (s *WorkspaceService) Ingest(ctx context.Context, nb domain.Notebook, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("ingest: source is empty")
	}
	if err := s.hooks.Ingest(ctx, nb, source); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

// Status returns the ingestion status of a notebook.
func (s *WorkspaceService) Status(ctx context.Context, notebookID string) (domain.NotebookStatus, error) {
	st, err := s.hooks.NotebookStatus(ctx, notebookID)
	if err != nil {
		return domain.NotebookStatus{}, fmt.Errorf("notebook status: %w", err)
	}
	return st, nil
}

// FindNotebook resolves a notebook by id or exact name.
func (s *WorkspaceService) FindNotebook(ctx context.Context, ref string) (domain.Notebook, error) {
	list, err := s.hooks.ListNotebooks(ctx)
	if err != nil {
		return domain.Notebook{}, fmt.Errorf("list notebooks: %w", err)
	}
	for _, nb := range list {
		if nb.ID == ref {
			return nb, nil
		}
	}
	for _, nb := range list {
		if strings.EqualFold(nb.Name, ref) {
			return nb, nil
		}
	}
	return domain.Notebook{}, fmt.Errorf("notebook %q not found", ref)
}
