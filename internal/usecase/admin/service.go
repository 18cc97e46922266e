package admin

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/indexstore/internal/domain"
	domidx "github.com/kailas-cloud/indexstore/internal/domain/index"
)

// Health is the failure-rate verdict for one index.
type Health struct {
	Rate    domidx.FailureRate
	Ratio   float64
	Invalid bool
}

// Service exposes index bookkeeping to operators.
type Service struct {
	repo   Repository
	refs   ReferenceReader
	policy domidx.FailurePolicy
}

// New creates an admin service.
func New(repo Repository, refs ReferenceReader, policy domidx.FailurePolicy) *Service {
	return &Service{repo: repo, refs: refs, policy: policy}
}

// List returns the stats of every index in creation order.
func (s *Service) List(ctx context.Context) ([]domidx.Stats, error) {
	stats, err := s.repo.ListStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}
	return stats, nil
}

// Get returns the stats of one index.
func (s *Service) Get(ctx context.Context, name string) (domidx.Stats, error) {
	st, err := s.repo.Stats(ctx, name)
	if err != nil {
		return domidx.Stats{}, fmt.Errorf("get index: %w", err)
	}
	return st, nil
}

// FailureRate returns the failure rate of name judged by the configured
// policy.
func (s *Service) FailureRate(ctx context.Context, name string) (Health, error) {
	fr, err := s.repo.FailureRate(ctx, name)
	if err != nil {
		return Health{}, fmt.Errorf("failure rate: %w", err)
	}
	return Health{Rate: fr, Ratio: fr.Rate(), Invalid: fr.IsInvalid(s.policy)}, nil
}

// Errors returns the indexing error log of name, oldest first.
func (s *Service) Errors(ctx context.Context, name string) ([]domidx.Error, error) {
	errs, err := s.repo.IndexingErrors(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("indexing errors: %w", err)
	}
	return errs, nil
}

// SetPriority parses raw and stores it as the priority of name.
func (s *Service) SetPriority(ctx context.Context, name, raw string) (domidx.Priority, error) {
	p, err := domidx.ParsePriority(raw)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetPriority(ctx, name, p); err != nil {
		return "", fmt.Errorf("set priority: %w", err)
	}
	return p, nil
}

// Touch bumps the touch count of name and returns the updated stats.
func (s *Service) Touch(ctx context.Context, name string) (domidx.Stats, error) {
	if err := s.repo.Touch(ctx, name); err != nil {
		return domidx.Stats{}, fmt.Errorf("touch index: %w", err)
	}
	return s.Get(ctx, name)
}

// ReferencesFrom lists the documents key references.
func (s *Service) ReferencesFrom(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrInvalidDocumentKey)
	}
	keys, err := s.refs.ReferencesFrom(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("references from: %w", err)
	}
	return keys, nil
}

// ReferencedBy lists the documents referencing key.
func (s *Service) ReferencedBy(ctx context.Context, key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrInvalidDocumentKey)
	}
	keys, err := s.refs.ReferencedBy(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("referenced by: %w", err)
	}
	return keys, nil
}

// CountReferencing returns how many documents reference key.
func (s *Service) CountReferencing(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: key is required", domain.ErrInvalidDocumentKey)
	}
	n, err := s.refs.CountReferencing(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("count referencing: %w", err)
	}
	return n, nil
}
