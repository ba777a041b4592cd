// Package history
package history

import (
	"context"
	"time"

	"bluegreen-server/internal/domain"
)

type Service struct {
	repo domain.HistoryRepository
}

func NewService(repo domain.HistoryRepository) domain.HistoryService {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, op *domain.Operation) error {
	_, err := s.repo.Create(ctx, op)
	return err
}

func (s *Service) List(ctx context.Context, opts domain.OperationListOptions) (*domain.ListResult[*domain.Operation], error) {
	if opts.IsPaginate {
		if opts.Page <= 0 {
			opts.Page = 1
		}
		if opts.Limit <= 0 {
			opts.Limit = 20
		}
	} else {
		if opts.Limit <= 0 || opts.Limit > 1000 {
			opts.Limit = 50
		}
	}

	ops, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	res := &domain.ListResult[*domain.Operation]{
		Data: ops,
		Meta: nil,
	}

	if opts.IsPaginate {
		res.Meta = domain.CalculateMeta(total, opts.Page, opts.Limit)
	}

	return res, nil
}

// Prune deletes operations that started before the given time.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteBefore(ctx, before)
}
