package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bluegreen-server/internal/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) domain.HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, op *domain.Operation) (*domain.Operation, error) {
	query := `
		INSERT INTO operations (
			trace_id, app, kind, status, actor, from_slot, to_slot,
			emergency, detail, error, error_kind, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.ExecContext(ctx, query,
		op.TraceID.String(),
		op.App,
		op.Kind,
		op.Status,
		op.Actor,
		op.FromSlot,
		op.ToSlot,
		op.Emergency,
		op.Detail,
		op.Error,
		op.ErrorKind,
		op.StartedAt.UTC(),
		op.FinishedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read operation id: %w", err)
	}
	op.ID = id

	return op, nil
}

func (r *HistoryRepository) List(ctx context.Context, opts domain.OperationListOptions) ([]*domain.Operation, int64, error) {
	conditions := []string{}
	args := []any{}

	if opts.App != "" {
		conditions = append(conditions, "app = ?")
		args = append(args, opts.App)
	}
	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.Search != "" {
		conditions = append(conditions, "(actor LIKE ? OR detail LIKE ? OR error LIKE ?)")
		like := "%" + opts.Search + "%"
		args = append(args, like, like, like)
	}

	whereQuery := ""
	if len(conditions) > 0 {
		whereQuery = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if opts.IsPaginate {
		countQuery := "SELECT COUNT(*) FROM operations" + whereQuery
		if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count operations: %w", err)
		}
	}

	selectQuery := `
		SELECT id, trace_id, app, kind, status, actor, from_slot, to_slot,
		       emergency, detail, error, error_kind, started_at, finished_at
		FROM operations` + whereQuery + " ORDER BY started_at DESC, id DESC"

	if opts.IsPaginate {
		offset := (opts.Page - 1) * opts.Limit
		selectQuery += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, offset)
	} else {
		limit := opts.Limit
		if limit <= 0 {
			limit = 1000
		}
		selectQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []*domain.Operation
	for rows.Next() {
		var op domain.Operation
		if err := rows.Scan(
			&op.ID,
			&op.TraceID,
			&op.App,
			&op.Kind,
			&op.Status,
			&op.Actor,
			&op.FromSlot,
			&op.ToSlot,
			&op.Emergency,
			&op.Detail,
			&op.Error,
			&op.ErrorKind,
			&op.StartedAt,
			&op.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return ops, total, nil
}

func (r *HistoryRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM operations WHERE started_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete operations: %w", err)
	}
	return res.RowsAffected()
}
