package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bluegreen-server/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) domain.HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, op *domain.Operation) (*domain.Operation, error) {
	query := `
		INSERT INTO operations (
			trace_id, app, kind, status, actor, from_slot, to_slot,
			emergency, detail, error, error_kind, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		op.TraceID.String(),
		op.App,
		string(op.Kind),
		string(op.Status),
		op.Actor,
		string(op.FromSlot),
		string(op.ToSlot),
		op.Emergency,
		op.Detail,
		op.Error,
		op.ErrorKind,
		op.StartedAt,
		op.FinishedAt,
	).Scan(&op.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert operation: %w", err)
	}

	return op, nil
}

func (r *HistoryRepository) List(ctx context.Context, opts domain.OperationListOptions) ([]*domain.Operation, int64, error) {
	baseQuery := `
		SELECT
			id,
			trace_id::text,
			app,
			kind,
			status,
			actor,
			from_slot,
			to_slot,
			emergency,
			detail,
			error,
			error_kind,
			started_at,
			finished_at
		FROM operations
	`

	args := []any{}
	conditions := []string{}
	argCounter := 1

	if opts.App != "" {
		conditions = append(conditions, fmt.Sprintf("app = $%d", argCounter))
		args = append(args, opts.App)
		argCounter++
	}

	if opts.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argCounter))
		args = append(args, string(opts.Kind))
		argCounter++
	}

	if opts.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(actor ILIKE $%d OR detail ILIKE $%d OR error ILIKE $%d)", argCounter, argCounter, argCounter))
		args = append(args, "%"+opts.Search+"%")
		argCounter++
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	baseQuery += " ORDER BY started_at DESC, id DESC"

	var total int64
	if opts.IsPaginate {
		countQuery := "SELECT COUNT(*) FROM operations"
		if len(conditions) > 0 {
			countQuery += " WHERE " + strings.Join(conditions, " AND ")
		}
		if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count operations: %w", err)
		}

		offset := (opts.Page - 1) * opts.Limit
		baseQuery += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCounter, argCounter+1)
		args = append(args, opts.Limit, offset)
	} else {
		limit := opts.Limit
		if limit <= 0 {
			limit = 1000
		}
		baseQuery += fmt.Sprintf(" LIMIT $%d", argCounter)
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []*domain.Operation
	for rows.Next() {
		var (
			op               domain.Operation
			traceID          string
			kind, status     string
			fromSlot, toSlot string
		)
		if err := rows.Scan(
			&op.ID,
			&traceID,
			&op.App,
			&kind,
			&status,
			&op.Actor,
			&fromSlot,
			&toSlot,
			&op.Emergency,
			&op.Detail,
			&op.Error,
			&op.ErrorKind,
			&op.StartedAt,
			&op.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan operation: %w", err)
		}
		if err := op.TraceID.UnmarshalText([]byte(traceID)); err != nil {
			return nil, 0, fmt.Errorf("failed to parse trace id: %w", err)
		}
		op.Kind = domain.OperationKind(kind)
		op.Status = domain.OperationStatus(status)
		op.FromSlot = domain.Slot(fromSlot)
		op.ToSlot = domain.Slot(toSlot)

		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return ops, total, nil
}

func (r *HistoryRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM operations WHERE started_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete operations: %w", err)
	}
	return tag.RowsAffected(), nil
}
