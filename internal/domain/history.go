package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type OperationKind string

const (
	OperationDeploy OperationKind = "deploy"
	OperationSwitch OperationKind = "switch"
)

type OperationStatus string

const (
	OperationSucceeded        OperationStatus = "succeeded"
	OperationFailed           OperationStatus = "failed"
	OperationApprovalRequired OperationStatus = "approval_required"
	OperationRejected         OperationStatus = "rejected"
	OperationInconsistent     OperationStatus = "inconsistent"
)

// Operation is one entry of the audit log kept for deploys and switches.
type Operation struct {
	ID         int64           `json:"id"`
	TraceID    uuid.UUID       `json:"trace_id"`
	App        string          `json:"app"`
	Kind       OperationKind   `json:"kind"`
	Status     OperationStatus `json:"status"`
	Actor      string          `json:"actor,omitempty"`
	FromSlot   Slot            `json:"from_slot,omitempty"`
	ToSlot     Slot            `json:"to_slot,omitempty"`
	Emergency  bool            `json:"emergency"`
	Detail     string          `json:"detail,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

type OperationListOptions struct {
	ListOptions
	App  string        `json:"app"`
	Kind OperationKind `json:"kind"`
}

type HistoryRepository interface {
	Create(ctx context.Context, op *Operation) (*Operation, error)
	List(ctx context.Context, opts OperationListOptions) ([]*Operation, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type HistoryService interface {
	Record(ctx context.Context, op *Operation) error
	List(ctx context.Context, opts OperationListOptions) (*ListResult[*Operation], error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}
