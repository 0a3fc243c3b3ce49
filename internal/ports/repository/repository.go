package repository

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/core/model"
)

// Sentinel errors the workflow core maps onto its error taxonomy.
var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyReviewed is returned by pending-entry transitions when the
	// entry is no longer in the pending state.
	ErrAlreadyReviewed = errors.New("entry already reviewed")
	// ErrAlternationConflict is returned by SaveConfirmed when a concurrent
	// writer already appended an event of the same kind. The caller retries
	// from the alternation read.
	ErrAlternationConflict = errors.New("attendance kind alternation conflict")
)

// EventFilter narrows a ListEvents query. Nil fields are not applied.
type EventFilter struct {
	PersonnelID *int64
	StationID   *int64
	Kind        *model.Kind
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}

// EventPage is one page of attendance events plus the unpaged total.
type EventPage struct {
	Items []model.AttendanceEvent `json:"items"`
	Total int                     `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}

// Repository is the record-store contract consumed by the workflow core and
// the queue workers.
type Repository interface {
	// LastConfirmed returns the most recent confirmed event for a person,
	// ordered by captured_at then id descending, or nil if none exists.
	LastConfirmed(ctx context.Context, personnelID int64) (*model.AttendanceEvent, error)
	// SaveConfirmed persists a confirmed event. It fails with
	// ErrAlternationConflict if the latest confirmed kind for the person
	// already equals ev.Kind.
	SaveConfirmed(ctx context.Context, ev *model.AttendanceEvent) (*model.AttendanceEvent, error)
	SavePending(ctx context.Context, entry *model.PendingReviewEntry) (*model.PendingReviewEntry, error)
	FindPending(ctx context.Context, id int64) (*model.PendingReviewEntry, error)
	ListPending(ctx context.Context) ([]model.PendingReviewEntry, error)
	CountPending(ctx context.Context) (int, error)
	// TransitionPending moves a pending entry to a terminal status, stamping
	// the reviewer. Fails with ErrAlreadyReviewed unless the entry is
	// currently pending.
	TransitionPending(ctx context.Context, id int64, status model.ReviewStatus, reviewer int64, at time.Time) (*model.PendingReviewEntry, error)
	// ApprovePending writes the confirmed event and the approved transition
	// as one transaction, so a pending entry can never end up with a
	// confirmed twin while still pending.
	ApprovePending(ctx context.Context, entryID int64, ev *model.AttendanceEvent, reviewer int64, at time.Time) (*model.AttendanceEvent, error)

	GetEvent(ctx context.Context, id int64) (*model.AttendanceEvent, error)
	ListEvents(ctx context.Context, f EventFilter) (*EventPage, error)
	UpdateEvent(ctx context.Context, ev *model.AttendanceEvent) error
	DeleteEvent(ctx context.Context, id int64) error

	// Worker bookkeeping.
	UpdateNotifyStatus(ctx context.Context, id int64, status model.NotifyStatus, retryCount int) error
	UpdateAuditStatus(ctx context.Context, id int64, status model.AuditStatus, retryCount int) error
	InsertActivityLog(ctx context.Context, entry model.ActivityLogEntry) error
}

// Directory resolves personnel identity to station assignment.
type Directory interface {
	// StationOf returns the station a person is assigned to, or ErrNotFound.
	StationOf(ctx context.Context, personnelID int64) (int64, error)
}
