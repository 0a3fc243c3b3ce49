package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"attendance.service/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AttendanceRepository is the concrete implementation for a PostgreSQL database.
type AttendanceRepository struct {
	DB *sql.DB
}

// NewAttendanceRepository create new instance
func NewAttendanceRepository(db *sql.DB) Repository {
	return &AttendanceRepository{DB: db}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const eventColumns = `id, personnel_id, kind, disposition, confidence, source, captured_at,
	created_by, created_at, modified_by, modified_at,
	notify_status, notify_retry_count, audit_status, audit_retry_count`

const eventColumnsPrefixed = `e.id, e.personnel_id, e.kind, e.disposition, e.confidence, e.source, e.captured_at,
	e.created_by, e.created_at, e.modified_by, e.modified_at,
	e.notify_status, e.notify_retry_count, e.audit_status, e.audit_retry_count`

func scanEvent(row interface{ Scan(...any) error }) (*model.AttendanceEvent, error) {
	ev := &model.AttendanceEvent{}
	err := row.Scan(
		&ev.ID, &ev.PersonnelID, &ev.Kind, &ev.Disposition, &ev.Confidence, &ev.Source, &ev.CapturedAt,
		&ev.CreatedBy, &ev.CreatedAt, &ev.ModifiedBy, &ev.ModifiedAt,
		&ev.NotifyStatus, &ev.NotifyRetries, &ev.AuditStatus, &ev.AuditRetries,
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// LastConfirmed get the latest confirmed event for a person.
func (r *AttendanceRepository) LastConfirmed(ctx context.Context, personnelID int64) (*model.AttendanceEvent, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("app.personnel_id", personnelID))

	query := `SELECT ` + eventColumns + `
              FROM attendance_events
              WHERE personnel_id = $1 AND disposition = $2
              ORDER BY captured_at DESC, id DESC
              LIMIT 1`

	ev, err := scanEvent(r.DB.QueryRowContext(ctx, query, personnelID, model.DispositionConfirmed))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// SaveConfirmed inserts a confirmed event inside a transaction holding a
// per-personnel advisory lock, so concurrent confirmations for the same
// person run one at a time. The insert stays conditional on the latest
// confirmed kind still differing from the one being written; a writer that
// committed between the caller's sequence read and the lock surfaces as
// ErrAlternationConflict instead of a broken sequence.
func (r *AttendanceRepository) SaveConfirmed(ctx context.Context, ev *model.AttendanceEvent) (*model.AttendanceEvent, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("app.personnel_id", ev.PersonnelID))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirm transaction: %w", err)
	}
	defer tx.Rollback()

	saved, err := r.saveConfirmedTx(ctx, tx, ev)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirm transaction: %w", err)
	}
	return saved, nil
}

func (r *AttendanceRepository) saveConfirmedTx(ctx context.Context, tx *sql.Tx, ev *model.AttendanceEvent) (*model.AttendanceEvent, error) {
	// Held until commit. The conditional insert alone is not enough: under
	// READ COMMITTED two concurrent statements each evaluate the kind
	// subquery against a snapshot that excludes the other's uncommitted row.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ev.PersonnelID); err != nil {
		return nil, fmt.Errorf("acquire personnel lock: %w", err)
	}

	query := `INSERT INTO attendance_events
                (personnel_id, kind, disposition, confidence, source, captured_at, created_by,
                 notify_status, notify_retry_count, audit_status, audit_retry_count)
              SELECT $1, $2, $3, $4, $5, $6, $7, $8, 0, $9, 0
              WHERE $2::text IS DISTINCT FROM (
                  SELECT kind FROM attendance_events
                  WHERE personnel_id = $1 AND disposition = $3
                  ORDER BY captured_at DESC, id DESC
                  LIMIT 1
              )
              RETURNING id, created_at`

	err := tx.QueryRowContext(ctx, query,
		ev.PersonnelID, ev.Kind, model.DispositionConfirmed, ev.Confidence, ev.Source,
		ev.CapturedAt, ev.CreatedBy, model.StatusNotifyPending, model.StatusAuditPending,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAlternationConflict
	}
	if err != nil {
		return nil, err
	}

	ev.Disposition = model.DispositionConfirmed
	ev.NotifyStatus = model.StatusNotifyPending
	ev.AuditStatus = model.StatusAuditPending
	return ev, nil
}

// SavePending quarantines a medium-confidence capture for human review.
func (r *AttendanceRepository) SavePending(ctx context.Context, entry *model.PendingReviewEntry) (*model.PendingReviewEntry, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("app.personnel_id", entry.PersonnelID))

	query := `INSERT INTO pending_reviews (personnel_id, confidence, captured_at, review_status)
              VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	err := r.DB.QueryRowContext(ctx, query,
		entry.PersonnelID, entry.Confidence, entry.CapturedAt, model.ReviewPending,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.Status = model.ReviewPending
	return entry, nil
}

const pendingColumns = `id, personnel_id, confidence, captured_at, review_status, reviewed_by, reviewed_at, created_at`

func scanPending(row interface{ Scan(...any) error }) (*model.PendingReviewEntry, error) {
	e := &model.PendingReviewEntry{}
	err := row.Scan(&e.ID, &e.PersonnelID, &e.Confidence, &e.CapturedAt, &e.Status, &e.ReviewedBy, &e.ReviewedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FindPending fetches a pending-review entry by id.
func (r *AttendanceRepository) FindPending(ctx context.Context, id int64) (*model.PendingReviewEntry, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_reviews WHERE id = $1`

	entry, err := scanPending(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListPending returns entries still awaiting review, newest first.
func (r *AttendanceRepository) ListPending(ctx context.Context) ([]model.PendingReviewEntry, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_reviews
              WHERE review_status = $1 ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, model.ReviewPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.PendingReviewEntry
	for rows.Next() {
		entry, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// CountPending counts entries still awaiting review.
func (r *AttendanceRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pending_reviews WHERE review_status = $1`

	err := r.DB.QueryRowContext(ctx, query, model.ReviewPending).Scan(&count)
	return count, err
}

// TransitionPending moves an entry out of the pending state exactly once.
func (r *AttendanceRepository) TransitionPending(ctx context.Context, id int64, status model.ReviewStatus, reviewer int64, at time.Time) (*model.PendingReviewEntry, error) {
	return r.transitionPendingTx(ctx, r.DB, id, status, reviewer, at)
}

func (r *AttendanceRepository) transitionPendingTx(ctx context.Context, q rowQuerier, id int64, status model.ReviewStatus, reviewer int64, at time.Time) (*model.PendingReviewEntry, error) {
	query := `UPDATE pending_reviews
              SET review_status = $1, reviewed_by = $2, reviewed_at = $3
              WHERE id = $4 AND review_status = $5
              RETURNING ` + pendingColumns

	entry, err := scanPending(q.QueryRowContext(ctx, query, status, reviewer, at, id, model.ReviewPending))
	if err == sql.ErrNoRows {
		// Either the entry does not exist or it was already reviewed.
		var exists bool
		if checkErr := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pending_reviews WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return nil, checkErr
		}
		if exists {
			return nil, ErrAlreadyReviewed
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ApprovePending writes the confirmed event and the approved transition in a
// single transaction.
func (r *AttendanceRepository) ApprovePending(ctx context.Context, entryID int64, ev *model.AttendanceEvent, reviewer int64, at time.Time) (*model.AttendanceEvent, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve transaction: %w", err)
	}
	defer tx.Rollback()

	saved, err := r.saveConfirmedTx(ctx, tx, ev)
	if err != nil {
		return nil, err
	}

	if _, err := r.transitionPendingTx(ctx, tx, entryID, model.ReviewApproved, reviewer, at); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve transaction: %w", err)
	}
	return saved, nil
}

// GetEvent fetches a complete attendance_events record by its ID.
func (r *AttendanceRepository) GetEvent(ctx context.Context, id int64) (*model.AttendanceEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM attendance_events WHERE id = $1`

	ev, err := scanEvent(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents returns one page of events matching the filter, newest first.
// The station filter joins through the personnel directory.
func (r *AttendanceRepository) ListEvents(ctx context.Context, f EventFilter) (*EventPage, error) {
	where := []string{"e.disposition = $1"}
	args := []any{model.DispositionConfirmed}

	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.PersonnelID != nil {
		add("e.personnel_id = $%d", *f.PersonnelID)
	}
	if f.StationID != nil {
		add("p.station_id = $%d", *f.StationID)
	}
	if f.Kind != nil {
		add("e.kind = $%d", *f.Kind)
	}
	if f.From != nil {
		add("e.captured_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("e.captured_at <= $%d", *f.To)
	}

	base := ` FROM attendance_events e
              JOIN personnel p ON p.id = e.personnel_id
              WHERE ` + strings.Join(where, " AND ")

	page := &EventPage{Page: f.Page, Limit: f.Limit}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+base, args...).Scan(&page.Total); err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumnsPrefixed + base +
		fmt.Sprintf(` ORDER BY e.captured_at DESC, e.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, *ev)
	}
	return page, rows.Err()
}

// UpdateEvent persists an edit, including the modified_by/modified_at stamp
// set by the caller.
func (r *AttendanceRepository) UpdateEvent(ctx context.Context, ev *model.AttendanceEvent) error {
	query := `UPDATE attendance_events
              SET personnel_id = $1,
                  kind = $2,
                  captured_at = $3,
                  modified_by = $4,
                  modified_at = $5
              WHERE id = $6`

	res, err := r.DB.ExecContext(ctx, query, ev.PersonnelID, ev.Kind, ev.CapturedAt, ev.ModifiedBy, ev.ModifiedAt, ev.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes an attendance record.
func (r *AttendanceRepository) DeleteEvent(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM attendance_events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNotifyStatus updates the status and retry count for a notification job.
func (r *AttendanceRepository) UpdateNotifyStatus(ctx context.Context, id int64, status model.NotifyStatus, retryCount int) error {
	query := `UPDATE attendance_events
              SET notify_status = $1,
                  notify_retry_count = $2
              WHERE id = $3`

	_, err := r.DB.ExecContext(ctx, query, status, retryCount, id)
	return err
}

// UpdateAuditStatus updates the status and retry count for an audit-log job.
func (r *AttendanceRepository) UpdateAuditStatus(ctx context.Context, id int64, status model.AuditStatus, retryCount int) error {
	query := `UPDATE attendance_events
              SET audit_status = $1,
                  audit_retry_count = $2
              WHERE id = $3`

	_, err := r.DB.ExecContext(ctx, query, status, retryCount, id)
	return err
}

// InsertActivityLog appends an audit-trail row.
func (r *AttendanceRepository) InsertActivityLog(ctx context.Context, entry model.ActivityLogEntry) error {
	query := `INSERT INTO activity_log (user_id, title, description, occurred_at)
              VALUES ($1, $2, $3, $4)`

	_, err := r.DB.ExecContext(ctx, query, entry.UserID, entry.Title, entry.Description, entry.OccurredAt)
	return err
}
