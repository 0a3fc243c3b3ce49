package model

import (
	"time"
)

// Kind is the direction of an attendance event.
type Kind string

const (
	KindTimeIn  Kind = "time_in"
	KindTimeOut Kind = "time_out"
)

// Opposite returns the complementary kind.
func (k Kind) Opposite() Kind {
	if k == KindTimeIn {
		return KindTimeOut
	}
	return KindTimeIn
}

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindTimeIn || k == KindTimeOut
}

// Label is the human-readable form used in operator-facing error messages.
func (k Kind) Label() string {
	if k == KindTimeIn {
		return "Time In"
	}
	return "Time Out"
}

// Disposition is the outcome of routing a capture or manual entry.
type Disposition string

const (
	DispositionConfirmed Disposition = "confirmed"
	DispositionPending   Disposition = "pending"
	DispositionRejected  Disposition = "rejected"
)

// Source records how an attendance event entered the system.
type Source string

const (
	SourceRecognition Source = "recognition"
	SourceManual      Source = "manual"
)

// ReviewStatus is the lifecycle state of a pending review entry. The
// transition out of Pending happens exactly once.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// NotifyStatus defines the state of the notification event processing.
type NotifyStatus string

const (
	StatusNotifyPending   NotifyStatus = "PENDING"
	StatusNotifyCompleted NotifyStatus = "COMPLETED"
	StatusNotifyFailed    NotifyStatus = "FAILED"
)

// AuditStatus defines the state of the activity-log event processing.
type AuditStatus string

const (
	StatusAuditPending   AuditStatus = "PENDING"
	StatusAuditCompleted AuditStatus = "COMPLETED"
	StatusAuditFailed    AuditStatus = "FAILED"
)

// Role of an authenticated principal.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleStationUser Role = "station_user"
	RoleKiosk       Role = "kiosk"
)

// Identity is the acting principal, supplied per call and never cached.
// StationID is nil for admins, set for station users and kiosks.
type Identity struct {
	ActorID   int64
	Role      Role
	StationID *int64
}

// AttendanceEvent is the unit of record. Confidence is set only for
// recognition-sourced events; ModifiedBy/ModifiedAt only after an edit.
type AttendanceEvent struct {
	ID            int64        `json:"id"`
	PersonnelID   int64        `json:"personnelId"`
	Kind          Kind         `json:"kind"`
	Disposition   Disposition  `json:"disposition"`
	Confidence    *float64     `json:"confidence,omitempty"`
	Source        Source       `json:"source"`
	CapturedAt    time.Time    `json:"capturedAt"`
	CreatedBy     int64        `json:"createdBy"`
	CreatedAt     time.Time    `json:"createdAt"`
	ModifiedBy    *int64       `json:"modifiedBy,omitempty"`
	ModifiedAt    *time.Time   `json:"modifiedAt,omitempty"`
	NotifyStatus  NotifyStatus `json:"notifyStatus,omitempty"`
	NotifyRetries int          `json:"notifyRetries,omitempty"`
	AuditStatus   AuditStatus  `json:"auditStatus,omitempty"`
	AuditRetries  int          `json:"auditRetries,omitempty"`
}

// PendingReviewEntry quarantines a medium-confidence capture. It carries no
// kind: the kind is computed at promotion time so that entries approved out
// of order still respect the alternation sequence.
type PendingReviewEntry struct {
	ID          int64        `json:"id"`
	PersonnelID int64        `json:"personnelId"`
	Confidence  float64      `json:"confidence"`
	CapturedAt  time.Time    `json:"capturedAt"`
	Status      ReviewStatus `json:"reviewStatus"`
	ReviewedBy  *int64       `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time   `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ActivityLogEntry is an audit-trail row written by the audit worker.
type ActivityLogEntry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurredAt"`
}
