package messaging

import (
	"time"

	"attendance.service/internal/core/model"
)

// ConfirmedEvent is the JSON payload published whenever an attendance event
// reaches the confirmed disposition, consumed by the notify and audit queues.
type ConfirmedEvent struct {
	EventID     int64        `json:"eventId"`
	PersonnelID int64        `json:"personnelId"`
	Kind        model.Kind   `json:"kind"`
	Source      model.Source `json:"source"`
	CapturedAt  time.Time    `json:"capturedAt"`
	RecordedBy  int64        `json:"recordedBy"`
}
