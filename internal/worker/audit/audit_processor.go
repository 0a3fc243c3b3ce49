package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// AuditProcessor handles jobs from the audit queue, appending activity-log
// rows for every confirmed attendance event.
type AuditProcessor struct {
	repo repository.Repository
}

// NewProcessor creates a new processor for the audit queue.
func NewProcessor(r repository.Repository) *AuditProcessor {
	return &AuditProcessor{repo: r}
}

// Process is the core logic for handling a message from the audit queue.
// It writes the activity-log row and handles retries with exponential backoff.
func (p *AuditProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.ConfirmedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal confirmed event")
		return false, 0, err // Do not retry on malformed message
	}

	record, err := p.repo.GetEvent(ctx, event.EventID)
	if err != nil {
		return true, 10, fmt.Errorf("failed to get record from db: %w", err)
	}

	if record.AuditStatus == model.StatusAuditCompleted {
		return false, 0, nil
	}

	entry := model.ActivityLogEntry{
		UserID: event.RecordedBy,
		Title:  fmt.Sprintf("Attendance %s recorded", event.Kind.Label()),
		Description: fmt.Sprintf("Personnel #%d %s via %s at %s",
			event.PersonnelID, event.Kind.Label(), event.Source, event.CapturedAt),
		OccurredAt: event.CapturedAt,
	}

	if err := p.repo.InsertActivityLog(ctx, entry); err != nil {
		newCount := record.AuditRetries + 1
		p.repo.UpdateAuditStatus(ctx, event.EventID, model.StatusAuditPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.repo.UpdateAuditStatus(ctx, event.EventID, model.StatusAuditCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
