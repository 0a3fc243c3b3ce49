package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

type NotifyProcessor struct {
	notifyService core.NotifyService
	repo          repository.Repository
}

// NewProcessor sets up a new processor for handling notification jobs.
// It needs a notify service to send the notices and a repository to update
// the job status.
func NewProcessor(notifyService core.NotifyService, repo repository.Repository) *NotifyProcessor {
	return &NotifyProcessor{
		notifyService: notifyService,
		repo:          repo,
	}
}

// Process is the main entry point for handling a message from the notify queue.
// It tries to send a notice and will tell the worker to retry if something goes wrong.
func (p *NotifyProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.ConfirmedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal confirmed event")
		return false, 0, err // Do not retry on malformed message
	}

	record, err := p.repo.GetEvent(ctx, event.EventID)
	if err != nil {
		// If we can't get the record, retry after a short delay.
		return true, 10, fmt.Errorf("failed to get record from db for notify processing: %w", err)
	}

	if record.NotifyStatus == model.StatusNotifyCompleted {
		log.Ctx(ctx).Info().Int64("event_id", event.EventID).Msg("Notice already sent. Skipping.")
		return false, 0, nil
	}

	to := fmt.Sprintf("personnel-%d@attendance-service.com", event.PersonnelID)
	err = p.notifyService.SendAttendanceNotice(ctx, to, event.Kind, event.CapturedAt)
	if err != nil {
		newCount := record.NotifyRetries + 1
		p.repo.UpdateNotifyStatus(ctx, event.EventID, model.StatusNotifyPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.repo.UpdateNotifyStatus(ctx, event.EventID, model.StatusNotifyCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry to avoid overwhelming a struggling service.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 { // Cap at 1 hour
		return 3600
	}
	return backoff
}
