package core

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// ReviewService carries medium-confidence captures through the human-review
// lifecycle: a pending entry is approved into a confirmed event or rejected,
// exactly once.
type ReviewService struct {
	repo     repository.Repository
	producer messaging.QueueProducer
	now      func() time.Time
}

// NewReviewService creates the review lifecycle service.
func NewReviewService(repo repository.Repository, p messaging.QueueProducer) *ReviewService {
	return &ReviewService{
		repo:     repo,
		producer: p,
		now:      time.Now,
	}
}

// ListPending returns entries awaiting review. Admin only.
func (s *ReviewService) ListPending(ctx context.Context, identity model.Identity) ([]model.PendingReviewEntry, error) {
	if err := Authorize(OpListPending, identity, nil); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to list pending entries")
	}
	return entries, nil
}

// CountPending returns the number of entries awaiting review. Admin only.
func (s *ReviewService) CountPending(ctx context.Context, identity model.Identity) (int, error) {
	if err := Authorize(OpListPending, identity, nil); err != nil {
		return 0, err
	}

	count, err := s.repo.CountPending(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnknown, err, "failed to count pending entries")
	}
	return count, nil
}

// Approve promotes a pending entry into a confirmed attendance event. The
// expected kind is computed now, not at capture time: the alternation
// sequence may have moved while the entry sat in the queue. The event write
// and the status transition commit as one unit in the store.
func (s *ReviewService) Approve(ctx context.Context, entryID int64, identity model.Identity) (*model.AttendanceEvent, error) {
	if err := Authorize(OpReviewPending, identity, nil); err != nil {
		return nil, err
	}

	entry, err := s.repo.FindPending(ctx, entryID)
	if err != nil {
		return nil, mapPendingErr(err, entryID)
	}
	if entry.Status != model.ReviewPending {
		return nil, apperr.New(apperr.KindAlreadyReviewed,
			"entry #%d has already been reviewed (status: %s)", entryID, entry.Status)
	}

	reviewedAt := s.now().UTC()
	for attempt := 0; attempt < maxAlternationRetries; attempt++ {
		last, err := s.repo.LastConfirmed(ctx, entry.PersonnelID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to query last confirmed event")
		}

		confidence := entry.Confidence
		saved, err := s.repo.ApprovePending(ctx, entryID, &model.AttendanceEvent{
			PersonnelID: entry.PersonnelID,
			Kind:        NextKind(last),
			Disposition: model.DispositionConfirmed,
			Confidence:  &confidence,
			Source:      model.SourceRecognition,
			CapturedAt:  entry.CapturedAt,
			CreatedBy:   identity.ActorID,
		}, identity.ActorID, reviewedAt)
		if errors.Is(err, repository.ErrAlternationConflict) {
			log.Ctx(ctx).Warn().Int64("entry_id", entryID).Int("attempt", attempt+1).
				Msg("Alternation conflict during approval, retrying from sequence read")
			continue
		}
		if err != nil {
			return nil, mapPendingErr(err, entryID)
		}

		s.publishConfirmed(ctx, saved)
		log.Ctx(ctx).Info().Int64("entry_id", entryID).Int64("event_id", saved.ID).
			Str("kind", string(saved.Kind)).Msg("Pending entry approved")
		return saved, nil
	}

	return nil, apperr.New(apperr.KindAlternationConflict,
		"concurrent attendance updates for personnel #%d, please retry", entry.PersonnelID)
}

// Reject archives a pending entry without creating an attendance event.
func (s *ReviewService) Reject(ctx context.Context, entryID int64, identity model.Identity) (*model.PendingReviewEntry, error) {
	if err := Authorize(OpReviewPending, identity, nil); err != nil {
		return nil, err
	}

	entry, err := s.repo.TransitionPending(ctx, entryID, model.ReviewRejected, identity.ActorID, s.now().UTC())
	if err != nil {
		return nil, mapPendingErr(err, entryID)
	}

	log.Ctx(ctx).Info().Int64("entry_id", entryID).Msg("Pending entry rejected")
	return entry, nil
}

func (s *ReviewService) publishConfirmed(ctx context.Context, ev *model.AttendanceEvent) {
	event := messaging.ConfirmedEvent{
		EventID:     ev.ID,
		PersonnelID: ev.PersonnelID,
		Kind:        ev.Kind,
		Source:      ev.Source,
		CapturedAt:  ev.CapturedAt,
		RecordedBy:  ev.CreatedBy,
	}

	if err := s.producer.PublishNotify(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("event_id", ev.ID).Msg("Failed to publish notify event")
	}
	if err := s.producer.PublishAudit(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("event_id", ev.ID).Msg("Failed to publish audit event")
	}
}

func mapPendingErr(err error, entryID int64) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "pending entry #%d not found", entryID)
	case errors.Is(err, repository.ErrAlreadyReviewed):
		return apperr.New(apperr.KindAlreadyReviewed, "entry #%d has already been reviewed", entryID)
	default:
		return apperr.Wrap(apperr.KindUnknown, err, "pending review operation failed")
	}
}
