package core

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/recognizer"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// Confidence thresholds of the disposition router. Fixed at design time: the
// threshold/alternation interaction is an invariant, not a tunable.
const (
	ConfirmThreshold = 0.6
	ReviewThreshold  = 0.4
)

// maxAlternationRetries bounds the optimistic-write retry loop on the
// confirm path before the conflict is surfaced to the caller.
const maxAlternationRetries = 3

// defaultPageLimit and maxPageLimit bound event listing pages.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// CaptureOutcome is the tagged result of routing a capture. Exactly one of
// Event/Pending is set for the confirmed/pending dispositions; Confidence is
// always set for recognition-sourced captures.
type CaptureOutcome struct {
	Disposition model.Disposition
	Event       *model.AttendanceEvent
	Pending     *model.PendingReviewEntry
	Confidence  float64
}

// EventPatch is a partial edit of an attendance event. Nil fields are left
// unchanged.
type EventPatch struct {
	Kind        *model.Kind
	PersonnelID *int64
	CapturedAt  *time.Time
}

// AttendanceService owns the capture and manual-entry workflow: image
// validation, recognition, confidence routing and the alternation invariant.
type AttendanceService struct {
	repo       repository.Repository
	directory  repository.Directory
	recognizer recognizer.Recognizer
	producer   messaging.QueueProducer
	now        func() time.Time
}

// NewAttendanceService creates a new instance of our main application service,
// wiring up the record store, personnel directory, face recognizer and the
// message queue producer.
func NewAttendanceService(repo repository.Repository, dir repository.Directory, rec recognizer.Recognizer, p messaging.QueueProducer) *AttendanceService {
	return &AttendanceService{
		repo:       repo,
		directory:  dir,
		recognizer: rec,
		producer:   p,
		now:        time.Now,
	}
}

// Capture runs the recognition workflow: validate the image, identify the
// person, then route by confidence into confirmed, pending-review or
// rejected.
func (s *AttendanceService) Capture(ctx context.Context, image string, stationHint *int64, requestedKind *model.Kind, identity model.Identity) (*CaptureOutcome, error) {
	if err := Authorize(OpCapture, identity, nil); err != nil {
		return nil, err
	}
	if err := ValidateImage(image); err != nil {
		return nil, err
	}
	if requestedKind != nil && !requestedKind.Valid() {
		return nil, apperr.New(apperr.KindInvalidInput, "unknown attendance kind %q", *requestedKind)
	}

	stationID := int64(0)
	if stationHint != nil {
		stationID = *stationHint
	} else if identity.StationID != nil {
		stationID = *identity.StationID
	}

	match, err := s.recognizer.Recognize(ctx, image, stationID)
	if err != nil {
		var noMatch *recognizer.NoMatchError
		if errors.As(err, &noMatch) {
			// The recognizer answered but found nobody. A terminal business
			// rejection, not a service fault.
			return &CaptureOutcome{Disposition: model.DispositionRejected, Confidence: noMatch.Confidence}, nil
		}
		return nil, apperr.Wrap(apperr.KindServiceUnavailable, err, "face recognition service unavailable")
	}

	return s.route(ctx, routeInput{
		personnelID:   match.PersonnelID,
		confidence:    &match.Confidence,
		requestedKind: requestedKind,
		source:        model.SourceRecognition,
		actor:         identity.ActorID,
		capturedAt:    s.now().UTC(),
	})
}

// CreateManual records a confirmed manual entry, still subject to the
// alternation check and to station scoping.
func (s *AttendanceService) CreateManual(ctx context.Context, personnelID int64, kind model.Kind, capturedAt time.Time, identity model.Identity) (*model.AttendanceEvent, error) {
	if !kind.Valid() {
		return nil, apperr.New(apperr.KindInvalidInput, "unknown attendance kind %q", kind)
	}
	if capturedAt.After(s.now()) {
		return nil, apperr.New(apperr.KindInvalidInput, "attendance date cannot be in the future")
	}

	station, err := s.directory.StationOf(ctx, personnelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "personnel #%d not found", personnelID)
		}
		return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to resolve personnel station")
	}
	if err := Authorize(OpCreateManual, identity, &station); err != nil {
		return nil, err
	}

	outcome, err := s.route(ctx, routeInput{
		personnelID:   personnelID,
		requestedKind: &kind,
		source:        model.SourceManual,
		actor:         identity.ActorID,
		capturedAt:    capturedAt,
	})
	if err != nil {
		return nil, err
	}
	return outcome.Event, nil
}

type routeInput struct {
	personnelID   int64
	confidence    *float64
	requestedKind *model.Kind
	source        model.Source
	actor         int64
	capturedAt    time.Time
}

// route is the disposition router: given a confidence it decides between the
// confirmed, pending and rejected paths. Manual entries bypass confidence
// and always confirm. Exactly one persistence write happens per invocation.
func (s *AttendanceService) route(ctx context.Context, in routeInput) (*CaptureOutcome, error) {
	if in.source == model.SourceManual {
		return s.confirm(ctx, in)
	}

	c := *in.confidence
	switch {
	case c >= ConfirmThreshold:
		return s.confirm(ctx, in)

	case c >= ReviewThreshold:
		entry, err := s.repo.SavePending(ctx, &model.PendingReviewEntry{
			PersonnelID: in.personnelID,
			Confidence:  c,
			CapturedAt:  in.capturedAt,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to quarantine capture for review")
		}
		log.Ctx(ctx).Info().Int64("personnel_id", in.personnelID).Float64("confidence", c).
			Msg("Capture routed to human review")
		return &CaptureOutcome{Disposition: model.DispositionPending, Pending: entry, Confidence: c}, nil

	default:
		// Nothing is persisted. The confidence travels back so the operator
		// can get actionable feedback.
		return &CaptureOutcome{Disposition: model.DispositionRejected, Confidence: c}, nil
	}
}

// confirm runs the alternation-checked confirmed path. The read-then-write
// sequence races with concurrent confirmations for the same person, so the
// store insert is conditional and lost races are retried from the read.
func (s *AttendanceService) confirm(ctx context.Context, in routeInput) (*CaptureOutcome, error) {
	for attempt := 0; attempt < maxAlternationRetries; attempt++ {
		last, err := s.repo.LastConfirmed(ctx, in.personnelID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to query last confirmed event")
		}

		expected := NextKind(last)
		if in.requestedKind != nil && *in.requestedKind != expected {
			return nil, apperr.New(apperr.KindInvalidInput,
				"cannot record %s, you need to %s first", in.requestedKind.Label(), expected.Label())
		}

		saved, err := s.repo.SaveConfirmed(ctx, &model.AttendanceEvent{
			PersonnelID: in.personnelID,
			Kind:        expected,
			Disposition: model.DispositionConfirmed,
			Confidence:  in.confidence,
			Source:      in.source,
			CapturedAt:  in.capturedAt,
			CreatedBy:   in.actor,
		})
		if errors.Is(err, repository.ErrAlternationConflict) {
			log.Ctx(ctx).Warn().Int64("personnel_id", in.personnelID).Int("attempt", attempt+1).
				Msg("Alternation conflict, retrying from sequence read")
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to create attendance record")
		}

		s.publishConfirmed(ctx, saved)
		outcome := &CaptureOutcome{Disposition: model.DispositionConfirmed, Event: saved}
		if in.confidence != nil {
			outcome.Confidence = *in.confidence
		}
		return outcome, nil
	}

	return nil, apperr.New(apperr.KindAlternationConflict,
		"concurrent attendance updates for personnel #%d, please retry", in.personnelID)
}

// publishConfirmed fans the confirmed event out to the notify and audit
// queues. The record is already committed, so publish failures are logged and
// picked up later by the workers' status columns rather than failing the
// request.
func (s *AttendanceService) publishConfirmed(ctx context.Context, ev *model.AttendanceEvent) {
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

// ListEvents returns a role-scoped page of confirmed events.
func (s *AttendanceService) ListEvents(ctx context.Context, f repository.EventFilter, identity model.Identity) (*repository.EventPage, error) {
	if err := Authorize(OpListEvents, identity, nil); err != nil {
		return nil, err
	}

	f.StationID = ScopeStation(identity, f.StationID)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}

	page, err := s.repo.ListEvents(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to list attendance records")
	}
	return page, nil
}

// GetEvent fetches a single record, scope-checked against the caller.
func (s *AttendanceService) GetEvent(ctx context.Context, id int64, identity model.Identity) (*model.AttendanceEvent, error) {
	ev, station, err := s.eventWithStation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(OpReadEvent, identity, &station); err != nil {
		return nil, err
	}
	return ev, nil
}

// EditEvent applies a partial edit and stamps the audit columns.
func (s *AttendanceService) EditEvent(ctx context.Context, id int64, patch EventPatch, identity model.Identity) (*model.AttendanceEvent, error) {
	ev, station, err := s.eventWithStation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(OpEditEvent, identity, &station); err != nil {
		return nil, err
	}

	if patch.Kind != nil {
		if !patch.Kind.Valid() {
			return nil, apperr.New(apperr.KindInvalidInput, "unknown attendance kind %q", *patch.Kind)
		}
		ev.Kind = *patch.Kind
	}
	if patch.PersonnelID != nil {
		// Reassignment is scope-checked against the new person's station too,
		// otherwise it amounts to creating a record outside the caller's station.
		newStation, err := s.directory.StationOf(ctx, *patch.PersonnelID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.New(apperr.KindNotFound, "personnel #%d not found", *patch.PersonnelID)
			}
			return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to resolve personnel station")
		}
		if err := Authorize(OpEditEvent, identity, &newStation); err != nil {
			return nil, err
		}
		ev.PersonnelID = *patch.PersonnelID
	}
	if patch.CapturedAt != nil {
		if patch.CapturedAt.After(s.now()) {
			return nil, apperr.New(apperr.KindInvalidInput, "attendance date cannot be in the future")
		}
		ev.CapturedAt = *patch.CapturedAt
	}

	modifiedAt := s.now().UTC()
	ev.ModifiedBy = &identity.ActorID
	ev.ModifiedAt = &modifiedAt

	if err := s.repo.UpdateEvent(ctx, ev); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "attendance record #%d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindUnknown, err, "failed to update attendance record")
	}
	return ev, nil
}

// DeleteEvent removes a record. Admin only, regardless of station.
func (s *AttendanceService) DeleteEvent(ctx context.Context, id int64, identity model.Identity) error {
	if err := Authorize(OpDeleteEvent, identity, nil); err != nil {
		return err
	}

	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "attendance record #%d not found", id)
		}
		return apperr.Wrap(apperr.KindUnknown, err, "failed to delete attendance record")
	}
	return nil
}

func (s *AttendanceService) eventWithStation(ctx context.Context, id int64) (*model.AttendanceEvent, int64, error) {
	ev, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, apperr.New(apperr.KindNotFound, "attendance record #%d not found", id)
		}
		return nil, 0, apperr.Wrap(apperr.KindUnknown, err, "failed to load attendance record")
	}

	station, err := s.directory.StationOf(ctx, ev.PersonnelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, apperr.New(apperr.KindNotFound, "personnel #%d not found", ev.PersonnelID)
		}
		return nil, 0, apperr.Wrap(apperr.KindUnknown, err, "failed to resolve personnel station")
	}
	return ev, station, nil
}
