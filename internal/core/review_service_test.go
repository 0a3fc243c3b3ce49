package core

import (
	"context"
	"testing"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReviewService(store *memStore) (*ReviewService, *countingProducer) {
	producer := &countingProducer{}
	svc := NewReviewService(store, producer)
	svc.now = func() time.Time { return testClock }
	return svc, producer
}

func seedPending(t *testing.T, store *memStore, personnelID int64, confidence float64) *model.PendingReviewEntry {
	t.Helper()
	entry, err := store.SavePending(context.Background(), &model.PendingReviewEntry{
		PersonnelID: personnelID,
		Confidence:  confidence,
		CapturedAt:  testClock.Add(-time.Hour),
	})
	require.NoError(t, err)
	return entry
}

func TestApprovePending(t *testing.T) {
	t.Run("first event for the person is a time-in", func(t *testing.T) {
		store := newMemStore()
		svc, producer := newReviewService(store)
		entry := seedPending(t, store, 7, 0.55)

		ev, err := svc.Approve(context.Background(), entry.ID, adminIdentity())
		require.NoError(t, err)
		assert.Equal(t, model.KindTimeIn, ev.Kind)
		assert.Equal(t, model.DispositionConfirmed, ev.Disposition)
		assert.Equal(t, model.SourceRecognition, ev.Source)
		require.NotNil(t, ev.Confidence)
		assert.Equal(t, 0.55, *ev.Confidence)
		assert.Equal(t, entry.CapturedAt, ev.CapturedAt)
		assert.Equal(t, 1, producer.notify)
		assert.Equal(t, 1, producer.audit)

		reviewed, err := store.FindPending(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewApproved, reviewed.Status)
		require.NotNil(t, reviewed.ReviewedBy)
		assert.Equal(t, int64(1), *reviewed.ReviewedBy)
		require.NotNil(t, reviewed.ReviewedAt)
		assert.Equal(t, testClock, *reviewed.ReviewedAt)
	})

	t.Run("kind computed at approval time, not capture time", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReviewService(store)
		entry := seedPending(t, store, 7, 0.5)

		// The sequence moved on while the entry waited in the queue.
		_, err := store.SaveConfirmed(context.Background(), &model.AttendanceEvent{
			PersonnelID: 7, Kind: model.KindTimeIn, Disposition: model.DispositionConfirmed,
			Source: model.SourceManual, CapturedAt: testClock.Add(-30 * time.Minute), CreatedBy: 1,
		})
		require.NoError(t, err)

		ev, err := svc.Approve(context.Background(), entry.ID, adminIdentity())
		require.NoError(t, err)
		assert.Equal(t, model.KindTimeOut, ev.Kind)
	})

	t.Run("second approve fails and writes no second event", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReviewService(store)
		entry := seedPending(t, store, 7, 0.5)

		_, err := svc.Approve(context.Background(), entry.ID, adminIdentity())
		require.NoError(t, err)

		_, err = svc.Approve(context.Background(), entry.ID, adminIdentity())
		require.Error(t, err)
		assert.Equal(t, apperr.KindAlreadyReviewed, apperr.KindOf(err))
		assert.Len(t, store.events, 1)
	})

	t.Run("approve after reject fails", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReviewService(store)
		entry := seedPending(t, store, 7, 0.5)

		_, err := svc.Reject(context.Background(), entry.ID, adminIdentity())
		require.NoError(t, err)

		_, err = svc.Approve(context.Background(), entry.ID, adminIdentity())
		require.Error(t, err)
		assert.Equal(t, apperr.KindAlreadyReviewed, apperr.KindOf(err))
		assert.Empty(t, store.events)
	})

	t.Run("unknown entry", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReviewService(store)

		_, err := svc.Approve(context.Background(), 9999, adminIdentity())
		require.Error(t, err)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("admin only", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReviewService(store)
		entry := seedPending(t, store, 7, 0.5)

		for _, id := range []model.Identity{
			{ActorID: 5, Role: model.RoleStationUser, StationID: int64p(1)},
			{ActorID: 6, Role: model.RoleKiosk, StationID: int64p(1)},
		} {
			_, err := svc.Approve(context.Background(), entry.ID, id)
			require.Error(t, err)
			assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
		}
		assert.Empty(t, store.events)
	})

	t.Run("conflict budget exhausted", func(t *testing.T) {
		store := newMemStore()
		svc, _ := newReviewService(store)
		entry := seedPending(t, store, 7, 0.5)
		store.injectConflicts = maxAlternationRetries

		_, err := svc.Approve(context.Background(), entry.ID, adminIdentity())
		require.Error(t, err)
		assert.Equal(t, apperr.KindAlternationConflict, apperr.KindOf(err))

		reviewed, err := store.FindPending(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewPending, reviewed.Status, "entry stays reviewable after a failed approval")
	})
}

func TestRejectPending(t *testing.T) {
	store := newMemStore()
	svc, producer := newReviewService(store)
	entry := seedPending(t, store, 7, 0.45)

	reviewed, err := svc.Reject(context.Background(), entry.ID, adminIdentity())
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedBy)
	assert.Equal(t, int64(1), *reviewed.ReviewedBy)
	assert.Empty(t, store.events, "rejection creates no attendance event")
	assert.Zero(t, producer.notify)

	_, err = svc.Reject(context.Background(), entry.ID, adminIdentity())
	require.Error(t, err)
	assert.Equal(t, apperr.KindAlreadyReviewed, apperr.KindOf(err))
}

func TestListAndCountPending(t *testing.T) {
	store := newMemStore()
	svc, _ := newReviewService(store)
	first := seedPending(t, store, 7, 0.5)
	seedPending(t, store, 8, 0.45)

	entries, err := svc.ListPending(context.Background(), adminIdentity())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = svc.Reject(context.Background(), first.ID, adminIdentity())
	require.NoError(t, err)

	entries, err = svc.ListPending(context.Background(), adminIdentity())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "reviewed entries leave the queue")

	count, err := svc.CountPending(context.Background(), adminIdentity())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stationUser := model.Identity{ActorID: 5, Role: model.RoleStationUser, StationID: int64p(1)}
	_, err = svc.ListPending(context.Background(), stationUser)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
}

// Full workflow: a high-confidence capture confirms a time-in, a medium one
// queues for review, and its approval continues the alternation from the
// current point of the sequence.
func TestCaptureAndReviewWorkflow(t *testing.T) {
	store := newMemStore()
	store.stations[10] = 1
	reviews, _ := newReviewService(store)

	rec := matchRecognizer(10, 0.9)
	captures, _ := newCaptureService(store, rec)

	outcome, err := captures.Capture(context.Background(), testImage, nil, nil, kioskIdentity())
	require.NoError(t, err)
	assert.Equal(t, model.DispositionConfirmed, outcome.Disposition)
	assert.Equal(t, model.KindTimeIn, outcome.Event.Kind)

	rec.match.Confidence = 0.55
	outcome, err = captures.Capture(context.Background(), testImage, nil, nil, kioskIdentity())
	require.NoError(t, err)
	assert.Equal(t, model.DispositionPending, outcome.Disposition)

	ev, err := reviews.Approve(context.Background(), outcome.Pending.ID, adminIdentity())
	require.NoError(t, err)
	assert.Equal(t, model.KindTimeOut, ev.Kind)

	rec.match.Confidence = 0.9
	outcome, err = captures.Capture(context.Background(), testImage, nil, nil, kioskIdentity())
	require.NoError(t, err)
	assert.Equal(t, model.KindTimeIn, outcome.Event.Kind)

	assert.Equal(t,
		[]model.Kind{model.KindTimeIn, model.KindTimeOut, model.KindTimeIn},
		store.confirmedKinds(10))
}
