package core

import (
	"testing"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestAuthorize(t *testing.T) {
	admin := model.Identity{ActorID: 1, Role: model.RoleAdmin}
	stationUser := model.Identity{ActorID: 2, Role: model.RoleStationUser, StationID: int64p(1)}
	kiosk := model.Identity{ActorID: 3, Role: model.RoleKiosk, StationID: int64p(1)}

	allOps := []Operation{
		OpCapture, OpCreateManual, OpListEvents, OpReadEvent,
		OpEditEvent, OpDeleteEvent, OpListPending, OpReviewPending,
	}

	t.Run("admin may do everything", func(t *testing.T) {
		for _, op := range allOps {
			assert.NoError(t, Authorize(op, admin, int64p(99)))
		}
	})

	t.Run("kiosk limited to recording", func(t *testing.T) {
		assert.NoError(t, Authorize(OpCapture, kiosk, nil))
		assert.NoError(t, Authorize(OpCreateManual, kiosk, int64p(1)))

		for _, op := range []Operation{OpListEvents, OpReadEvent, OpEditEvent, OpDeleteEvent, OpListPending, OpReviewPending} {
			err := Authorize(op, kiosk, nil)
			require.Error(t, err)
			assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
		}
	})

	t.Run("kiosk cannot record for another station", func(t *testing.T) {
		err := Authorize(OpCreateManual, kiosk, int64p(2))
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
	})

	t.Run("station user confined to own station", func(t *testing.T) {
		assert.NoError(t, Authorize(OpReadEvent, stationUser, int64p(1)))
		assert.NoError(t, Authorize(OpEditEvent, stationUser, int64p(1)))

		for _, op := range []Operation{OpCreateManual, OpReadEvent, OpEditEvent} {
			err := Authorize(op, stationUser, int64p(2))
			require.Error(t, err)
			assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
		}
	})

	t.Run("delete and review are admin only", func(t *testing.T) {
		for _, op := range []Operation{OpDeleteEvent, OpListPending, OpReviewPending} {
			err := Authorize(op, stationUser, int64p(1))
			require.Error(t, err)
			assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
		}
	})

	t.Run("unknown role denied", func(t *testing.T) {
		err := Authorize(OpCapture, model.Identity{ActorID: 4, Role: "intern"}, nil)
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
	})
}

func TestScopeStation(t *testing.T) {
	admin := model.Identity{Role: model.RoleAdmin}
	stationUser := model.Identity{Role: model.RoleStationUser, StationID: int64p(1)}

	assert.Equal(t, int64p(5), ScopeStation(admin, int64p(5)), "admins keep their requested filter")
	assert.Nil(t, ScopeStation(admin, nil))

	// Station-bound callers are pinned to their own station even if they ask
	// for another one.
	assert.Equal(t, int64p(1), ScopeStation(stationUser, int64p(2)))
	assert.Equal(t, int64p(1), ScopeStation(stationUser, nil))
}
