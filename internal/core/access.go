package core

import (
	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
)

// Operation enumerates every workflow action subject to access control. The
// whole permission matrix lives here so handlers never carry role checks.
type Operation int

const (
	OpCapture Operation = iota
	OpCreateManual
	OpListEvents
	OpReadEvent
	OpEditEvent
	OpDeleteEvent
	OpListPending
	OpReviewPending
)

// Authorize decides whether identity may perform op against a target in
// targetStation (nil when the operation has no station-bound target).
// Admins are unrestricted. Kiosks may only capture and create manual
// entries. Station users are confined to their own station; delete and
// review are admin-only regardless of station.
func Authorize(op Operation, id model.Identity, targetStation *int64) error {
	switch id.Role {
	case model.RoleAdmin:
		return nil

	case model.RoleKiosk:
		if op != OpCapture && op != OpCreateManual {
			return apperr.New(apperr.KindPermissionDenied, "kiosk accounts may only record attendance")
		}
		return requireOwnStation(id, targetStation)

	case model.RoleStationUser:
		switch op {
		case OpDeleteEvent:
			return apperr.New(apperr.KindPermissionDenied, "only administrators can delete attendance records")
		case OpListPending, OpReviewPending:
			return apperr.New(apperr.KindPermissionDenied, "only administrators can review pending records")
		case OpCreateManual, OpEditEvent, OpReadEvent:
			return requireOwnStation(id, targetStation)
		default:
			return nil
		}

	default:
		return apperr.New(apperr.KindPermissionDenied, "unknown role %q", id.Role)
	}
}

func requireOwnStation(id model.Identity, targetStation *int64) error {
	if targetStation == nil {
		return nil
	}
	if id.StationID == nil || *id.StationID != *targetStation {
		return apperr.New(apperr.KindPermissionDenied, "operation is limited to your own station's personnel")
	}
	return nil
}

// ScopeStation resolves the station filter for a listing. Station-bound
// callers are always pinned to their own station; a filter they supply for
// another station is overridden, not honored. Admins keep whatever they
// asked for.
func ScopeStation(id model.Identity, requested *int64) *int64 {
	if id.Role == model.RoleAdmin {
		return requested
	}
	return id.StationID
}
