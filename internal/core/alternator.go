package core

import (
	"attendance.service/internal/core/model"
)

// NextKind determines the kind the next confirmed attendance event must
// carry, given the most recent confirmed event for the person (nil if none).
// The first-ever confirmed event is always a time-in; afterwards the sequence
// strictly alternates.
//
// This is pure over the snapshot passed in. Callers must evaluate it at the
// moment of confirmation, not at capture time, so entries reviewed later
// still land on the current point of the sequence.
func NextKind(last *model.AttendanceEvent) model.Kind {
	if last == nil {
		return model.KindTimeIn
	}
	return last.Kind.Opposite()
}
