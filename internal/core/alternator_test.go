package core

import (
	"testing"

	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestNextKind(t *testing.T) {
	assert.Equal(t, model.KindTimeIn, NextKind(nil), "first confirmed event is always a time-in")

	in := &model.AttendanceEvent{Kind: model.KindTimeIn}
	out := &model.AttendanceEvent{Kind: model.KindTimeOut}
	assert.Equal(t, model.KindTimeOut, NextKind(in))
	assert.Equal(t, model.KindTimeIn, NextKind(out))
}
