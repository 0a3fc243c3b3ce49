package core

import (
	"strings"
	"testing"

	"attendance.service/internal/core/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageOfLength(prefix string, total int) string {
	return prefix + strings.Repeat("A", total-len(prefix))
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name    string
		image   string
		wantErr bool
	}{
		{"jpeg accepted", "data:image/jpeg;base64,/9j/4AAQSkZJRg==", false},
		{"png accepted", "data:image/png;base64,iVBORw0KGgo=", false},
		{"gif rejected", "data:image/gif;base64,R0lGODlh", true},
		{"raw base64 rejected", "iVBORw0KGgo=", true},
		{"empty rejected", "", true},
		{"prefix alone accepted", "data:image/png;base64,", false},
		{"exactly at ceiling", imageOfLength("data:image/png;base64,", MaxImageBase64Len), false},
		{"one over ceiling", imageOfLength("data:image/png;base64,", MaxImageBase64Len+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.image)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaxImageBase64Len(t *testing.T) {
	// 10 MiB of raw bytes in 4/3 base64 expansion.
	assert.Equal(t, 13981013, MaxImageBase64Len)
}
