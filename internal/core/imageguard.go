package core

import (
	"strings"

	"attendance.service/internal/core/apperr"
)

// MaxImageBase64Len is the ceiling on the transmitted base64 form of a
// capture image: 10 MiB of raw bytes in 4/3 expansion.
const MaxImageBase64Len = 10 * 1024 * 1024 * 4 / 3

var allowedImagePrefixes = []string{
	"data:image/jpeg;base64,",
	"data:image/png;base64,",
}

// ValidateImage checks the MIME prefix and encoded size of an inbound capture
// payload before any recognizer call is made. Failures are client-input
// errors, never retried.
func ValidateImage(image string) error {
	ok := false
	for _, prefix := range allowedImagePrefixes {
		if strings.HasPrefix(image, prefix) {
			ok = true
			break
		}
	}
	if !ok {
		return apperr.New(apperr.KindInvalidInput, "invalid image format, only JPEG and PNG are supported")
	}
	if len(image) > MaxImageBase64Len {
		return apperr.New(apperr.KindInvalidInput, "image exceeds the maximum allowed size of 10 MB")
	}
	return nil
}
