package core

import (
	"context"
	"fmt"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type NotifyService interface {
	SendAttendanceNotice(ctx context.Context, to string, kind model.Kind, capturedAt time.Time) error
}

type SESNotifyService struct {
	client *ses.Client
	sender string
}

func NewSESNotifyService(client *ses.Client, sender string) *SESNotifyService {
	return &SESNotifyService{client: client, sender: sender}
}

func (s *SESNotifyService) SendAttendanceNotice(ctx context.Context, to string, kind model.Kind, capturedAt time.Time) error {
	tracer := otel.Tracer("ses-notify-service")
	ctx, span := tracer.Start(ctx, "send_notice", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// Enrich span with personnelId if available in context
	if pid := telemetry.GetPersonnelIDFromContext(ctx); pid != 0 {
		span.SetAttributes(attribute.Int64("app.personnel_id", pid))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Attendance Recorded"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(fmt.Sprintf("Hello,\n\nA %s was recorded at %s.", kind.Label(), capturedAt.Format(time.RFC1123))),
				},
			},
		},
	}

	_, err := s.client.SendEmail(ctx, input)
	return err
}
