package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Producer struct {
	sender         MessageSender
	notifyQueueURL string
	auditQueueURL  string
}

func NewProducer(sender MessageSender, notifyQueueURL, auditQueueURL string) *Producer {
	return &Producer{
		sender:         sender,
		notifyQueueURL: notifyQueueURL,
		auditQueueURL:  auditQueueURL,
	}
}

func NewSQSProducer(client SQSClient, notifyQueueURL, auditQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, notifyQueueURL, auditQueueURL)
}

func (p *Producer) PublishNotify(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.notifyQueueURL, body)
}

func (p *Producer) PublishAudit(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.auditQueueURL, body)
}

func (p *Producer) publish(ctx context.Context, destination string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with personnel_id if available
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			PersonnelID int64 `json:"personnelId"`
		}
		// Attempt to unmarshal to extract personnel_id
		if err := json.Unmarshal(b, &payload); err == nil && payload.PersonnelID != 0 {
			span.SetAttributes(attribute.Int64("app.personnel_id", payload.PersonnelID))
		}
	}

	if err := p.sender.SendMessage(ctx, destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
