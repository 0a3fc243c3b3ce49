package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrUnavailable means the face service was unreachable, timed out or the
// circuit breaker is open. Distinct from a no-match so callers can map it to
// a retryable service error instead of a terminal rejection.
var ErrUnavailable = errors.New("face recognition service unavailable")

// NoMatchError is the face service affirmatively failing to identify anyone:
// no face detected, spoofing suspected, or no embedding close enough. It
// carries the (near-zero) confidence for user feedback.
type NoMatchError struct {
	Confidence float64
	Message    string
}

func (e *NoMatchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "no identifiable match"
}

// Match is a successful recognition result.
type Match struct {
	PersonnelID int64
	Confidence  float64
}

// Recognizer contract for the face service
type Recognizer interface {
	Recognize(ctx context.Context, image string, stationID int64) (Match, error)
	Ping(ctx context.Context) error
}

// HTTPClient calls the face service over HTTP. A circuit breaker keeps the
// API from hammering the service while it is struggling.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

// NewHTTPClient new HTTPClient
func NewHTTPClient(baseURL string) *HTTPClient {
	settings := gobreaker.Settings{
		Name:        "Face-Service",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is bigger then 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

type recognizeRequest struct {
	Image     string `json:"image"`
	StationID int64  `json:"station_id"`
}

type recognizeResponse struct {
	Success     bool    `json:"success"`
	PersonnelID int64   `json:"personnel_id"`
	Confidence  float64 `json:"confidence"`
	Message     string  `json:"message"`
}

// Recognize submits an image for identification within a station's scope.
// The workflow does not retry on unavailability; that is left to the caller.
func (c *HTTPClient) Recognize(ctx context.Context, image string, stationID int64) (Match, error) {
	payload, err := json.Marshal(recognizeRequest{Image: image, StationID: stationID})
	if err != nil {
		return Match{}, fmt.Errorf("failed to marshal recognize payload: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit Breaker is OPEN; skipping face service call")
		} else {
			log.Ctx(ctx).Warn().Err(err).Msg("Face service call failed")
		}
		return Match{}, ErrUnavailable
	}

	res := result.(*recognizeResponse)
	if !res.Success {
		return Match{}, &NoMatchError{Confidence: res.Confidence, Message: res.Message}
	}

	return Match{PersonnelID: res.PersonnelID, Confidence: res.Confidence}, nil
}

func (c *HTTPClient) post(ctx context.Context, payload []byte) (*recognizeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call face service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("face service returned non-successful status code: %d", resp.StatusCode)
	}

	var res recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode face service response: %w", err)
	}
	return &res, nil
}

// Ping checks face service liveness, used by the health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return ErrUnavailable
	}
	return nil
}
