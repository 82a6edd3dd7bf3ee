package sensor

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

// ReadingMessage is published by a sensor.
type ReadingMessage struct {
	Value *float64 `json:"value"`
}

// RequestMessage asks for an aggregate over a group.
type RequestMessage struct {
	// RequestID is echoed in the response.
	RequestID int64 `json:"request_id"`

	// TimeoutMS is the query deadline. Zero uses the core default.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// ResponseMessage answers a RequestMessage.
type ResponseMessage struct {
	RequestID    int64                  `json:"request_id"`
	GroupID      string                 `json:"group_id"`
	Success      bool                   `json:"success"`
	Temperatures map[string]iot.Reading `json:"temperatures"`
	Error        string                 `json:"error,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// maxTimeoutMS is the largest timeout_ms that fits a time.Duration.
const maxTimeoutMS = math.MaxInt64 / int64(time.Millisecond)

func parseReading(payload []byte) (float64, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if msg.Value == nil {
		return 0, fmt.Errorf("%w: missing value", ErrInvalidPayload)
	}
	return *msg.Value, nil
}

func parseRequest(payload []byte) (RequestMessage, error) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return RequestMessage{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if req.TimeoutMS < 0 {
		return RequestMessage{}, fmt.Errorf("%w: negative timeout_ms", ErrInvalidPayload)
	}
	if req.TimeoutMS > maxTimeoutMS {
		return RequestMessage{}, fmt.Errorf("%w: timeout_ms exceeds %d", ErrInvalidPayload, int64(maxTimeoutMS))
	}
	return req, nil
}
