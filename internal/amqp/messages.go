package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"recurring/internal/core"
)

// DetectRequestMessage asks the worker to run detection for one account.
type DetectRequestMessage struct {
	AccountID string    `json:"account_id"`
	DaysBack  int       `json:"days_back"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDetectRequestMessage creates a detect request stamped with the current time
func NewDetectRequestMessage(accountID string, daysBack int) *DetectRequestMessage {
	return &DetectRequestMessage{
		AccountID: accountID,
		DaysBack:  daysBack,
		Timestamp: time.Now(),
	}
}

// Validate rejects requests the worker could never process.
func (m *DetectRequestMessage) Validate() error {
	if m.AccountID == "" {
		return core.ErrEmptyAccount
	}
	if m.DaysBack < 0 {
		return core.ErrInvalidDaysBack
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *DetectRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DetectRequestMessageFromJSON decodes and validates a detect request
func DetectRequestMessageFromJSON(data []byte) (*DetectRequestMessage, error) {
	var msg DetectRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DetectionCompletedMessage announces the counters of a finished detection run.
type DetectionCompletedMessage struct {
	AccountID   string    `json:"account_id"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Deactivated int       `json:"deactivated"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewDetectionCompletedMessage builds the event for result
func NewDetectionCompletedMessage(result core.DetectionResult) *DetectionCompletedMessage {
	return &DetectionCompletedMessage{
		AccountID:   result.AccountID,
		Created:     result.PatternsCreated,
		Updated:     result.PatternsUpdated,
		Deactivated: result.PatternsDeactivated,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DetectionCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DetectionCompletedMessageFromJSON decodes a completion event
func DetectionCompletedMessageFromJSON(data []byte) (*DetectionCompletedMessage, error) {
	var msg DetectionCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AccountID == "" {
		return nil, errors.New("completion event without account_id")
	}
	return &msg, nil
}
