package amqp

import (
	"encoding/json"
	"time"

	"parity/internal/core"
)

// RunCompletedMessage announces a finished dashboard run with every
// candidate's outcome.
type RunCompletedMessage struct {
	Run       core.RunSummary `json:"run"`
	Clean     bool            `json:"clean"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRunCompletedMessage wraps run for publishing
func NewRunCompletedMessage(run core.RunSummary) *RunCompletedMessage {
	return &RunCompletedMessage{
		Run:       run,
		Clean:     run.Clean(),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
