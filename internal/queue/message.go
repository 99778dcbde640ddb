package queue

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPermanent marks a handler failure that must not be retried; the
// delivery is dead-lettered instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// BroadcastMessage is the broker payload that triggers one broadcast run.
type BroadcastMessage struct {
	RunID string `json:"runId"`
}

func (m BroadcastMessage) Validate() error {
	if strings.TrimSpace(m.RunID) == "" {
		return fmt.Errorf("runId is required")
	}
	return nil
}
