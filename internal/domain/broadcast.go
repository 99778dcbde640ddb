package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus represents the lifecycle state of a broadcast run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

func (s RunStatus) String() string { return string(s) }

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Telegram message limits (in characters).
const (
	MaxMessageText   = 4096
	MaxCaptionText   = 1024
	MaxMediaGroup    = 10
	MinMediaGroup    = 2
	MaxExplicitUsers = 100000
)

// BroadcastRun is one invocation of the dispatch engine and its final tally.
type BroadcastRun struct {
	ID            string
	RequestedBy   int64
	Text          string
	PhotoURLs     []string
	DocumentURL   string
	RecipientIDs  []int64
	IncludeBanned bool
	Status        RunStatus
	Expected      int64
	Total         int64
	Success       int64
	Failed        int64
	Blocked       int64
	Error         *string
	StartedAt     *time.Time
	FinishedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *BroadcastRun) Validate() error {
	text := strings.TrimSpace(r.Text)
	hasMedia := len(r.PhotoURLs) > 0 || strings.TrimSpace(r.DocumentURL) != ""

	if text == "" && !hasMedia {
		return fmt.Errorf("%w: text or media is required", ErrValidation)
	}
	if len(r.PhotoURLs) > 0 && strings.TrimSpace(r.DocumentURL) != "" {
		return fmt.Errorf("%w: photos and document cannot be combined", ErrValidation)
	}
	if len(r.PhotoURLs) > MaxMediaGroup {
		return fmt.Errorf("%w: at most %d photos per broadcast (got %d)", ErrValidation, MaxMediaGroup, len(r.PhotoURLs))
	}
	for i, photo := range r.PhotoURLs {
		if strings.TrimSpace(photo) == "" {
			return fmt.Errorf("%w: photo %d is empty", ErrValidation, i+1)
		}
	}
	if len(r.RecipientIDs) > MaxExplicitUsers {
		return fmt.Errorf("%w: at most %d explicit recipients (got %d)", ErrValidation, MaxExplicitUsers, len(r.RecipientIDs))
	}

	textLen := len([]rune(r.Text))
	limit := MaxMessageText
	if hasMedia {
		limit = MaxCaptionText
	}
	if textLen > limit {
		return fmt.Errorf("%w: text exceeds %d characters (got %d)", ErrValidation, limit, textLen)
	}

	return nil
}
