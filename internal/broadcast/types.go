package broadcast

import (
	"context"
	"time"

	"github.com/Er1one/telegram-bot-template/internal/provider"
)

const (
	DefaultPageSize      = 100
	DefaultMaxConcurrent = 30
	DefaultMaxRate       = 20
)

// Recipient is one addressable chat. ID doubles as the pagination cursor.
type Recipient struct {
	ID     int64
	Banned bool
}

type Filter struct {
	IncludeBanned bool
}

// RecipientSource is the user store as seen by the dispatcher. Page returns
// recipients with ID > after in ascending ID order.
type RecipientSource interface {
	Count(ctx context.Context, filter Filter) (int64, error)
	Page(ctx context.Context, after int64, filter Filter, limit int) ([]Recipient, error)
	BanWriter
}

type BanWriter interface {
	SetBanned(ctx context.Context, id int64, banned bool) error
}

// Sender delivers an already bound message to one chat.
type Sender interface {
	Send(ctx context.Context, recipientID int64) provider.Result
}

// CallCounter is implemented by senders that make more than one Bot API call
// per recipient. The worker takes one rate permit per call.
type CallCounter interface {
	CallsPerSend() int
}

type SenderFunc func(ctx context.Context, recipientID int64) provider.Result

func (f SenderFunc) Send(ctx context.Context, recipientID int64) provider.Result {
	return f(ctx, recipientID)
}

// Request configures one run. Zero values fall back to the package defaults;
// banned recipients are skipped unless IncludeBanned is set.
type Request struct {
	IncludeBanned bool
	PageSize      int
	MaxConcurrent int
	MaxRate       int
}

func (r Request) withDefaults() Request {
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = DefaultMaxConcurrent
	}
	if r.MaxRate <= 0 {
		r.MaxRate = DefaultMaxRate
	}
	return r
}

type OutcomeKind int

const (
	Delivered OutcomeKind = iota
	RecipientUnreachable
	Throttled
	Rejected
	TransientFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case RecipientUnreachable:
		return "unreachable"
	case Throttled:
		return "throttled"
	case Rejected:
		return "rejected"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of exactly one delivery attempt.
type Outcome struct {
	Kind        OutcomeKind
	RecipientID int64
	RetryAfter  time.Duration
	Err         error
}

// Stats is the run tally. Success + Blocked + Failed always equals Total.
// Expected is the recipient count known before the run started.
type Stats struct {
	Expected int64 `json:"expected"`
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`
	Blocked  int64 `json:"blocked"`
}

func (s *Stats) record(outcome Outcome) {
	s.Total++
	switch outcome.Kind {
	case Delivered:
		s.Success++
	case RecipientUnreachable:
		s.Blocked++
	default:
		s.Failed++
	}
}
