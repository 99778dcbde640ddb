package broadcast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Er1one/telegram-bot-template/internal/observability"
	"github.com/Er1one/telegram-bot-template/internal/provider"
	"github.com/Er1one/telegram-bot-template/internal/ratelimit"
)

// worker performs single delivery attempts for one run.
type worker struct {
	sender  Sender
	limiter ratelimit.Limiter
	bans    BanWriter
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// deliver waits for a rate permit per Bot API call, sends once and
// classifies the result. It never retries.
func (w *worker) deliver(ctx context.Context, recipient Recipient) Outcome {
	outcome := Outcome{RecipientID: recipient.ID}

	for i, n := 0, w.permits(); i < n; i++ {
		if err := w.limiter.Acquire(ctx); err != nil {
			outcome.Kind = TransientFailure
			outcome.Err = fmt.Errorf("rate limiter wait failed: %w", err)
			return outcome
		}
	}

	result := w.send(ctx, recipient.ID)
	outcome.Err = result.Err

	switch result.Status {
	case provider.StatusOK:
		outcome.Kind = Delivered
	case provider.StatusForbidden:
		outcome.Kind = RecipientUnreachable
		w.markBanned(ctx, recipient)
	case provider.StatusThrottled:
		outcome.Kind = Throttled
		outcome.RetryAfter = result.RetryAfter
		w.logger.Warn("recipient throttled",
			zap.Int64("recipientId", recipient.ID),
			zap.Duration("retryAfter", result.RetryAfter),
		)
	case provider.StatusBadRequest:
		outcome.Kind = Rejected
		w.logger.Warn("send rejected",
			zap.Int64("recipientId", recipient.ID),
			zap.Error(result.Err),
		)
	default:
		outcome.Kind = TransientFailure
		if outcome.Err == nil {
			outcome.Err = fmt.Errorf("send failed with status %s", result.Status)
		}
		w.logger.Warn("send failed",
			zap.Int64("recipientId", recipient.ID),
			zap.Error(outcome.Err),
		)
	}

	return outcome
}

func (w *worker) send(ctx context.Context, recipientID int64) provider.Result {
	w.metrics.IncInFlight()
	defer w.metrics.DecInFlight()

	start := w.now()
	defer func() { w.metrics.ObserveSendDuration(w.now().Sub(start)) }()

	return w.sender.Send(ctx, recipientID)
}

// markBanned is best-effort: a failed write is logged, not escalated.
func (w *worker) markBanned(ctx context.Context, recipient Recipient) {
	if w.bans == nil || recipient.Banned {
		return
	}

	if err := w.bans.SetBanned(ctx, recipient.ID, true); err != nil {
		w.logger.Warn("failed to mark recipient banned",
			zap.Int64("recipientId", recipient.ID),
			zap.Error(err),
		)
		return
	}

	w.logger.Debug("recipient marked banned", zap.Int64("recipientId", recipient.ID))
}

func (w *worker) permits() int {
	if c, ok := w.sender.(CallCounter); ok {
		if n := c.CallsPerSend(); n > 1 {
			return n
		}
	}
	return 1
}
