// Package broadcast delivers one message to many recipients under a global
// send rate and a bounded number of in-flight sends.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Er1one/telegram-bot-template/internal/observability"
	"github.com/Er1one/telegram-bot-template/internal/ratelimit"
)

// startCursor precedes every chat id, so the first page starts at the lowest.
const startCursor int64 = math.MinInt64

var ErrNonIncreasingPage = errors.New("recipient page is not ordered after the cursor")

type Dispatcher struct {
	source     RecipientSource
	logger     *zap.Logger
	metrics    *observability.Metrics
	newLimiter func(maxRate int) ratelimit.Limiter
	now        func() time.Time
}

func NewDispatcher(source RecipientSource, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		source:     source,
		logger:     logger,
		newLimiter: newSlidingWindow,
		now:        time.Now,
	}
}

func newSlidingWindow(maxRate int) ratelimit.Limiter {
	return ratelimit.NewSlidingWindow(maxRate)
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// DispatchQueried sends to every recipient the source yields, page by page in
// ascending id order, until the source returns an empty page. A source
// failure or cancellation stops the run and is returned with the partial
// stats.
func (d *Dispatcher) DispatchQueried(ctx context.Context, sender Sender, req Request) (Stats, error) {
	if d == nil || d.source == nil {
		return Stats{}, fmt.Errorf("dispatcher is not initialized")
	}
	if sender == nil {
		return Stats{}, fmt.Errorf("sender is required")
	}

	req = req.withDefaults()
	filter := Filter{IncludeBanned: req.IncludeBanned}
	logger := observability.WithContextLogger(d.logger, ctx)

	expected, err := d.source.Count(ctx, filter)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count recipients: %w", err)
	}

	stats := Stats{Expected: expected}
	w := d.newWorker(sender, req, logger)
	started := d.now()

	logger.Info("broadcast started",
		zap.String("mode", "queried"),
		zap.Int64("expected", expected),
		zap.Bool("includeBanned", req.IncludeBanned),
		zap.Int("pageSize", req.PageSize),
		zap.Int("maxConcurrent", req.MaxConcurrent),
		zap.Int("maxRate", req.MaxRate),
	)

	cursor := startCursor
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := d.source.Page(ctx, cursor, filter, req.PageSize)
		if err != nil {
			return stats, fmt.Errorf("failed to fetch recipients after %d: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}

		last := page[len(page)-1].ID
		if last <= cursor {
			return stats, fmt.Errorf("%w: last id %d, cursor %d", ErrNonIncreasingPage, last, cursor)
		}

		d.runPage(ctx, w, page, req.MaxConcurrent, &stats)
		cursor = last

		logger.Debug("broadcast page done",
			zap.Int("size", len(page)),
			zap.Int64("cursor", cursor),
			zap.Int64("total", stats.Total),
		)
	}

	d.logFinished(logger, stats, started)
	return stats, nil
}

// DispatchList sends to an explicit list of chat ids in one pass, batched by
// the page size. Ids are used as given, duplicates included.
func (d *Dispatcher) DispatchList(ctx context.Context, sender Sender, ids []int64, req Request) (Stats, error) {
	if d == nil {
		return Stats{}, fmt.Errorf("dispatcher is not initialized")
	}
	if sender == nil {
		return Stats{}, fmt.Errorf("sender is required")
	}

	req = req.withDefaults()
	logger := observability.WithContextLogger(d.logger, ctx)
	stats := Stats{Expected: int64(len(ids))}
	w := d.newWorker(sender, req, logger)
	started := d.now()

	logger.Info("broadcast started",
		zap.String("mode", "list"),
		zap.Int("recipients", len(ids)),
		zap.Int("pageSize", req.PageSize),
		zap.Int("maxConcurrent", req.MaxConcurrent),
		zap.Int("maxRate", req.MaxRate),
	)

	for start := 0; start < len(ids); start += req.PageSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := min(start+req.PageSize, len(ids))
		batch := make([]Recipient, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, Recipient{ID: id})
		}

		d.runPage(ctx, w, batch, req.MaxConcurrent, &stats)
	}

	d.logFinished(logger, stats, started)
	return stats, nil
}

func (d *Dispatcher) newWorker(sender Sender, req Request, logger *zap.Logger) *worker {
	var bans BanWriter
	if d.source != nil {
		bans = d.source
	}

	return &worker{
		sender:  sender,
		limiter: d.newLimiter(req.MaxRate),
		bans:    bans,
		logger:  logger,
		metrics: d.metrics,
		now:     d.now,
	}
}

// runPage delivers to every recipient of one page with at most maxConcurrent
// sends in flight and returns once all of them finished.
func (d *Dispatcher) runPage(ctx context.Context, w *worker, page []Recipient, maxConcurrent int, stats *Stats) {
	outcomes := make([]Outcome, len(page))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for i, recipient := range page {
		i, recipient := i, recipient
		g.Go(func() error {
			outcomes[i] = d.safeDeliver(ctx, w, recipient)
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		stats.record(outcome)
		d.metrics.IncDelivery(outcome.Kind.String())
	}
	d.metrics.IncPage()
}

// safeDeliver folds a panicking delivery into a transient failure.
func (d *Dispatcher) safeDeliver(ctx context.Context, w *worker, recipient Recipient) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("delivery panicked",
				zap.Int64("recipientId", recipient.ID),
				zap.Any("panic", r),
			)
			outcome = Outcome{
				Kind:        TransientFailure,
				RecipientID: recipient.ID,
				Err:         fmt.Errorf("delivery panic: %v", r),
			}
		}
	}()

	return w.deliver(ctx, recipient)
}

func (d *Dispatcher) logFinished(logger *zap.Logger, stats Stats, started time.Time) {
	logger.Info("broadcast finished",
		zap.Int64("total", stats.Total),
		zap.Int64("success", stats.Success),
		zap.Int64("blocked", stats.Blocked),
		zap.Int64("failed", stats.Failed),
		zap.Duration("duration", d.now().Sub(started)),
	)
}
