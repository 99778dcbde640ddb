package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Er1one/telegram-bot-template/internal/broadcast"
	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/message"
	"github.com/Er1one/telegram-bot-template/internal/observability"
	"github.com/Er1one/telegram-bot-template/internal/queue"
	"github.com/Er1one/telegram-bot-template/internal/repository"
)

// Dispatcher runs one broadcast over the user directory or an explicit list.
type Dispatcher interface {
	DispatchQueried(ctx context.Context, sender broadcast.Sender, req broadcast.Request) (broadcast.Stats, error)
	DispatchList(ctx context.Context, sender broadcast.Sender, ids []int64, req broadcast.Request) (broadcast.Stats, error)
}

type Translator interface {
	T(locale, key string, vars map[string]any) string
}

type LocaleResolver interface {
	Locale(ctx context.Context, userID int64) string
}

// BroadcastCommand is an admin's request to broadcast one message.
type BroadcastCommand struct {
	RequestedBy   int64
	Text          string
	PhotoURLs     []string
	DocumentURL   string
	RecipientIDs  []int64
	IncludeBanned bool
}

// BroadcastSettings tunes every run executed by the service.
type BroadcastSettings struct {
	PageSize      int
	MaxConcurrent int
	MaxRate       int
}

type BroadcastService struct {
	runs       repository.BroadcastRepository
	publisher  queue.Publisher
	dispatcher Dispatcher
	caller     message.Caller
	translator Translator
	locales    LocaleResolver
	settings   BroadcastSettings
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	newID      func() string
}

func NewBroadcastService(
	runs repository.BroadcastRepository,
	publisher queue.Publisher,
	dispatcher Dispatcher,
	caller message.Caller,
	settings BroadcastSettings,
	logger *zap.Logger,
) (*BroadcastService, error) {
	if runs == nil {
		return nil, fmt.Errorf("broadcast repository is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if caller == nil {
		return nil, fmt.Errorf("bot api caller is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BroadcastService{
		runs:       runs,
		publisher:  publisher,
		dispatcher: dispatcher,
		caller:     caller,
		settings:   settings,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

func (s *BroadcastService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SetReporter enables the end-of-run summary sent to the requesting admin.
func (s *BroadcastService) SetReporter(translator Translator, locales LocaleResolver) {
	if s == nil {
		return
	}
	s.translator = translator
	s.locales = locales
}

// Submit stores a queued run and hands it to the broker.
func (s *BroadcastService) Submit(ctx context.Context, cmd BroadcastCommand) (*domain.BroadcastRun, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("broadcast publisher is not configured")
	}

	run := &domain.BroadcastRun{
		ID:            s.newID(),
		RequestedBy:   cmd.RequestedBy,
		Text:          cmd.Text,
		PhotoURLs:     cmd.PhotoURLs,
		DocumentURL:   cmd.DocumentURL,
		RecipientIDs:  cmd.RecipientIDs,
		IncludeBanned: cmd.IncludeBanned,
		Status:        domain.RunStatusQueued,
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.templateFor(run).Bind(s.caller); err != nil {
		return nil, err
	}

	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store broadcast run: %w", err)
	}

	if err := s.publisher.Publish(ctx, queue.BroadcastMessage{RunID: run.ID}); err != nil {
		s.logger.Error("failed to publish broadcast", zap.String("runId", run.ID), zap.Error(err))
		s.fail(ctx, run, fmt.Sprintf("publish failed: %v", err))
		return nil, fmt.Errorf("failed to publish broadcast: %w", err)
	}

	s.logger.Info("broadcast queued",
		zap.String("runId", run.ID),
		zap.Int64("requestedBy", run.RequestedBy),
		zap.Int("explicitRecipients", len(run.RecipientIDs)),
	)
	return run, nil
}

func (s *BroadcastService) Get(ctx context.Context, id string) (*domain.BroadcastRun, error) {
	return s.runs.GetByID(ctx, id)
}

func (s *BroadcastService) List(ctx context.Context, limit int) ([]domain.BroadcastRun, error) {
	return s.runs.ListRecent(ctx, limit)
}

// Execute runs a queued broadcast to completion. Only infrastructure errors
// are returned; a failed dispatch is recorded on the run instead.
func (s *BroadcastService) Execute(ctx context.Context, msg queue.BroadcastMessage) error {
	ctx = observability.WithRunID(ctx, msg.RunID)
	logger := observability.WithContextLogger(s.logger, ctx)

	run, err := s.runs.GetByID(ctx, msg.RunID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("broadcast run %s: %w", msg.RunID, queue.ErrPermanent)
	}
	if err != nil {
		return fmt.Errorf("failed to load broadcast run: %w", err)
	}

	if run.Status.IsTerminal() {
		logger.Info("broadcast already finished, skipping", zap.String("status", run.Status.String()))
		return nil
	}

	startedAt := s.now().UTC()
	if err := s.runs.MarkRunning(ctx, run.ID, startedAt); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			if run.Status == domain.RunStatusRunning && run.StartedAt != nil {
				// Runs are not resumed; a run whose consumer died stays
				// RUNNING until an operator closes it.
				logger.Warn("broadcast already running, skipping redelivery",
					zap.Time("startedAt", *run.StartedAt),
					zap.Duration("runningFor", startedAt.Sub(*run.StartedAt)),
				)
				return nil
			}
			logger.Info("broadcast already claimed, skipping", zap.String("status", run.Status.String()))
			return nil
		}
		return fmt.Errorf("failed to mark broadcast running: %w", err)
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt

	bound, err := s.templateFor(run).Bind(s.caller)
	if err != nil {
		s.fail(ctx, run, err.Error())
		return nil
	}

	req := broadcast.Request{
		IncludeBanned: run.IncludeBanned,
		PageSize:      s.settings.PageSize,
		MaxConcurrent: s.settings.MaxConcurrent,
		MaxRate:       s.settings.MaxRate,
	}

	var stats broadcast.Stats
	var dispatchErr error
	if len(run.RecipientIDs) > 0 {
		stats, dispatchErr = s.dispatcher.DispatchList(ctx, bound, run.RecipientIDs, req)
	} else {
		stats, dispatchErr = s.dispatcher.DispatchQueried(ctx, bound, req)
	}

	run.Expected = stats.Expected
	run.Total = stats.Total
	run.Success = stats.Success
	run.Failed = stats.Failed
	run.Blocked = stats.Blocked

	if dispatchErr != nil {
		logger.Error("broadcast interrupted", zap.Error(dispatchErr))
		s.fail(ctx, run, dispatchErr.Error())
		return nil
	}

	s.finish(ctx, run, domain.RunStatusCompleted, nil)
	return nil
}

// fail and finish write with a context detached from cancellation so a run
// interrupted by shutdown still gets its final state.
func (s *BroadcastService) fail(ctx context.Context, run *domain.BroadcastRun, reason string) {
	s.finish(ctx, run, domain.RunStatusFailed, &reason)
}

func (s *BroadcastService) finish(ctx context.Context, run *domain.BroadcastRun, status domain.RunStatus, reason *string) {
	ctx = context.WithoutCancel(ctx)
	logger := observability.WithContextLogger(s.logger, ctx)

	finishedAt := s.now().UTC()
	run.Status = status
	run.Error = reason
	run.FinishedAt = &finishedAt

	if err := s.runs.Finish(ctx, run); err != nil {
		logger.Error("failed to store broadcast result", zap.String("runId", run.ID), zap.Error(err))
	}
	s.metrics.IncBroadcastRun(status.String())

	logger.Info("broadcast finished",
		zap.String("runId", run.ID),
		zap.String("status", status.String()),
		zap.Int64("total", run.Total),
		zap.Int64("success", run.Success),
		zap.Int64("failed", run.Failed),
		zap.Int64("blocked", run.Blocked),
	)

	s.report(ctx, run)
}

func (s *BroadcastService) report(ctx context.Context, run *domain.BroadcastRun) {
	if s.translator == nil || run.RequestedBy == 0 {
		return
	}

	locale := ""
	if s.locales != nil {
		locale = s.locales.Locale(ctx, run.RequestedBy)
	}
	text := s.translator.T(locale, "broadcast-report", map[string]any{
		"run_id":   run.ID,
		"status":   run.Status.String(),
		"expected": run.Expected,
		"total":    run.Total,
		"success":  run.Success,
		"failed":   run.Failed,
		"blocked":  run.Blocked,
	})

	bound, err := message.Template{Text: text}.Bind(s.caller)
	if err != nil {
		s.logger.Warn("failed to build broadcast report", zap.String("runId", run.ID), zap.Error(err))
		return
	}
	if result := bound.Send(ctx, run.RequestedBy); result.Err != nil {
		s.logger.Warn("failed to send broadcast report",
			zap.String("runId", run.ID),
			zap.Int64("chatId", run.RequestedBy),
			zap.Error(result.Err),
		)
	}
}

func (s *BroadcastService) templateFor(run *domain.BroadcastRun) message.Template {
	return message.Template{
		Text:     run.Text,
		Photos:   run.PhotoURLs,
		Document: run.DocumentURL,
	}
}
