package service

import (
	"context"
	"sync"
	"time"

	"github.com/Er1one/telegram-bot-template/internal/broadcast"
	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/provider"
	"github.com/Er1one/telegram-bot-template/internal/queue"
	"github.com/Er1one/telegram-bot-template/internal/repository"
)

type fakeUserRepo struct {
	createFn        func(ctx context.Context, u *domain.User) error
	getByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	updateProfileFn func(ctx context.Context, id int64, username *string, fullName string) error
	setLanguageFn   func(ctx context.Context, id int64, languageCode string) error
	setBannedFn     func(ctx context.Context, id int64, banned bool) (bool, error)
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, id int64, username *string, fullName string) error {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, id, username, fullName)
	}
	return nil
}

func (f *fakeUserRepo) SetLanguage(ctx context.Context, id int64, languageCode string) error {
	if f.setLanguageFn != nil {
		return f.setLanguageFn(ctx, id, languageCode)
	}
	return nil
}

func (f *fakeUserRepo) SetBanned(ctx context.Context, id int64, banned bool) (bool, error) {
	if f.setBannedFn != nil {
		return f.setBannedFn(ctx, id, banned)
	}
	return false, nil
}

func (f *fakeUserRepo) Count(context.Context, bool) (int64, error) { return 0, nil }

func (f *fakeUserRepo) ListAfter(context.Context, int64, bool, int) ([]domain.User, error) {
	return nil, nil
}

type fakeLocaleCache struct {
	mu     sync.Mutex
	values map[int64]string
	getErr error
}

func newFakeLocaleCache() *fakeLocaleCache {
	return &fakeLocaleCache{values: map[int64]string{}}
}

func (f *fakeLocaleCache) Get(_ context.Context, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.values[userID], nil
}

func (f *fakeLocaleCache) Set(_ context.Context, userID int64, locale string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[userID] = locale
	return nil
}

type fakeLocales struct{}

func (fakeLocales) Supported(locale string) bool { return locale == "en" || locale == "ru" }
func (fakeLocales) Default() string              { return "ru" }

type fakeBroadcastRepo struct {
	mu        sync.Mutex
	runs      map[string]domain.BroadcastRun
	finished  []domain.BroadcastRun
	createFn  func(ctx context.Context, run *domain.BroadcastRun) error
	getByIDFn func(ctx context.Context, id string) (*domain.BroadcastRun, error)
	markFn    func(ctx context.Context, id string, startedAt time.Time) error
}

var _ repository.BroadcastRepository = (*fakeBroadcastRepo)(nil)

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{runs: map[string]domain.BroadcastRun{}}
}

func (f *fakeBroadcastRepo) Create(ctx context.Context, run *domain.BroadcastRun) error {
	if f.createFn != nil {
		return f.createFn(ctx, run)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeBroadcastRepo) GetByID(ctx context.Context, id string) (*domain.BroadcastRun, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

func (f *fakeBroadcastRepo) ListRecent(context.Context, int) ([]domain.BroadcastRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.BroadcastRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	return out, nil
}

func (f *fakeBroadcastRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	if f.markFn != nil {
		return f.markFn(ctx, id, startedAt)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok || run.Status != domain.RunStatusQueued {
		return domain.ErrConflict
	}
	run.Status = domain.RunStatusRunning
	run.StartedAt = &startedAt
	f.runs[id] = run
	return nil
}

func (f *fakeBroadcastRepo) Finish(_ context.Context, run *domain.BroadcastRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	f.finished = append(f.finished, *run)
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.BroadcastMessage) error
	published []queue.BroadcastMessage
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.BroadcastMessage) error {
	f.published = append(f.published, msg)
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeDispatcher struct {
	queriedFn func(ctx context.Context, sender broadcast.Sender, req broadcast.Request) (broadcast.Stats, error)
	listFn    func(ctx context.Context, sender broadcast.Sender, ids []int64, req broadcast.Request) (broadcast.Stats, error)
}

func (f *fakeDispatcher) DispatchQueried(ctx context.Context, sender broadcast.Sender, req broadcast.Request) (broadcast.Stats, error) {
	if f.queriedFn != nil {
		return f.queriedFn(ctx, sender, req)
	}
	return broadcast.Stats{}, nil
}

func (f *fakeDispatcher) DispatchList(ctx context.Context, sender broadcast.Sender, ids []int64, req broadcast.Request) (broadcast.Stats, error) {
	if f.listFn != nil {
		return f.listFn(ctx, sender, ids, req)
	}
	return broadcast.Stats{}, nil
}

type apiCall struct {
	method  string
	payload map[string]any
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeCaller) Call(_ context.Context, method string, payload any) (*provider.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, _ := payload.(map[string]any)
	f.calls = append(f.calls, apiCall{method: method, payload: p})
	return &provider.Response{OK: true}, nil
}

func (f *fakeCaller) snapshot() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

type fakeTranslator struct{}

func (fakeTranslator) T(locale, key string, vars map[string]any) string {
	return locale + ":" + key
}

type fixedLocale string

func (l fixedLocale) Locale(context.Context, int64) string { return string(l) }
