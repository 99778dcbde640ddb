package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/Er1one/telegram-bot-template/internal/domain"
	"github.com/Er1one/telegram-bot-template/internal/service"
)

const (
	testToken   = "123:TEST"
	testAdminID = 1
	testUserID  = 42
)

type apiRequest struct {
	method string
	form   url.Values
}

// fakeTelegram records Bot API calls and answers them with minimal successful
// results.
type fakeTelegram struct {
	mu           sync.Mutex
	requests     []apiRequest
	webhookURL   string
	memberStatus string
	failing      map[string]bool
	srv          *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()

	f := &fakeTelegram{memberStatus: "administrator", failing: map[string]bool{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	form := url.Values{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			form = r.MultipartForm.Value
		}
	} else {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			for key, value := range body {
				if s, ok := value.(string); ok {
					form.Set(key, s)
					continue
				}
				raw, _ := json.Marshal(value)
				form.Set(key, string(raw))
			}
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, apiRequest{method: method, form: form})
	webhookURL := f.webhookURL
	memberStatus := f.memberStatus
	failing := f.failing[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if failing {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
		return
	}

	switch method {
	case "sendMessage", "editMessageText":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":999,"is_bot":true,"first_name":"Test","username":"TestBot"}}`))
	case "getChatMember":
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"status":%q,"user":{"id":%d,"is_bot":false,"first_name":"Alice"}}}`, memberStatus, testUserID)
	case "getChatMemberCount":
		_, _ = w.Write([]byte(`{"ok":true,"result":17}`))
	case "getWebhookInfo":
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"url":%q,"has_custom_certificate":false,"pending_update_count":0}}`, webhookURL)
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (f *fakeTelegram) setWebhookURL(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhookURL = u
}

func (f *fakeTelegram) setMemberStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberStatus = status
}

func (f *fakeTelegram) fail(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[method] = true
}

func (f *fakeTelegram) calls() []apiRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiRequest(nil), f.requests...)
}

func (f *fakeTelegram) callsTo(method string) []apiRequest {
	var out []apiRequest
	for _, call := range f.calls() {
		if call.method == method {
			out = append(out, call)
		}
	}
	return out
}

// waitFor polls until a call to method arrives; handlers may run on their
// own goroutine when updates go through the dispatcher.
func (f *fakeTelegram) waitFor(t *testing.T, method string) apiRequest {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := f.callsTo(method); len(calls) > 0 {
			return calls[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s call within deadline; got %+v", method, f.calls())
	return apiRequest{}
}

type fakeUsers struct {
	mu         sync.Mutex
	locale     string
	registered []domain.Profile
	bans       map[int64]bool
	locales    map[int64]string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{locale: "en", bans: map[int64]bool{}, locales: map[int64]string{}}
}

func (f *fakeUsers) Register(_ context.Context, profile domain.Profile) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, profile)
	return &domain.User{ID: profile.ID}, nil
}

func (f *fakeUsers) SetBanned(_ context.Context, userID int64, banned bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans[userID] = banned
	return true, nil
}

func (f *fakeUsers) Locale(_ context.Context, userID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if locale, ok := f.locales[userID]; ok {
		return locale
	}
	return f.locale
}

func (f *fakeUsers) SetLocale(_ context.Context, userID int64, locale string) error {
	if locale != "en" && locale != "ru" {
		return fmt.Errorf("%w: unsupported locale %q", domain.ErrValidation, locale)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locales[userID] = locale
	return nil
}

func (f *fakeUsers) registeredProfiles() []domain.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Profile(nil), f.registered...)
}

type fakeBroadcasts struct {
	submitFn func(ctx context.Context, cmd service.BroadcastCommand) (*domain.BroadcastRun, error)
	commands []service.BroadcastCommand
}

func (f *fakeBroadcasts) Submit(ctx context.Context, cmd service.BroadcastCommand) (*domain.BroadcastRun, error) {
	f.commands = append(f.commands, cmd)
	if f.submitFn != nil {
		return f.submitFn(ctx, cmd)
	}
	return &domain.BroadcastRun{ID: "run-1", Status: domain.RunStatusQueued}, nil
}

type fakeFlood struct {
	allowed bool
	err     error
}

func (f *fakeFlood) Allow(context.Context, int64) (bool, error) {
	return f.allowed, f.err
}

// echoTranslator renders "<locale>:<key>" followed by the vars, so tests can
// see which string was picked and with what.
type echoTranslator struct{}

func (echoTranslator) T(locale, key string, vars map[string]any) string {
	if len(vars) == 0 {
		return locale + ":" + key
	}
	return fmt.Sprintf("%s:%s %v", locale, key, vars)
}

type testBot struct {
	*Bot
	api        *fakeTelegram
	users      *fakeUsers
	broadcasts *fakeBroadcasts
	flood      *fakeFlood
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	api := newFakeTelegram(t)
	users := newFakeUsers()
	broadcasts := &fakeBroadcasts{}
	flood := &fakeFlood{allowed: true}

	b, err := New(Options{
		Token:     testToken,
		ServerURL: api.srv.URL,
		AdminIDs:  []int64{testAdminID},
		SkipGetMe: true,
		Username:  "TestBot",
	}, users, broadcasts, flood, echoTranslator{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testBot{Bot: b, api: api, users: users, broadcasts: broadcasts, flood: flood}
}

func privateMessage(userID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			From: &models.User{ID: userID, FirstName: "Alice", Username: "alice", LanguageCode: "en"},
			Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
			Text: text,
		},
	}
}

func groupMessage(userID int64, text string) *models.Update {
	update := privateMessage(userID, text)
	update.Message.Chat = models.Chat{ID: -100, Type: models.ChatTypeSupergroup, Title: "Dev <team>"}
	return update
}

func callback(userID int64, data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: userID, FirstName: "Alice"},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 77, Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate}},
			},
		},
	}
}
