package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestBotAPICallSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer server.Close()

	api, err := NewBotAPI(server.URL, "123:abc")
	if err != nil {
		t.Fatalf("NewBotAPI() error = %v", err)
	}

	resp, err := api.Call(context.Background(), "sendMessage", map[string]any{
		"chat_id": 1001,
		"text":    "hello",
	})
	if err != nil {
		t.Fatalf("Call() unexpected error: %v", err)
	}
	if !resp.OK {
		t.Fatalf("resp.OK = false, want true")
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %q, want %q", gotPath, "/bot123:abc/sendMessage")
	}
	if gotBody["text"] != "hello" {
		t.Fatalf("request text = %v, want %q", gotBody["text"], "hello")
	}
	if !strings.Contains(string(resp.Result), `"message_id":42`) {
		t.Fatalf("result = %s, want message_id 42", resp.Result)
	}
}

func TestBotAPICallClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		statusCode     int
		body           string
		wantStatus     Status
		wantRetryAfter time.Duration
	}{
		{
			name:       "blocked by user is forbidden",
			statusCode: http.StatusForbidden,
			body:       `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`,
			wantStatus: StatusForbidden,
		},
		{
			name:           "flood control is throttled with retry after",
			statusCode:     http.StatusTooManyRequests,
			body:           `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`,
			wantStatus:     StatusThrottled,
			wantRetryAfter: 7 * time.Second,
		},
		{
			name:       "chat not found is bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
			wantStatus: StatusBadRequest,
		},
		{
			name:       "server error is failed",
			statusCode: http.StatusInternalServerError,
			body:       `{"ok":false,"error_code":500,"description":"Internal Server Error"}`,
			wantStatus: StatusFailed,
		},
		{
			name:       "non json gateway error is failed",
			statusCode: http.StatusBadGateway,
			body:       `<html>bad gateway</html>`,
			wantStatus: StatusFailed,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			api, err := NewBotAPI(server.URL, "token")
			if err != nil {
				t.Fatalf("NewBotAPI() error = %v", err)
			}

			_, err = api.Call(context.Background(), "sendMessage", map[string]any{"chat_id": 1})
			if err == nil {
				t.Fatalf("Call() expected error, got nil")
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.StatusCode != tc.statusCode {
				t.Fatalf("StatusCode = %d, want %d", apiErr.StatusCode, tc.statusCode)
			}

			result := Classify(err)
			if result.Status != tc.wantStatus {
				t.Fatalf("Classify().Status = %s, want %s", result.Status, tc.wantStatus)
			}
			if result.RetryAfter != tc.wantRetryAfter {
				t.Fatalf("Classify().RetryAfter = %s, want %s", result.RetryAfter, tc.wantRetryAfter)
			}
			if result.Err == nil {
				t.Fatalf("Classify().Err = nil, want error")
			}
		})
	}
}

func TestBotAPICallTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	serverURL := server.URL
	server.Close()

	api, err := NewBotAPI(serverURL, "secret-token")
	if err != nil {
		t.Fatalf("NewBotAPI() error = %v", err)
	}

	_, err = api.Call(context.Background(), "getMe", nil)
	if err == nil {
		t.Fatalf("Call() expected error, got nil")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("error leaks bot token: %v", err)
	}
	if got := Classify(err).Status; got != StatusFailed {
		t.Fatalf("Classify().Status = %s, want %s", got, StatusFailed)
	}
}

func TestNewBotAPIValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewBotAPI("https://api.telegram.org", " "); err == nil {
		t.Fatalf("NewBotAPI() with empty token expected error")
	}
	if _, err := NewBotAPI("::not a url", "token"); err == nil {
		t.Fatalf("NewBotAPI() with invalid url expected error")
	}

	api, err := NewBotAPI("", "token")
	if err != nil {
		t.Fatalf("NewBotAPI() error = %v", err)
	}
	if api.baseURL != DefaultAPIURL {
		t.Fatalf("baseURL = %q, want %q", api.baseURL, DefaultAPIURL)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want Status
	}{
		{name: "nil is ok", err: nil, want: StatusOK},
		{name: "plain error is failed", err: errors.New("boom"), want: StatusFailed},
		{name: "context deadline is failed", err: context.DeadlineExceeded, want: StatusFailed},
		{name: "error code wins over http status", err: &APIError{StatusCode: 200, ErrorCode: 403}, want: StatusForbidden},
		{name: "http status used without error code", err: &APIError{StatusCode: 400}, want: StatusBadRequest},
		{name: "wrapped api error", err: errors.Join(errors.New("send"), &APIError{ErrorCode: 429}), want: StatusThrottled},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tc.err).Status; got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "short is untouched", in: "ошибка", limit: 64, want: "ошибка"},
		{name: "ascii cut", in: "bad gateway", limit: 3, want: "bad"},
		{name: "cut inside cyrillic rune", in: "ошибка", limit: 3, want: "о"},
		{name: "cut on rune boundary", in: "ошибка", limit: 4, want: "ош"},
		{name: "cut inside emoji", in: "a🚫b", limit: 3, want: "a"},
		{name: "limit inside first rune", in: "🚫", limit: 2, want: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := truncate(tc.in, tc.limit)
			if got != tc.want {
				t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncate(%q, %d) = %q is not valid UTF-8", tc.in, tc.limit, got)
			}
		})
	}
}
