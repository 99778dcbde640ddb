package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIURL      = "https://api.telegram.org"
	defaultCallTimeout = 10 * time.Second
	maxErrorBodyLength = 256
)

// Response is the Bot API envelope shared by every method.
type Response struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

type ResponseParameters struct {
	RetryAfter      int   `json:"retry_after,omitempty"`
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
}

// BotAPI calls Bot API methods with JSON payloads. It is used for bulk sends,
// where the raw error_code and retry_after are needed for classification.
type BotAPI struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewBotAPI(baseURL, token string) (*BotAPI, error) {
	client := resty.New()
	client.SetTimeout(defaultCallTimeout)
	client.SetRetryCount(0)

	return NewBotAPIWithClient(baseURL, token, client)
}

func NewBotAPIWithClient(baseURL, token string, client *resty.Client) (*BotAPI, error) {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		trimmedURL = DefaultAPIURL
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid telegram api url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultCallTimeout)
	}
	client.SetRetryCount(0)

	return &BotAPI{
		client:  client,
		baseURL: trimmedURL,
		token:   trimmedToken,
	}, nil
}

// Call invokes method with payload encoded as JSON. A response with ok=false is
// returned together with an *APIError.
func (a *BotAPI) Call(ctx context.Context, method string, payload any) (*Response, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("bot api is not initialized")
	}
	if strings.TrimSpace(method) == "" {
		return nil, fmt.Errorf("method is required")
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(a.methodURL(method))
	if err != nil {
		return nil, &APIError{
			Description: "request failed",
			Cause:       redactURL(err),
		}
	}
	if response == nil {
		return nil, &APIError{Description: "empty response"}
	}

	statusCode := response.StatusCode()

	var envelope Response
	if err := json.Unmarshal(response.Body(), &envelope); err != nil {
		return nil, &APIError{
			StatusCode:  statusCode,
			Description: truncate(strings.TrimSpace(response.String()), maxErrorBodyLength),
			Cause:       fmt.Errorf("decode response: %w", err),
		}
	}

	if envelope.OK {
		return &envelope, nil
	}

	apiErr := &APIError{
		StatusCode:  statusCode,
		ErrorCode:   envelope.ErrorCode,
		Description: envelope.Description,
	}
	if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
	}

	return &envelope, apiErr
}

func (a *BotAPI) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", a.baseURL, a.token, method)
}

// redactURL drops the request URL, which carries the bot token, from
// transport errors.
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
