// Package summary wraps the GigaChat completion API: OAuth token
// acquisition with short-lived caching, and a single text-summarization
// call. The ingestion core never depends on this package.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultAPIURL   = "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"
	defaultScope    = "GIGACHAT_API_PERS"
	defaultModel    = "GigaChat"

	// Tokens are refreshed this long before their reported expiry.
	refreshMargin = 30 * time.Second

	systemPrompt = "You are an assistant that produces concise summaries. " +
		"Write a short, informative digest of the main points and facts of the text."
)

var (
	ErrAuth = errors.New("summary: authentication failed")
	ErrAPI  = errors.New("summary: api request failed")
)

// TokenSource supplies a bearer token for completion calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// OAuthTokenSource exchanges basic-auth credentials for an access token and
// caches it until shortly before expiry.
type OAuthTokenSource struct {
	URL       string
	BasicAuth string // base64-encoded client_id:client_secret
	Scope     string
	Client    *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiresAt.Add(-refreshMargin)) {
		return s.token, nil
	}

	form := url.Values{"scope": {s.Scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+s.BasicAuth)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: token endpoint returned %d: %s", ErrAuth, resp.StatusCode, body)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix milliseconds
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode token response: %w", ErrAuth, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: token missing from response", ErrAuth)
	}

	s.token = payload.AccessToken
	if payload.ExpiresAt > 0 {
		s.expiresAt = time.UnixMilli(payload.ExpiresAt)
	} else {
		s.expiresAt = time.Now().Add(30 * time.Minute)
	}
	return s.token, nil
}

type Config struct {
	BasicAuth string
	Scope     string
	Model     string
	OAuthURL  string
	APIURL    string
}

type Client struct {
	apiURL string
	model  string
	tokens TokenSource
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BasicAuth == "" {
		return nil, errors.New("summary: basic auth credentials are required")
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = defaultOAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	return &Client{
		apiURL: cfg.APIURL,
		model:  cfg.Model,
		tokens: &OAuthTokenSource{
			URL:       cfg.OAuthURL,
			BasicAuth: cfg.BasicAuth,
			Scope:     cfg.Scope,
			Client:    httpClient,
		},
		http:   httpClient,
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize produces a short digest of text via the completion endpoint.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("summary: text is empty")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}

	payload := completionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAPI, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAPI, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	c.logger.Info("Requesting summary", zap.Int("text_len", len(text)))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAPI, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("%w: check client credentials", ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: rate limited, try again later", ErrAPI)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, msg)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrAPI, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrAPI)
	}

	result := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if result == "" {
		return "", fmt.Errorf("%w: summary missing from response", ErrAPI)
	}
	return result, nil
}
