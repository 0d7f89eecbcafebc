// Package client talks to the chat backend over its JSON HTTP contract.
package client

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
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/emotion"
)

const DefaultTimeout = 60 * time.Second

var (
	// ErrUnexpectedStatus is returned for a non-2xx reply that carries no error message.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrRejected wraps a {"success": false} reply.
	ErrRejected = errors.New("request rejected by server")
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout bounds every call. Zero disables the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// EmotionStreamURL returns the websocket address of the emotion push feed.
func (c *Client) EmotionStreamURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/ws/emotion")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

type SendRequest struct {
	Message string `json:"message"`
	Prompt  string `json:"prompt"`
}

// SendResponse is either a reply or an error message. Emotion and Intensity
// are optional; Intensity is nil when absent.
type SendResponse struct {
	Reply     string   `json:"reply"`
	Emotion   string   `json:"emotion,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Send posts one user turn. A server-side failure reported as {"error": ...}
// is returned in the response, not as an error, whatever the status code.
func (c *Client) Send(ctx context.Context, message, prompt string) (*SendResponse, error) {
	var out SendResponse
	status, err := c.do(ctx, http.MethodPost, "/send", SendRequest{Message: message, Prompt: prompt}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error == "" && !ok(status) {
		return nil, fmt.Errorf("send: %w: %d", ErrUnexpectedStatus, status)
	}
	return &out, nil
}

type EmotionResponse struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// CurrentEmotion fetches the backend's current emotion state.
func (c *Client) CurrentEmotion(ctx context.Context) (emotion.State, error) {
	var out EmotionResponse
	status, err := c.do(ctx, http.MethodGet, "/current-emotion", nil, &out)
	if err != nil {
		return emotion.State{}, err
	}
	if !ok(status) {
		return emotion.State{}, fmt.Errorf("current emotion: %w: %d", ErrUnexpectedStatus, status)
	}
	if out.Emotion == "" {
		return emotion.State{}, fmt.Errorf("current emotion: empty emotion in response")
	}
	return emotion.State{Identifier: out.Emotion, Intensity: out.Intensity}, nil
}

type analyzeRequest struct {
	Conversation []chat.Message `json:"conversation"`
}

type analyzeResponse struct {
	Success  bool           `json:"success"`
	Analysis *chat.Analysis `json:"analysis,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// AnalyzeConversation asks the backend to suggest save metadata.
func (c *Client) AnalyzeConversation(ctx context.Context, messages []chat.Message) (*chat.Analysis, error) {
	var out analyzeResponse
	status, err := c.do(ctx, http.MethodPost, "/analyze-conversation", analyzeRequest{Conversation: messages}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success || out.Analysis == nil {
		return nil, rejection("analyze conversation", status, out.Error)
	}
	return out.Analysis, nil
}

type SaveRequest struct {
	Conversation []chat.Message `json:"conversation"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	QualityScore float64        `json:"quality_score"`
}

type saveResponse struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SaveConversation stores a curated conversation and returns its id.
func (c *Client) SaveConversation(ctx context.Context, req SaveRequest) (string, error) {
	var out saveResponse
	status, err := c.do(ctx, http.MethodPost, "/save", req, &out)
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", rejection("save conversation", status, out.Error)
	}
	return out.ConversationID, nil
}

type populateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PopulateInitialData seeds the character's starting memories.
func (c *Client) PopulateInitialData(ctx context.Context) (string, error) {
	var out populateResponse
	status, err := c.do(ctx, http.MethodPost, "/populate-initial-data", nil, &out)
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", rejection("populate initial data", status, out.Error)
	}
	return out.Message, nil
}

type savedResponse struct {
	Success       bool                     `json:"success"`
	Conversations []chat.SavedConversation `json:"conversations"`
	Error         string                   `json:"error,omitempty"`
}

// SavedConversations lists stored conversations, newest first.
func (c *Client) SavedConversations(ctx context.Context) ([]chat.SavedConversation, error) {
	var out savedResponse
	status, err := c.do(ctx, http.MethodGet, "/saved-conversations", nil, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, rejection("saved conversations", status, out.Error)
	}
	return out.Conversations, nil
}

func rejection(op string, status int, msg string) error {
	if msg == "" {
		return fmt.Errorf("%s: %w (status %d)", op, ErrRejected, status)
	}
	return fmt.Errorf("%s: %w: %s", op, ErrRejected, msg)
}

func ok(status int) bool { return status >= 200 && status < 300 }

// do sends body as JSON and decodes the reply into out regardless of status.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("[client] request failed", zap.String("path", path), zap.Error(err))
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("[client] response",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response (status %d): %w", path, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
