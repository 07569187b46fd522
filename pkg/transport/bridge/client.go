// Package bridge talks to the local chat bridge that owns the messaging
// session. It implements core.TextSender, core.VideoSender and core.Pacer.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
)

// DefaultURL is where the bridge listens unless configured otherwise.
const DefaultURL = "http://localhost:3000"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError is returned when the bridge answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge: %s returned %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("bridge: %s returned %d: %s", e.Endpoint, e.Code, e.Message)
}

// Client is an HTTP client for the chat bridge.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option interface {
	applyClient(*Client)
}

type clientOptionFunc func(*Client)

func (f clientOptionFunc) applyClient(c *Client) { f(c) }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return clientOptionFunc(func(c *Client) {
		if h != nil {
			c.http = h
		}
	})
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return clientOptionFunc(func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return clientOptionFunc(func(c *Client) {
		if l != nil {
			c.logger = l
		}
	})
}

// New creates a client for the bridge at baseURL (DefaultURL when empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt.applyClient(c)
	}
	return c
}

// Pace waits for a request slot from the rate limiter. A request made with a
// context from core.WithPaced uses that slot instead of waiting again.
func (c *Client) Pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("bridge: rate limit: %w", err)
	}
	return nil
}

// BaseURL returns the bridge address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type sendMessageRequest struct {
	GroupID string `json:"group_id"`
	Text    string `json:"text"`
}

type sendVideoRequest struct {
	GroupID  string `json:"group_id"`
	VideoURL string `json:"video_url"`
	Caption  string `json:"caption"`
}

// SendText posts a text message to a chat or group.
func (c *Client) SendText(ctx context.Context, recipient, text string) error {
	return c.post(ctx, "/send-message", sendMessageRequest{GroupID: recipient, Text: text}, nil)
}

// SendVideo posts a video, referenced by URL, to a chat or group.
func (c *Client) SendVideo(ctx context.Context, recipient, mediaURL, caption string) error {
	return c.post(ctx, "/send-video", sendVideoRequest{GroupID: recipient, VideoURL: mediaURL, Caption: caption}, nil)
}

// Status is the bridge's self report.
type Status struct {
	Status    string    `json:"status"`
	Ready     bool      `json:"whatsapp_ready"`
	Timestamp time.Time `json:"timestamp"`
}

// Status queries GET /status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.get(ctx, "/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Chat is a conversation known to the bridge.
type Chat struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsGroup      bool   `json:"isGroup"`
	Participants int    `json:"participants"`
}

// Chats lists the chats and groups the bridge can deliver to.
func (c *Client) Chats(ctx context.Context) ([]Chat, error) {
	var resp struct {
		Chats []Chat `json:"chats"`
	}
	if err := c.get(ctx, "/chats", &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bridge: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("bridge: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("bridge: build %s: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	if !core.Paced(req.Context()) {
		if err := c.Pace(req.Context()); err != nil {
			return err
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("bridge request", "method", req.Method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: path, Code: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("bridge: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a response body, falling back
// to the raw text.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		if body.Details != "" {
			return body.Error + ": " + body.Details
		}
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
