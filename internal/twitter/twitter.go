// Package twitter implements the signed poster for the social API.
//
// It builds OAuth1-signed requests, sends them, and interprets the response
// as a structured result. It makes exactly one outbound call per invocation,
// never writes to the store, and never retries; retry scheduling belongs to
// the caller's own cadence.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/macrilege/gpt-enduser/internal/models"
	"github.com/macrilege/gpt-enduser/internal/oauth1"
)

// Default client configuration.
const (
	DefaultBaseURL = "https://api.twitter.com"
	// DefaultTimeout bounds the outbound call so a hung upstream surfaces as
	// a timeout result instead of stalling the scheduled job.
	DefaultTimeout = 10 * time.Second

	tweetsPath   = "/2/tweets"
	mentionsPath = "/2/users/%s/mentions"
)

// Opts holds client configuration.
type Opts struct {
	Credentials oauth1.Credentials
	BaseURL     string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Option configures the client.
type Option func(*Opts)

// WithCredentials sets the OAuth1 credentials.
func WithCredentials(creds oauth1.Credentials) Option {
	return func(o *Opts) { o.Credentials = creds }
}

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client posts to the social API with signed requests.
type Client struct {
	httpClient *http.Client
	signer     *oauth1.Signer
	baseURL    string
	timeout    time.Duration
}

// NewClient creates a signed-poster client. All four credential parts are
// required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.Credentials.Valid() {
		return nil, models.ErrMissingCreds
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		signer:     oauth1.NewSigner(cfg.Credentials),
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
	}, nil
}

// tweetRequest is the JSON body for POST /2/tweets.
type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

// Post sends text to the social API, threading under replyTargetID when set.
// The outcome is always a structured result, never a panic: upstream and
// transport failures come back as ErrorKind values for the gatekeeper to
// propagate.
func (c *Client) Post(ctx context.Context, text, replyTargetID string) models.PostResult {
	reqBody := tweetRequest{Text: text}
	if replyTargetID != "" {
		reqBody.Reply = &tweetReply{InReplyToTweetID: replyTargetID}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return models.PostResult{OK: false, ErrorKind: models.ErrorKindUpstream, Detail: fmt.Sprintf("marshal request: %v", err)}
	}

	endpoint := c.baseURL + tweetsPath
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.PostResult{OK: false, ErrorKind: models.ErrorKindUpstream, Detail: fmt.Sprintf("build request: %v", err)}
	}
	auth, err := c.signer.AuthorizationHeader(http.MethodPost, endpoint)
	if err != nil {
		return models.PostResult{OK: false, ErrorKind: models.ErrorKindUpstream, Detail: fmt.Sprintf("sign request: %v", err)}
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("Client.Post: request timed out", "timeout", c.timeout)
			return models.PostResult{OK: false, ErrorKind: models.ErrorKindTimeout, Detail: err.Error()}
		}
		slog.Error("Client.Post: transport failure", "error", err)
		return models.PostResult{OK: false, ErrorKind: models.ErrorKindUpstream, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.PostResult{OK: false, StatusCode: resp.StatusCode, ErrorKind: models.ErrorKindUpstream, Detail: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Info("Client.Post: posted", "status", resp.StatusCode, "reply", replyTargetID != "")
		return models.PostResult{OK: true, StatusCode: resp.StatusCode, Body: string(body)}
	}

	slog.Warn("Client.Post: upstream rejected post", "status", resp.StatusCode)
	return models.PostResult{OK: false, StatusCode: resp.StatusCode, Body: string(body), ErrorKind: models.ErrorKindUpstream}
}

// mentionsResponse is the JSON shape of GET /2/users/:id/mentions.
type mentionsResponse struct {
	Data []models.Mention `json:"data"`
}

// Mentions fetches recent mentions of userID, optionally only those after
// sinceID. Used by the mention-reply job to find targets.
func (c *Client) Mentions(ctx context.Context, userID, sinceID string) ([]models.Mention, error) {
	endpoint := c.baseURL + fmt.Sprintf(mentionsPath, url.PathEscape(userID))
	if sinceID != "" {
		endpoint += "?since_id=" + url.QueryEscape(sinceID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build mentions request: %w", err)
	}
	auth, err := c.signer.AuthorizationHeader(http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("sign mentions request: %w", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch mentions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read mentions response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mentions request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed mentionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode mentions response: %w", err)
	}
	return parsed.Data, nil
}
