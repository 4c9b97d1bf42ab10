// Package models defines the core data structures for gpt-enduser.
//
// It includes the outbound message and post result types shared across the
// gatekeeper, poster, and API modules.
package models

import (
	"errors"
	"time"
)

// ErrorKind classifies why a post attempt did not succeed.
type ErrorKind string

const (
	// ErrorKindRateLimited means the global minimum-interval policy rejected
	// the attempt before any network call.
	ErrorKindRateLimited ErrorKind = "rate-limited"
	// ErrorKindDuplicate means the same text was attempted recently.
	ErrorKindDuplicate ErrorKind = "duplicate"
	// ErrorKindUpstream means the social API was called and returned a
	// non-2xx status or the transport failed.
	ErrorKindUpstream ErrorKind = "upstream-error"
	// ErrorKindTimeout means the social API call exceeded its deadline.
	ErrorKindTimeout ErrorKind = "timeout"
)

// Validation constants for outbound posts.
const (
	// MaxPostLength is the platform's post length limit in runes. Truncation
	// happens before fingerprinting so the dedup check sees the exact bytes
	// that go on the wire.
	MaxPostLength = 280
)

// Error variables for better error handling and testability
var (
	ErrEmptyText    = errors.New("post text cannot be empty")
	ErrTextTooLong  = errors.New("post text exceeds platform length limit")
	ErrMissingCreds = errors.New("consumer key/secret and access token/secret are required")
)

// OutboundMessage is a finalized post candidate handed to the gatekeeper.
type OutboundMessage struct {
	Text          string    `json:"text"`
	ReplyTargetID string    `json:"reply_target_id,omitempty"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// IsReply reports whether the message threads under a prior post.
func (m OutboundMessage) IsReply() bool {
	return m.ReplyTargetID != ""
}

// Validate checks the message against platform constraints.
func (m OutboundMessage) Validate() error {
	if m.Text == "" {
		return ErrEmptyText
	}
	if len([]rune(m.Text)) > MaxPostLength {
		return ErrTextTooLong
	}
	return nil
}

// PostResult is the structured outcome of a post attempt. Policy rejections
// and upstream failures are reported here, never as panics.
type PostResult struct {
	OK         bool      `json:"ok"`
	StatusCode int       `json:"status_code,omitempty"`
	Body       string    `json:"body,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Mention is an inbound mention of the bot, candidate for a reply.
type Mention struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id,omitempty"`
	Text     string `json:"text"`
}
