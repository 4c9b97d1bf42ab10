// Package post implements the post gatekeeper.
//
// The gatekeeper wraps the signed poster with two independent safety
// policies: a global minimum-interval rate limit for original posts, and
// content-fingerprint deduplication. All of its state lives in the shared
// key-value store so independent stateless invocations coordinate through it.
package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/macrilege/gpt-enduser/internal/kv"
	"github.com/macrilege/gpt-enduser/internal/models"
	"github.com/macrilege/gpt-enduser/internal/util"
)

// Store key scheme.
const (
	keyLastPostAt    = "post:last_at"
	keyDedupPrefix   = "post:dedup:"
	keyRepliedPrefix = "post:replied:"
)

// Policy defaults, overridable via options.
const (
	// DefaultMinInterval is the minimum spacing between successful original
	// posts. Replies are exempt so the bot stays responsive to mentions.
	DefaultMinInterval = 30 * time.Minute
	// DefaultDedupTTL is how long a content fingerprint blocks identical
	// text. Long enough to catch a re-triggered job, short enough that
	// reposting similar content tomorrow is not blocked.
	DefaultDedupTTL = 6 * time.Hour
	// DefaultReplyTTL is how long a reply record guarantees at-most-once
	// reply semantics per mention.
	DefaultReplyTTL = 7 * 24 * time.Hour
)

// Poster is the signed-poster dependency. It makes exactly one network call
// and never touches the store.
type Poster interface {
	Post(ctx context.Context, text, replyTargetID string) models.PostResult
}

// Opts holds gatekeeper configuration.
type Opts struct {
	MinInterval time.Duration
	DedupTTL    time.Duration
	ReplyTTL    time.Duration
}

// Option configures the gatekeeper.
type Option func(*Opts)

// WithMinInterval overrides the minimum interval between original posts.
func WithMinInterval(d time.Duration) Option {
	return func(o *Opts) { o.MinInterval = d }
}

// WithDedupTTL overrides the duplicate guard retention window.
func WithDedupTTL(d time.Duration) Option {
	return func(o *Opts) { o.DedupTTL = d }
}

// WithReplyTTL overrides the reply record retention window.
func WithReplyTTL(d time.Duration) Option {
	return func(o *Opts) { o.ReplyTTL = d }
}

// Gatekeeper enforces posting policy around a Poster.
type Gatekeeper struct {
	store       kv.Store
	poster      Poster
	minInterval time.Duration
	dedupTTL    time.Duration
	replyTTL    time.Duration
	now         func() time.Time
}

// NewGatekeeper creates a gatekeeper over the given store and poster.
func NewGatekeeper(store kv.Store, poster Poster, opts ...Option) *Gatekeeper {
	cfg := Opts{
		MinInterval: DefaultMinInterval,
		DedupTTL:    DefaultDedupTTL,
		ReplyTTL:    DefaultReplyTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Gatekeeper{
		store:       store,
		poster:      poster,
		minInterval: cfg.MinInterval,
		dedupTTL:    cfg.DedupTTL,
		replyTTL:    cfg.ReplyTTL,
		now:         time.Now,
	}
}

// PostMessage runs one attempt through the policy pipeline: rate check (for
// original posts), dedup check-and-claim, send, bookkeeping. Policy and
// upstream outcomes come back in the result; the error covers caller mistakes
// (empty or oversized text) and store I/O failures.
//
// A failed send deliberately leaves the dedup entry in place: blocking a
// short-term retry is the accepted cost of never double-posting when the
// platform accepted the post but returned a malformed response.
func (g *Gatekeeper) PostMessage(ctx context.Context, text, replyTargetID string) (models.PostResult, error) {
	msg := models.OutboundMessage{Text: text, ReplyTargetID: replyTargetID}
	if err := msg.Validate(); err != nil {
		return models.PostResult{}, err
	}

	isReply := msg.IsReply()
	now := g.now()

	if !isReply {
		last, ok, err := g.lastPostAt(ctx)
		if err != nil {
			return models.PostResult{}, err
		}
		if ok {
			elapsed := now.Sub(last)
			if elapsed < g.minInterval {
				remaining := (g.minInterval - elapsed).Round(time.Second)
				slog.Info("Gatekeeper.PostMessage: rate limited", "remaining", remaining)
				return models.PostResult{
					OK:        false,
					ErrorKind: models.ErrorKindRateLimited,
					Detail:    fmt.Sprintf("rate limited: next post allowed in %s", remaining),
				}, nil
			}
		}
	} else {
		replied, err := g.HasReplied(ctx, replyTargetID)
		if err != nil {
			return models.PostResult{}, err
		}
		if replied {
			slog.Info("Gatekeeper.PostMessage: reply target already handled", "target", replyTargetID)
			return models.PostResult{
				OK:        false,
				ErrorKind: models.ErrorKindDuplicate,
				Detail:    "reply target already handled",
			}, nil
		}
	}

	// Claim the dedup slot before the network call. The conditional put
	// closes the window where two near-simultaneous attempts both pass a
	// read-then-write check; a lost race reports duplicate.
	fingerprint := util.Fingerprint(text)
	claimed, err := g.store.PutIfAbsent(ctx, keyDedupPrefix+fingerprint, now.Format(time.RFC3339Nano), g.dedupTTL)
	if err != nil {
		return models.PostResult{}, fmt.Errorf("claim dedup entry: %w", err)
	}
	if !claimed {
		slog.Info("Gatekeeper.PostMessage: duplicate text", "fingerprint", fingerprint)
		return models.PostResult{
			OK:        false,
			ErrorKind: models.ErrorKindDuplicate,
			Detail:    "identical text was posted recently",
		}, nil
	}

	result := g.poster.Post(ctx, text, replyTargetID)
	if !result.OK {
		// The dedup entry stays; see the method comment.
		slog.Warn("Gatekeeper.PostMessage: send failed", "errorKind", result.ErrorKind, "status", result.StatusCode)
		return result, nil
	}

	if isReply {
		if err := g.store.Put(ctx, keyRepliedPrefix+replyTargetID, now.Format(time.RFC3339Nano), g.replyTTL); err != nil {
			slog.Error("Gatekeeper.PostMessage: failed to record reply", "target", replyTargetID, "error", err)
			return result, fmt.Errorf("record reply: %w", err)
		}
	} else {
		if err := g.store.Put(ctx, keyLastPostAt, now.Format(time.RFC3339Nano), 0); err != nil {
			slog.Error("Gatekeeper.PostMessage: failed to record post time", "error", err)
			return result, fmt.Errorf("record post time: %w", err)
		}
	}
	slog.Info("Gatekeeper.PostMessage: posted", "reply", isReply, "fingerprint", fingerprint)
	return result, nil
}

// HasReplied reports whether a reply record exists for targetID, so the
// mention job can skip already-handled mentions before generating text.
func (g *Gatekeeper) HasReplied(ctx context.Context, targetID string) (bool, error) {
	_, ok, err := g.store.Get(ctx, keyRepliedPrefix+targetID)
	if err != nil {
		return false, fmt.Errorf("read reply record: %w", err)
	}
	return ok, nil
}

// LastPostAt returns the timestamp of the last successful original post, if any.
func (g *Gatekeeper) LastPostAt(ctx context.Context) (time.Time, bool, error) {
	return g.lastPostAt(ctx)
}

func (g *Gatekeeper) lastPostAt(ctx context.Context) (time.Time, bool, error) {
	val, ok, err := g.store.Get(ctx, keyLastPostAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read rate limit state: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// A corrupt marker must not wedge posting forever; treat as absent.
		slog.Warn("Gatekeeper.lastPostAt: corrupt rate limit state, ignoring", "value", val, "error", err)
		return time.Time{}, false, nil
	}
	return ts, true, nil
}
