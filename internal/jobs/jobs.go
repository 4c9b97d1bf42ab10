// Package jobs implements the scheduled flows that compose feeds, persona
// prompts, text generation, and the post gatekeeper.
//
// Each run is a single pass: fetch data, build a prompt, generate text,
// truncate, hand it to the gatekeeper. Failures are logged and surfaced to
// the caller; nothing here retries, the next scheduled tick is the retry.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/macrilege/gpt-enduser/internal/feeds"
	"github.com/macrilege/gpt-enduser/internal/journal"
	"github.com/macrilege/gpt-enduser/internal/kv"
	"github.com/macrilege/gpt-enduser/internal/metrics"
	"github.com/macrilege/gpt-enduser/internal/models"
	"github.com/macrilege/gpt-enduser/internal/persona"
	"github.com/macrilege/gpt-enduser/internal/util"
)

const keyMentionsSinceID = "mentions:since_id"

// Flavor names a scheduled post type.
type Flavor string

const (
	FlavorNews    Flavor = "news"
	FlavorMarket  Flavor = "market"
	FlavorWeather Flavor = "weather"
)

// IsValidFlavor reports whether f is a known flavor.
func IsValidFlavor(f Flavor) bool {
	switch f {
	case FlavorNews, FlavorMarket, FlavorWeather:
		return true
	default:
		return false
	}
}

// Generator produces post text from prompts.
type Generator interface {
	GeneratePost(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Gate is the post gatekeeper dependency.
type Gate interface {
	PostMessage(ctx context.Context, text, replyTargetID string) (models.PostResult, error)
	HasReplied(ctx context.Context, targetID string) (bool, error)
}

// MentionSource fetches recent mentions of the bot.
type MentionSource interface {
	Mentions(ctx context.Context, userID, sinceID string) ([]models.Mention, error)
}

// Runner drives the scheduled flows.
type Runner struct {
	store    kv.Store
	feeds    *feeds.Service
	journal  *journal.Journal
	gen      Generator
	gate     Gate
	mentions MentionSource
	userID   string

	mu   sync.Mutex
	next int
	rota []Flavor
}

// NewRunner creates a job runner. userID is the bot's own account id, used
// for the mention pass; it may be empty when replies are disabled.
func NewRunner(store kv.Store, fs *feeds.Service, jr *journal.Journal, gen Generator, gate Gate, mentions MentionSource, userID string) *Runner {
	return &Runner{
		store:    store,
		feeds:    fs,
		journal:  jr,
		gen:      gen,
		gate:     gate,
		mentions: mentions,
		userID:   userID,
		rota:     []Flavor{FlavorNews, FlavorMarket, FlavorWeather},
	}
}

// RunScheduledPost posts the next flavor in the rotation.
func (r *Runner) RunScheduledPost(ctx context.Context) {
	r.mu.Lock()
	flavor := r.rota[r.next%len(r.rota)]
	r.next++
	r.mu.Unlock()

	runID := uuid.NewString()
	slog.Info("Runner.RunScheduledPost: starting", "run_id", runID, "flavor", flavor)
	res, err := r.RunFlavor(ctx, flavor)
	if err != nil {
		slog.Error("Runner.RunScheduledPost: run failed", "run_id", runID, "flavor", flavor, "error", err)
		return
	}
	slog.Info("Runner.RunScheduledPost: finished", "run_id", runID, "flavor", flavor, "ok", res.OK, "errorKind", res.ErrorKind)
}

// RunFlavor generates and posts one message of the given flavor.
func (r *Runner) RunFlavor(ctx context.Context, flavor Flavor) (models.PostResult, error) {
	data, err := r.fetchFlavorData(ctx, flavor)
	if err != nil {
		metrics.RecordPostOutcome("feed-error")
		return models.PostResult{}, err
	}
	jsum, err := r.journal.Summary(ctx)
	if err != nil {
		// A broken journal degrades continuity, not posting.
		slog.Warn("Runner.RunFlavor: journal unavailable", "error", err)
		jsum = ""
	}

	var userPrompt string
	switch flavor {
	case FlavorNews:
		userPrompt = persona.NewsPrompt(data, jsum)
	case FlavorMarket:
		userPrompt = persona.MarketPrompt(data, jsum)
	case FlavorWeather:
		userPrompt = persona.WeatherPrompt(data, jsum)
	default:
		return models.PostResult{}, fmt.Errorf("unknown flavor %q", flavor)
	}

	text, err := r.gen.GeneratePost(ctx, persona.SystemPrompt, userPrompt)
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("error").Inc()
		return models.PostResult{}, fmt.Errorf("generate %s post: %w", flavor, err)
	}
	metrics.GenerationsTotal.WithLabelValues("ok").Inc()

	// Truncate before the gatekeeper so the dedup fingerprint covers the
	// exact bytes that are sent.
	text = util.TruncatePost(text, models.MaxPostLength)

	res, err := r.gate.PostMessage(ctx, text, "")
	metrics.RecordPostOutcome(outcomeLabel(res, err))
	if err != nil {
		return res, err
	}
	if res.OK {
		if jerr := r.journal.Append(ctx, text); jerr != nil {
			slog.Warn("Runner.RunFlavor: failed to journal post", "error", jerr)
		}
	}
	return res, nil
}

// RunMentionPass replies to unhandled mentions since the last pass. Each
// mention gets at most one reply, enforced twice: the cheap HasReplied check
// here, and the reply record inside the gatekeeper.
func (r *Runner) RunMentionPass(ctx context.Context) error {
	if r.userID == "" || r.mentions == nil {
		return nil
	}

	sinceID, _, err := r.store.Get(ctx, keyMentionsSinceID)
	if err != nil {
		return fmt.Errorf("read mention cursor: %w", err)
	}

	mentionList, err := r.mentions.Mentions(ctx, r.userID, sinceID)
	if err != nil {
		return fmt.Errorf("fetch mentions: %w", err)
	}
	if len(mentionList) == 0 {
		return nil
	}

	jsum, err := r.journal.Summary(ctx)
	if err != nil {
		jsum = ""
	}

	for _, mention := range mentionList {
		handled, err := r.gate.HasReplied(ctx, mention.ID)
		if err != nil {
			slog.Error("Runner.RunMentionPass: reply check failed", "mention", mention.ID, "error", err)
			continue
		}
		if handled {
			continue
		}

		text, err := r.gen.GeneratePost(ctx, persona.ReplySystemPrompt, persona.ReplyPrompt(mention.Text, jsum))
		if err != nil {
			metrics.GenerationsTotal.WithLabelValues("error").Inc()
			slog.Error("Runner.RunMentionPass: generation failed", "mention", mention.ID, "error", err)
			continue
		}
		metrics.GenerationsTotal.WithLabelValues("ok").Inc()
		text = util.TruncatePost(text, models.MaxPostLength)

		res, err := r.gate.PostMessage(ctx, text, mention.ID)
		metrics.RecordPostOutcome(outcomeLabel(res, err))
		if err != nil {
			slog.Error("Runner.RunMentionPass: post failed", "mention", mention.ID, "error", err)
			continue
		}
		if !res.OK {
			slog.Warn("Runner.RunMentionPass: reply not sent", "mention", mention.ID, "errorKind", res.ErrorKind)
		}
	}

	// Mentions arrive newest first; the head is the new cursor.
	if err := r.store.Put(ctx, keyMentionsSinceID, mentionList[0].ID, 0); err != nil {
		slog.Warn("Runner.RunMentionPass: failed to advance cursor", "error", err)
	}
	return nil
}

// RunJournalRefresh distills the recent posts into a one-line mood entry.
func (r *Runner) RunJournalRefresh(ctx context.Context) error {
	jsum, err := r.journal.Summary(ctx)
	if err != nil {
		return err
	}
	if jsum == "" {
		return nil
	}
	entry, err := r.gen.GeneratePost(ctx, persona.SystemPrompt, persona.JournalPrompt(jsum))
	if err != nil {
		return fmt.Errorf("generate journal entry: %w", err)
	}
	return r.journal.Append(ctx, entry)
}

func (r *Runner) fetchFlavorData(ctx context.Context, flavor Flavor) (string, error) {
	switch flavor {
	case FlavorNews:
		return r.feeds.News(ctx)
	case FlavorMarket:
		return r.feeds.Crypto(ctx)
	case FlavorWeather:
		return r.feeds.Weather(ctx)
	default:
		return "", fmt.Errorf("unknown flavor %q", flavor)
	}
}

func outcomeLabel(res models.PostResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case res.OK:
		return "posted"
	case res.ErrorKind != "":
		return string(res.ErrorKind)
	default:
		return "unknown"
	}
}
