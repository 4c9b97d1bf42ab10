// Package api provides HTTP handlers and the main server logic for gpt-enduser.
//
// It exposes endpoints for manual post triggers, generated posts, status, and
// the admin dashboard, and assembles the store, poster, gatekeeper, feed,
// and scheduler modules into the running service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/macrilege/gpt-enduser/internal/feeds"
	"github.com/macrilege/gpt-enduser/internal/genai"
	"github.com/macrilege/gpt-enduser/internal/jobs"
	"github.com/macrilege/gpt-enduser/internal/journal"
	"github.com/macrilege/gpt-enduser/internal/kv"
	"github.com/macrilege/gpt-enduser/internal/metrics"
	"github.com/macrilege/gpt-enduser/internal/post"
	"github.com/macrilege/gpt-enduser/internal/scheduler"
	"github.com/macrilege/gpt-enduser/internal/twitter"
)

// Default server configuration.
const (
	DefaultAddr        = ":8080"
	DefaultPostCron    = "0 * * * *"    // hourly; the gatekeeper enforces spacing
	DefaultMentionCron = "*/5 * * * *"  // every five minutes
	DefaultJournalCron = "30 23 * * *"  // nightly
	shutdownTimeout    = 10 * time.Second
)

// Opts holds API server configuration.
type Opts struct {
	Addr        string
	PostCron    string
	MentionCron string
	JournalCron string
	BotUserID   string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPostCron sets the scheduled-post cron expression.
func WithPostCron(expr string) Option {
	return func(o *Opts) { o.PostCron = expr }
}

// WithMentionCron sets the mention-pass cron expression.
func WithMentionCron(expr string) Option {
	return func(o *Opts) { o.MentionCron = expr }
}

// WithJournalCron sets the journal-refresh cron expression.
func WithJournalCron(expr string) Option {
	return func(o *Opts) { o.JournalCron = expr }
}

// WithBotUserID sets the bot's own account id, enabling the mention pass.
func WithBotUserID(id string) Option {
	return func(o *Opts) { o.BotUserID = id }
}

// Server holds the HTTP surface and its dependencies.
type Server struct {
	router  *mux.Router
	gate    *post.Gatekeeper
	runner  *jobs.Runner
	journal *journal.Journal
	addr    string
}

// NewServer creates a server over already-constructed dependencies. Route
// registration happens here; Run wires dependencies and calls this.
func NewServer(gate *post.Gatekeeper, runner *jobs.Runner, jr *journal.Journal, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		router:  mux.NewRouter(),
		gate:    gate,
		runner:  runner,
		journal: jr,
		addr:    cfg.Addr,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/post", s.postHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/generate", s.generateHandler).Methods(http.MethodPost)
	s.router.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/admin", s.adminHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run assembles all modules from the provided options and serves until the
// process receives SIGINT or SIGTERM.
func Run(kvOpts []kv.Option, twOpts []twitter.Option, genaiOpts []genai.Option, gateOpts []post.Option, apiOpts []Option) error {
	store, err := kv.Open(kvOpts...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	poster, err := twitter.NewClient(twOpts...)
	if err != nil {
		return fmt.Errorf("create poster: %w", err)
	}

	gen, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("create genai client: %w", err)
	}

	gate := post.NewGatekeeper(store, poster, gateOpts...)
	jr := journal.New(store)
	feedSvc := feeds.NewService(store)

	var cfg Opts
	cfg.Addr = DefaultAddr
	cfg.PostCron = DefaultPostCron
	cfg.MentionCron = DefaultMentionCron
	cfg.JournalCron = DefaultJournalCron
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	runner := jobs.NewRunner(store, feedSvc, jr, gen, gate, poster, cfg.BotUserID)

	sched := scheduler.NewScheduler()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.AddJob(cfg.PostCron, func() { runner.RunScheduledPost(ctx) }); err != nil {
		return fmt.Errorf("schedule posts: %w", err)
	}
	if cfg.BotUserID != "" {
		if err := sched.AddJob(cfg.MentionCron, func() {
			if err := runner.RunMentionPass(ctx); err != nil {
				slog.Error("Run: mention pass failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule mention pass: %w", err)
		}
	}
	if err := sched.AddJob(cfg.JournalCron, func() {
		if err := runner.RunJournalRefresh(ctx); err != nil {
			slog.Error("Run: journal refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule journal refresh: %w", err)
	}

	server := NewServer(gate, runner, jr, apiOpts...)
	httpServer := &http.Server{
		Addr:         server.addr,
		Handler:      server.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Run: API listening", "addr", server.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
