package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/macrilege/gpt-enduser/internal/api"
	"github.com/macrilege/gpt-enduser/internal/genai"
	"github.com/macrilege/gpt-enduser/internal/kv"
	"github.com/macrilege/gpt-enduser/internal/lockfile"
	"github.com/macrilege/gpt-enduser/internal/oauth1"
	"github.com/macrilege/gpt-enduser/internal/post"
	"github.com/macrilege/gpt-enduser/internal/twitter"
	"github.com/macrilege/gpt-enduser/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for gpt-enduser state data
	DefaultStateDir = "/var/lib/gpt-enduser"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "gpt-enduser.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// A file-backed or in-memory store only enforces the posting policy
	// within one process, so hold an exclusive lock on the state directory.
	dsnType := kv.DetectDSNType(*flags.dbDSN)
	if dsnType == "memory" || dsnType == "sqlite" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Another instance appears to be running", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	kvOpts := buildStoreOptions(flags)
	twOpts := buildTwitterOptions(config, flags)
	genaiOpts := buildGenAIOptions(flags)
	gateOpts := buildGateOptions(config)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping gpt-enduser with configured modules")
	slog.Debug("Module options counts", "kv", len(kvOpts), "twitter", len(twOpts), "genai", len(genaiOpts), "gate", len(gateOpts), "api", len(apiOpts))
	if err := api.Run(kvOpts, twOpts, genaiOpts, gateOpts, apiOpts); err != nil {
		slog.Error("gpt-enduser failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("gpt-enduser exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	OpenAIKey      string
	OpenAIModel    string
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
	BotUserID      string
	APIAddr        string
	PostCron       string
	MentionCron    string
	JournalCron    string
	MinInterval    time.Duration
	DedupTTL       time.Duration
	ReplyTTL       time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	botUserID   *string
	apiAddr     *string
	postCron    *string
	mentionCron *string
	journalCron *string
	baseURL     *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:       os.Getenv("STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		ConsumerKey:    os.Getenv("TWITTER_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("TWITTER_CONSUMER_SECRET"),
		AccessToken:    os.Getenv("TWITTER_ACCESS_TOKEN"),
		AccessSecret:   os.Getenv("TWITTER_ACCESS_SECRET"),
		BotUserID:      os.Getenv("BOT_USER_ID"),
		APIAddr:        os.Getenv("API_ADDR"),
		PostCron:       os.Getenv("POST_SCHEDULE"),
		MentionCron:    os.Getenv("MENTION_SCHEDULE"),
		JournalCron:    os.Getenv("JOURNAL_SCHEDULE"),
		MinInterval:    util.ParseDurationEnv("MIN_POST_INTERVAL", 0),
		DedupTTL:       util.ParseDurationEnv("DEDUP_TTL", 0),
		ReplyTTL:       util.ParseDurationEnv("REPLY_TTL", 0),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWITTER_CREDS_SET", config.ConsumerKey != "" && config.AccessToken != "",
		"BOT_USER_ID", config.BotUserID,
		"API_ADDR", config.APIAddr,
		"POST_SCHEDULE", config.PostCron,
		"MENTION_SCHEDULE", config.MentionCron,
		"JOURNAL_SCHEDULE", config.JournalCron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for gpt-enduser data (overrides $STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "KV store DSN: redis://, postgres://, or a SQLite path (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI model name (overrides $OPENAI_MODEL)"),
		botUserID:   flag.String("bot-user-id", config.BotUserID, "bot account id, enables the mention pass (overrides $BOT_USER_ID)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		postCron:    flag.String("post-cron", config.PostCron, "cron schedule for generated posts (overrides $POST_SCHEDULE)"),
		mentionCron: flag.String("mention-cron", config.MentionCron, "cron schedule for the mention pass (overrides $MENTION_SCHEDULE)"),
		journalCron: flag.String("journal-cron", config.JournalCron, "cron schedule for the journal refresh (overrides $JOURNAL_SCHEDULE)"),
		baseURL:     flag.String("api-base-url", "", "override the social platform base URL, for testing against a stub"),
	}

	flag.Parse()

	// Follow the state directory when the default SQLite path is in use
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"botUserID", *flags.botUserID,
		"apiAddr", *flags.apiAddr,
		"postCron", *flags.postCron,
		"mentionCron", *flags.mentionCron,
		"journalCron", *flags.journalCron)

	return flags
}

// buildStoreOptions constructs KV store configuration options
func buildStoreOptions(flags Flags) []kv.Option {
	var kvOpts []kv.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring KV store from DSN", "dsn_type", kv.DetectDSNType(*flags.dbDSN))
		kvOpts = append(kvOpts, kv.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return kvOpts
}

// buildTwitterOptions constructs poster configuration options
func buildTwitterOptions(config Config, flags Flags) []twitter.Option {
	twOpts := []twitter.Option{twitter.WithCredentials(oauth1.Credentials{
		ConsumerKey:    config.ConsumerKey,
		ConsumerSecret: config.ConsumerSecret,
		AccessToken:    config.AccessToken,
		AccessSecret:   config.AccessSecret,
	})}
	if *flags.baseURL != "" {
		twOpts = append(twOpts, twitter.WithBaseURL(*flags.baseURL))
	}
	return twOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildGateOptions constructs posting-policy configuration options
func buildGateOptions(config Config) []post.Option {
	var gateOpts []post.Option
	if config.MinInterval > 0 {
		gateOpts = append(gateOpts, post.WithMinInterval(config.MinInterval))
	}
	if config.DedupTTL > 0 {
		gateOpts = append(gateOpts, post.WithDedupTTL(config.DedupTTL))
	}
	if config.ReplyTTL > 0 {
		gateOpts = append(gateOpts, post.WithReplyTTL(config.ReplyTTL))
	}
	return gateOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.postCron != "" {
		apiOpts = append(apiOpts, api.WithPostCron(*flags.postCron))
	}
	if *flags.mentionCron != "" {
		apiOpts = append(apiOpts, api.WithMentionCron(*flags.mentionCron))
	}
	if *flags.journalCron != "" {
		apiOpts = append(apiOpts, api.WithJournalCron(*flags.journalCron))
	}
	if *flags.botUserID != "" {
		apiOpts = append(apiOpts, api.WithBotUserID(*flags.botUserID))
	}
	return apiOpts
}
