package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oumacare/ancare/internal/api"
	"github.com/oumacare/ancare/internal/genai"
	"github.com/oumacare/ancare/internal/messaging"
	"github.com/oumacare/ancare/internal/reminder"
	"github.com/oumacare/ancare/internal/session"
	"github.com/oumacare/ancare/internal/store"
	"github.com/oumacare/ancare/internal/util"
)

// Default configuration constants
const (
	// AppName is the application namespace sessions are stored under.
	AppName = "pregnancy_companion"
	// DefaultStateDir is the default directory for ancare state data
	DefaultStateDir = "/var/lib/ancare"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "ancare.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("ancare failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ancare exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir     string
	DatabaseDSN  string
	OpenAIKey    string
	ScheduleTime string
	TestMode     bool
	RecordsFile  string
	Channel      string
	APIAddr      string
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	scheduleTime *string
	testMode     *bool
	recordsFile  *string
	channel      *string
	apiAddr      *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("ANCARE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		StateDir:     util.GetenvDefault("ANCARE_STATE_DIR", DefaultStateDir),
		DatabaseDSN:  os.Getenv("DATABASE_URL"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		ScheduleTime: util.GetenvDefault("ANC_SCHEDULE_TIME", reminder.DefaultScheduleTime),
		TestMode:     util.ParseBoolEnv("ANC_TEST_MODE", false),
		RecordsFile:  os.Getenv("ANC_RECORDS_FILE"),
		Channel:      util.GetenvDefault("ANC_REMINDER_CHANNEL", "session"),
		APIAddr:      util.GetenvDefault("API_ADDR", api.DefaultAddr),
	}

	// Default to SQLite in the state directory when no DSN is provided.
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("no database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"ANCARE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"ANC_SCHEDULE_TIME", config.ScheduleTime,
		"ANC_TEST_MODE", config.TestMode,
		"ANC_RECORDS_FILE", config.RecordsFile,
		"ANC_REMINDER_CHANNEL", config.Channel,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for ancare data (overrides $ANCARE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseDSN, "database DSN: SQLite file path or Postgres URL (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		scheduleTime: flag.String("schedule-time", config.ScheduleTime, "daily reminder check time, HH:MM 24-hour (overrides $ANC_SCHEDULE_TIME)"),
		testMode:     flag.Bool("test-mode", config.TestMode, "run reminder checks every minute instead of daily (overrides $ANC_TEST_MODE)"),
		recordsFile:  flag.String("records-file", config.RecordsFile, "JSON file of pregnancy records (overrides $ANC_RECORDS_FILE)"),
		channel:      flag.String("reminder-channel", config.Channel, "reminder delivery channel: session, sms or log (overrides $ANC_REMINDER_CHANNEL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "stats surface listen address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"scheduleTime", *flags.scheduleTime,
		"testMode", *flags.testMode,
		"recordsFile", *flags.recordsFile,
		"channel", *flags.channel,
		"apiAddr", *flags.apiAddr)

	return flags
}

// buildRepo selects the storage backend from the DSN.
func buildRepo(dsn string) (store.SessionRepo, store.ReminderDedupRepo, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("detected PostgreSQL DSN", "dsn_set", true)
		pg, err := store.NewPostgresStore(store.WithPostgresDSN(dsn))
		if err != nil {
			return nil, nil, err
		}
		return pg, pg, nil
	}
	slog.Debug("detected SQLite DSN", "db_path", dsn)
	sq, err := store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	if err != nil {
		return nil, nil, err
	}
	return sq, sq, nil
}

// buildHandler selects the reminder delivery channel.
func buildHandler(channel string, coordinator *session.Coordinator) (reminder.Handler, error) {
	switch channel {
	case "session", "":
		return coordinator, nil
	case "sms":
		sms, err := messaging.NewTwilioSMS()
		if err != nil {
			return nil, err
		}
		return messaging.NewSMSHandler(sms), nil
	case "log":
		return reminder.LogHandler{}, nil
	default:
		slog.Warn("unknown reminder channel, falling back to log only", "channel", channel)
		return reminder.LogHandler{}, nil
	}
}

func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, dedup, err := buildRepo(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("failed to close store", "error", closeErr)
		}
	}()

	memory := store.NewMemoryService(AppName, repo)
	if err := memory.Load(); err != nil {
		return err
	}

	runtime, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		return err
	}
	coordinator := session.NewCoordinator(memory, runtime)

	handler, err := buildHandler(*flags.channel, coordinator)
	if err != nil {
		return err
	}

	var source reminder.RecordSource
	if *flags.recordsFile != "" {
		source = reminder.FileSource{Path: *flags.recordsFile}
	} else {
		slog.Warn("no records file configured, scheduler will check an empty record set")
		source = reminder.StaticSource(nil)
	}

	checker := reminder.NewChecker(source, handler, reminder.WithDedup(dedup, reminder.DefaultDedupCooldown))
	scheduler := reminder.NewWakeScheduler(checker,
		reminder.WithScheduleTime(*flags.scheduleTime),
		reminder.WithTestMode(*flags.testMode),
	)

	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() {
		if stopErr := scheduler.Stop(); stopErr != nil {
			slog.Error("failed to stop scheduler", "error", stopErr)
		}
	}()

	statsServer := api.NewServer(scheduler, memory, api.WithAddr(*flags.apiAddr))
	return statsServer.Run(ctx)
}
