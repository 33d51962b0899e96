package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/Hamraz/internal/api"
	"github.com/BTreeMap/Hamraz/internal/classify"
	"github.com/BTreeMap/Hamraz/internal/exercise"
	"github.com/BTreeMap/Hamraz/internal/flow"
	"github.com/BTreeMap/Hamraz/internal/genai"
	"github.com/BTreeMap/Hamraz/internal/store"
	"github.com/BTreeMap/Hamraz/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Hamraz state data
	DefaultStateDir = "/var/lib/hamraz"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "hamraz.db"
	// DefaultDrainDelaySeconds is how long to wait after a turn before
	// answering messages that queued up during it
	DefaultDrainDelaySeconds = 2
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey), genai.WithModel(*flags.openaiModel))
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	catalog, err := exercise.LoadCatalog()
	if err != nil {
		slog.Error("Failed to load exercise catalog", "error", err)
		os.Exit(1)
	}

	timer := flow.NewSimpleTimer()
	defer timer.Stop()

	orchestrator := flow.NewOrchestrator(
		st,
		genaiClient,
		classify.NewGenAIClassifier(genaiClient),
		exercise.NewGenAISuggestor(genaiClient),
		catalog,
		timer,
		flow.WithDrainDelay(time.Duration(config.DrainDelaySeconds)*time.Second),
	)

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, orchestrator, apiOpts...)

	slog.Info("Bootstrapping Hamraz with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "db_driver", *flags.dbDriver, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("Hamraz failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Hamraz exited successfully")
}

// Config holds environment configuration
type Config struct {
	DbDriver          string
	DatabaseURL       string
	StateDir          string
	OpenAIKey         string
	OpenAIModel       string
	APIAddr           string
	DrainDelaySeconds int
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDriver    *string
	dbDSN       *string
	openaiKey   *string
	openaiModel *string
	apiAddr     *string
}

// initializeLogger sets up structured logging. HAMRAZ_DEBUG=true lowers
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("HAMRAZ_DEBUG", false) {
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
		DbDriver:          os.Getenv("HAMRAZ_DB_DRIVER"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StateDir:          util.GetenvDefault("HAMRAZ_STATE_DIR", DefaultStateDir),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		APIAddr:           os.Getenv("API_ADDR"),
		DrainDelaySeconds: util.ParseIntEnv("HAMRAZ_DRAIN_DELAY_SECONDS", DefaultDrainDelaySeconds),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"HAMRAZ_DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"HAMRAZ_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"HAMRAZ_DRAIN_DELAY_SECONDS", config.DrainDelaySeconds)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for Hamraz data (overrides $HAMRAZ_STATE_DIR)"),
		dbDriver:    flag.String("db-driver", config.DbDriver, "database driver: sqlite3 or postgres (overrides $HAMRAZ_DB_DRIVER)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel: flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	return flags
}

// buildStore selects the storage backend from the driver flag, inferring
// Postgres from the DSN scheme when no driver is set.
func buildStore(flags Flags) (store.Store, error) {
	driver := *flags.dbDriver
	dsn := *flags.dbDSN
	if driver == "" {
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			driver = "postgres"
		} else {
			driver = "sqlite3"
		}
		slog.Debug("No db driver set, inferred from DSN", "driver", driver)
	}

	switch driver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(dsn))
	case "sqlite3", "sqlite":
		return store.NewSQLiteStore(store.WithDSN(dsn))
	default:
		slog.Warn("Unknown db driver, falling back to SQLite", "driver", driver)
		return store.NewSQLiteStore(store.WithDSN(dsn))
	}
}
