package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/policy"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	repository string
	project    string
	database   string
	bucket     string

	userID   string
	logLevel string
	settings string

	// Adapters
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Line source
	sourceURL    string
	sourceFile   string
	pollInterval time.Duration
	policyDir    string
}

const (
	repositoryFirestore = "firestore"
	repositoryMemory    = "memory"
)

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Repository backend (firestore, memory)",
			Value:       repositoryFirestore,
			Sources:     cli.EnvVars("LECTERN_REPOSITORY"),
			Destination: &cfg.repository,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket to archive conversation entries",
			Sources:     cli.EnvVars("LECTERN_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID owning saved conversations and notes",
			Sources:     cli.EnvVars("LECTERN_USER_ID"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LECTERN_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "settings",
			Aliases:     []string{"s"},
			Usage:       "Path to YAML settings file",
			Sources:     cli.EnvVars("LECTERN_SETTINGS"),
			Destination: &cfg.settings,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key. Vertex AI is used when empty",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// sourceFlags returns flags for the transcription line source
func sourceFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "source-url",
			Usage:       "Base URL of the transcription server",
			Sources:     cli.EnvVars("LECTERN_SOURCE_URL"),
			Destination: &cfg.sourceURL,
		},
		&cli.StringFlag{
			Name:        "source-file",
			Usage:       "Replay transcribed lines from a text file",
			Sources:     cli.EnvVars("LECTERN_SOURCE_FILE"),
			Destination: &cfg.sourceFile,
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "Interval between line source polls",
			Value:       2 * time.Second,
			Sources:     cli.EnvVars("LECTERN_POLL_INTERVAL"),
			Destination: &cfg.pollInterval,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego line admission policies",
			Sources:     cli.EnvVars("LECTERN_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	slog.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a new repository instance
func (cfg *config) newRepository() (repository.Repository, error) {
	switch cfg.repository {
	case repositoryMemory:
		return repository.NewMemory(), nil
	case repositoryFirestore, "":
	default:
		return nil, goerr.New("unknown repository backend", goerr.V("repository", cfg.repository))
	}

	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiAPIKey == "" {
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-api-key or gemini-project is required")
		}
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
	}

	gemini, err := adapter.NewGemini(ctx, adapter.GeminiConfig{
		APIKey:   cfg.geminiAPIKey,
		Project:  cfg.geminiProject,
		Location: cfg.geminiLocation,
	}, adapter.WithGenerativeModel(cfg.geminiModel))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newStorage creates a new Storage adapter instance. It returns nil when no
// bucket is configured.
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newLineSource creates the configured line source
func (cfg *config) newLineSource() (adapter.LineSource, error) {
	switch {
	case cfg.sourceURL != "" && cfg.sourceFile != "":
		return nil, goerr.New("source-url and source-file are exclusive")
	case cfg.sourceURL != "":
		return adapter.NewHTTPSource(cfg.sourceURL), nil
	case cfg.sourceFile != "":
		return adapter.NewFileSource(cfg.sourceFile), nil
	default:
		return nil, goerr.New("source-url or source-file is required")
	}
}

// newLineFilter loads the Rego line policy, if any
func (cfg *config) newLineFilter(ctx context.Context) (*policy.LineFilter, error) {
	filter, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load line policy")
	}
	return filter, nil
}
