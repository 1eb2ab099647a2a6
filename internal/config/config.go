// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/environment"
)

// Config holds application configuration
type Config struct {
	DataDir   string
	Port      int
	DevMode   bool
	LogLevel  string
	LogPretty bool

	Agent       AgentConfig
	Environment environment.Spec
	Backend     BackendConfig
	Training    TrainingConfig
	Archive     ArchiveConfig
}

// AgentConfig holds the default hyperparameters for new runs
type AgentConfig struct {
	K             float64
	Alpha         float64
	Gamma         float64
	Eps           float64
	MaxEpochs     int
	MaxSteps      int
	OutOfRange    string
	MaxResamples  int
	ProgressEvery int
}

// BackendConfig configures the simulator backend and its retry wrapper
type BackendConfig struct {
	Seed         uint64
	Retries      int
	RetryBackoff time.Duration
}

// TrainingConfig controls when runs are started without an API request
type TrainingConfig struct {
	Schedule            string // cron expression with seconds, empty disables
	OnStart             bool
	MaintenanceSchedule string
}

// ArchiveConfig configures uploading finished runs to S3-compatible storage
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string

	RetentionDays    int // 0 keeps archives forever
	Keep             int // newest archives never rotated away
	RotationSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("GROVERQ_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	defaults := agent.DefaultHyperparameters()
	env := environment.DefaultSpec()

	cfg := &Config{
		DataDir:   dataDir,
		Port:      getEnvAsInt("GO_PORT", 8001),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Agent: AgentConfig{
			K:             getEnvAsFloat("AGENT_K", defaults.K),
			Alpha:         getEnvAsFloat("AGENT_ALPHA", defaults.Alpha),
			Gamma:         getEnvAsFloat("AGENT_GAMMA", defaults.Gamma),
			Eps:           getEnvAsFloat("AGENT_EPS", defaults.Eps),
			MaxEpochs:     getEnvAsInt("AGENT_MAX_EPOCHS", defaults.MaxEpochs),
			MaxSteps:      getEnvAsInt("AGENT_MAX_STEPS", defaults.MaxSteps),
			OutOfRange:    getEnv("AGENT_OUT_OF_RANGE", string(defaults.OutOfRange)),
			MaxResamples:  getEnvAsInt("AGENT_MAX_RESAMPLES", defaults.MaxResamples),
			ProgressEvery: getEnvAsInt("AGENT_PROGRESS_EVERY", defaults.ProgressEvery),
		},
		Environment: environment.Spec{
			Kind:        environment.Kind(getEnv("ENV_KIND", string(env.Kind))),
			Map:         getEnv("ENV_MAP", env.Map),
			ChainLength: getEnvAsInt("ENV_CHAIN_LENGTH", env.ChainLength),
		},
		Backend: BackendConfig{
			Seed:         getEnvAsUint64("BACKEND_SEED", 42),
			Retries:      getEnvAsInt("BACKEND_RETRIES", 3),
			RetryBackoff: time.Duration(getEnvAsInt("BACKEND_RETRY_BACKOFF_MS", 50)) * time.Millisecond,
		},
		Training: TrainingConfig{
			Schedule: getEnv("TRAIN_SCHEDULE", ""),
			OnStart:  getEnvAsBool("TRAIN_ON_START", false),

			MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		},
		Archive: ArchiveConfig{
			Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Region:    getEnv("ARCHIVE_REGION", "auto"),

			RetentionDays:    getEnvAsInt("ARCHIVE_RETENTION_DAYS", 30),
			Keep:             getEnvAsInt("ARCHIVE_KEEP", 10),
			RotationSchedule: getEnv("ARCHIVE_ROTATION_SCHEDULE", "0 30 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Hyperparameters converts the agent section into training hyperparameters.
func (c *Config) Hyperparameters() agent.Hyperparameters {
	return agent.Hyperparameters{
		K:             c.Agent.K,
		Alpha:         c.Agent.Alpha,
		Gamma:         c.Agent.Gamma,
		Eps:           c.Agent.Eps,
		MaxEpochs:     c.Agent.MaxEpochs,
		MaxSteps:      c.Agent.MaxSteps,
		OutOfRange:    agent.OutOfRangePolicy(c.Agent.OutOfRange),
		MaxResamples:  c.Agent.MaxResamples,
		ProgressEvery: c.Agent.ProgressEvery,
	}
}

// EnvironmentSpec returns the default environment for new runs.
func (c *Config) EnvironmentSpec() environment.Spec {
	return c.Environment
}

// DatabasePath returns the runs database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be in 1..65535, got %d", c.Port)
	}
	if err := c.Hyperparameters().Validate(); err != nil {
		return fmt.Errorf("invalid agent configuration: %w", err)
	}
	if err := c.Environment.Validate(); err != nil {
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	if c.Backend.Retries < 1 {
		return fmt.Errorf("BACKEND_RETRIES must be at least 1, got %d", c.Backend.Retries)
	}
	if c.Backend.RetryBackoff < 0 {
		return fmt.Errorf("BACKEND_RETRY_BACKOFF_MS must not be negative")
	}
	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" || c.Archive.Bucket == "" {
			return fmt.Errorf("ARCHIVE_ENDPOINT and ARCHIVE_BUCKET are required when archiving is enabled")
		}
		if c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return fmt.Errorf("ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY are required when archiving is enabled")
		}
		if c.Archive.RetentionDays < 0 || c.Archive.Keep < 0 {
			return fmt.Errorf("ARCHIVE_RETENTION_DAYS and ARCHIVE_KEEP must not be negative")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
