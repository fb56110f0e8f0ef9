package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds every process-wide setting. It is loaded once at startup
// and passed by reference into each component constructor.
type Config struct {
	GitHub   GitHubConfig
	LLM      LLMConfig
	Server   ServerConfig
	Storage  StorageConfig
	Notifier NotifierConfig
	Deploy   DeployConfig
	Log      LogConfig
}

type GitHubConfig struct {
	Token    string
	Username string
}

type LLMConfig struct {
	GroqAPIKey   string
	GeminiAPIKey string
}

type ServerConfig struct {
	Port         int
	Secret       string
	QueueWorkers int
	QueueBuffer  int
}

type StorageConfig struct {
	StorePath      string
	AttachmentsDir string
}

type NotifierConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
}

type DeployConfig struct {
	PollAttempts int
	PollInterval time.Duration
}

type LogConfig struct {
	Dir   string
	Level string
}

// FromEnv builds the configuration from environment variables. Missing
// optional values fall back to defaults; required ones are checked by
// Validate.
func FromEnv() Config {
	cfg := Config{
		GitHub: GitHubConfig{
			Token:    os.Getenv("GITHUB_TOKEN"),
			Username: os.Getenv("GITHUB_USERNAME"),
		},
		LLM: LLMConfig{
			GroqAPIKey:   os.Getenv("GROQ_API_KEY"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Server: ServerConfig{
			Port:   envInt("PORT", 0),
			Secret: os.Getenv("USER_SECRET"),
		},
		Storage: StorageConfig{
			StorePath:      os.Getenv("STORAGE_PATH"),
			AttachmentsDir: os.Getenv("ATTACHMENTS_DIR"),
		},
		Log: LogConfig{
			Dir:   os.Getenv("LOG_DIR"),
			Level: os.Getenv("LOG_LEVEL"),
		},
	}
	applyDefaults(&cfg)
	return cfg
}

// Validate reports every missing required value at once so startup
// failures name the full fix.
func (c Config) Validate() error {
	var missing []string
	if c.GitHub.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if c.GitHub.Username == "" {
		missing = append(missing, "GITHUB_USERNAME")
	}
	if c.LLM.GroqAPIKey == "" {
		missing = append(missing, "GROQ_API_KEY")
	}
	if c.Server.Secret == "" {
		missing = append(missing, "USER_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// EnsureDirectories creates the writable paths the process depends on.
func (c Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.AttachmentsDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(c.Storage.StorePath), 0755)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.QueueWorkers <= 0 {
		cfg.Server.QueueWorkers = 4
	}
	if cfg.Server.QueueBuffer <= 0 {
		cfg.Server.QueueBuffer = 64
	}
	if strings.TrimSpace(cfg.Storage.StorePath) == "" {
		cfg.Storage.StorePath = filepath.Join(os.TempDir(), "pagesmith", "processed.json")
	}
	if strings.TrimSpace(cfg.Storage.AttachmentsDir) == "" {
		cfg.Storage.AttachmentsDir = filepath.Join(os.TempDir(), "pagesmith", "attachments")
	}
	if cfg.Notifier.MaxRetries <= 0 {
		cfg.Notifier.MaxRetries = 10
	}
	if cfg.Notifier.InitialDelay <= 0 {
		cfg.Notifier.InitialDelay = time.Second
	}
	if cfg.Deploy.PollAttempts <= 0 {
		cfg.Deploy.PollAttempts = 30
	}
	if cfg.Deploy.PollInterval <= 0 {
		cfg.Deploy.PollInterval = 5 * time.Second
	}
	if strings.TrimSpace(cfg.Log.Dir) == "" {
		cfg.Log.Dir = filepath.Join(os.TempDir(), "pagesmith", "logs")
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "INFO"
	}
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
