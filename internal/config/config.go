package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/biocapture/internal/feedback"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains HTTP listener settings.
type Server struct {
	Port      string `toml:"port"`
	StaticDir string `toml:"static_dir"`
}

// Storage selects and sizes the persistence backend.
type Storage struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	QuotaBytes int64  `toml:"quota_bytes"`
}

// Feedback configures the AI quality-feedback provider.
type Feedback struct {
	Provider       string  `toml:"provider"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	GeminiAPIKey   string  `toml:"gemini_api_key"`
	OpenAIAPIKey   string  `toml:"openai_api_key"`
	OpenAIBaseURL  string  `toml:"openai_base_url"`
	OllamaURL      string  `toml:"ollama_url"`
}

// Devices configures the camera drop folder and scanner warm-up.
type Devices struct {
	CameraDir       string `toml:"camera_dir"`
	ScannerWarmupMS int    `toml:"scanner_warmup_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for biocapture.
type Config struct {
	Server   Server   `toml:"server"`
	Storage  Storage  `toml:"storage"`
	Feedback Feedback `toml:"feedback"`
	Devices  Devices  `toml:"devices"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Missing files
// are not an error; defaults and environment overrides apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("biocapture.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the parent directory of a file-backed store.
func (c *Config) EnsureDirectories() error {
	if c.Storage.Backend == "memory" || c.Storage.Path == "" {
		return nil
	}
	dir := filepath.Dir(c.Storage.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// FeedbackOptions converts the [feedback] section for feedback.NewService.
func (c *Config) FeedbackOptions() feedback.Options {
	return feedback.Options{
		Provider:      c.Feedback.Provider,
		Model:         c.Feedback.Model,
		Temperature:   c.Feedback.Temperature,
		Timeout:       time.Duration(c.Feedback.TimeoutSeconds) * time.Second,
		GeminiAPIKey:  c.Feedback.GeminiAPIKey,
		OpenAIAPIKey:  c.Feedback.OpenAIAPIKey,
		OpenAIBaseURL: c.Feedback.OpenAIBaseURL,
		OllamaURL:     c.Feedback.OllamaURL,
	}
}

// ScannerWarmup returns the simulated scanner warm-up.
func (c *Config) ScannerWarmup() time.Duration {
	return time.Duration(c.Devices.ScannerWarmupMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
