package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeFeedback()
	if err := c.normalizeDevices(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() error {
	if value, ok := lookupEnv("BIOCAPTURE_PORT"); ok {
		c.Server.Port = value
	}
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if value, ok := lookupEnv("BIOCAPTURE_STATIC_DIR"); ok {
		c.Server.StaticDir = value
	}
	if strings.TrimSpace(c.Server.StaticDir) == "" {
		c.Server.StaticDir = defaultStaticDir
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	if value, ok := lookupEnv("BIOCAPTURE_STORAGE_BACKEND"); ok {
		c.Storage.Backend = value
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}

	if value, ok := lookupEnv("BIOCAPTURE_STORAGE_PATH"); ok {
		c.Storage.Path = value
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = defaultStoragePath
	}
	var err error
	if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
		return fmt.Errorf("storage.path: %w", err)
	}

	if value, ok := lookupEnv("BIOCAPTURE_QUOTA_BYTES"); ok {
		quota, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("BIOCAPTURE_QUOTA_BYTES: %w", err)
		}
		c.Storage.QuotaBytes = quota
	}
	return nil
}

func (c *Config) normalizeFeedback() {
	if value, ok := lookupEnv("FEEDBACK_PROVIDER"); ok && c.Feedback.Provider == "" {
		c.Feedback.Provider = value
	}
	if value, ok := lookupEnv("BIOCAPTURE_FEEDBACK_PROVIDER"); ok {
		c.Feedback.Provider = value
	}
	c.Feedback.Provider = strings.ToLower(strings.TrimSpace(c.Feedback.Provider))
	if c.Feedback.Provider == "" {
		c.Feedback.Provider = "gemini"
	}
	c.Feedback.Model = strings.TrimSpace(c.Feedback.Model)

	if c.Feedback.GeminiAPIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Feedback.GeminiAPIKey = value
		}
	}
	if c.Feedback.OpenAIAPIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Feedback.OpenAIAPIKey = value
		}
	}
	if c.Feedback.OllamaURL == "" {
		if value, ok := os.LookupEnv("OLLAMA_URL"); ok {
			c.Feedback.OllamaURL = value
		}
	}
	if c.Feedback.TimeoutSeconds <= 0 {
		c.Feedback.TimeoutSeconds = defaultFeedbackTimeout
	}
}

func (c *Config) normalizeDevices() error {
	if value, ok := lookupEnv("BIOCAPTURE_CAMERA_DIR"); ok {
		c.Devices.CameraDir = value
	}
	if strings.TrimSpace(c.Devices.CameraDir) != "" {
		var err error
		if c.Devices.CameraDir, err = expandPath(c.Devices.CameraDir); err != nil {
			return fmt.Errorf("devices.camera_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := lookupEnv("BIOCAPTURE_LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupEnv("BIOCAPTURE_LOG_FORMAT"); ok {
		c.Logging.Format = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}
