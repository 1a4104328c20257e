package config

const (
	defaultConfigPath      = "~/.config/biocapture/config.toml"
	defaultPort            = "8888"
	defaultStaticDir       = "./static"
	defaultStorageBackend  = "sqlite"
	defaultStoragePath     = "~/.local/share/biocapture/biocapture.db"
	defaultQuotaBytes      = 50 * 1024 * 1024
	defaultFeedbackTimeout = 60
	defaultTemperature     = 0.1
	defaultScannerWarmupMS = 1500
	defaultLogFormat       = "text"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Port:      defaultPort,
			StaticDir: defaultStaticDir,
		},
		Storage: Storage{
			Backend:    defaultStorageBackend,
			Path:       defaultStoragePath,
			QuotaBytes: defaultQuotaBytes,
		},
		Feedback: Feedback{
			Temperature:    defaultTemperature,
			TimeoutSeconds: defaultFeedbackTimeout,
		},
		Devices: Devices{
			ScannerWarmupMS: defaultScannerWarmupMS,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
