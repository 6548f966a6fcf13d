package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Selectors SelectorsConfig `yaml:"selectors" mapstructure:"selectors"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	FTP       FTPConfig       `yaml:"ftp" mapstructure:"ftp"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the grid API server.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	CORSOrigins       []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	SessionTTLMinutes int      `yaml:"session_ttl_minutes" mapstructure:"session_ttl_minutes"`
	MaxUploadMB       int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	UploadsPerMinute  int      `yaml:"uploads_per_minute" mapstructure:"uploads_per_minute"`
}

// ExportConfig configures the workbook writer.
type ExportConfig struct {
	Path       string  `yaml:"path" mapstructure:"path"`
	Font       string  `yaml:"font" mapstructure:"font"`
	FontSize   float64 `yaml:"font_size" mapstructure:"font_size"`
	HeaderFill string  `yaml:"header_fill" mapstructure:"header_fill"`
}

// SelectorsConfig points at an optional selector-table override file.
type SelectorsConfig struct {
	OverridePath string `yaml:"override_path" mapstructure:"override_path"`
}

// IngestConfig configures document collection.
type IngestConfig struct {
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

// FTPConfig configures the FTP document source.
type FTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
}

// HTTPConfig configures the HTTP document source.
type HTTPConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TERMSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.session_ttl_minutes", 60)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.uploads_per_minute", 30)
	v.SetDefault("export.path", "ExtractedXML_Data_Global.xlsx")
	v.SetDefault("export.font", "Arial")
	v.SetDefault("export.font_size", 10)
	v.SetDefault("export.header_fill", "DDEBF7")
	v.SetDefault("selectors.override_path", "")
	v.SetDefault("ingest.extensions", []string{".xml"})
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("ftp.user", "anonymous")
	v.SetDefault("ftp.password", "anonymous")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.requests_per_second", 10)
	v.SetDefault("http.user_agent", "termsheet-cli/1.0")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "extract":
		if strings.TrimSpace(c.Export.Path) == "" {
			problems = append(problems, "export.path is required")
		}
		problems = append(problems, c.HTTP.problems()...)
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.SessionTTLMinutes <= 0 {
			problems = append(problems, "server.session_ttl_minutes must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			problems = append(problems, "server.max_upload_mb must be > 0")
		}
		if c.Server.UploadsPerMinute <= 0 {
			problems = append(problems, "server.uploads_per_minute must be > 0")
		}
	case "detect":
		problems = append(problems, c.HTTP.problems()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(c.Ingest.Extensions) == 0 {
		problems = append(problems, "ingest.extensions must not be empty")
	}
	for _, ext := range c.Ingest.Extensions {
		if !strings.HasPrefix(ext, ".") {
			problems = append(problems, "ingest.extensions entries must start with '.': "+ext)
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

func (h HTTPConfig) problems() []string {
	var problems []string
	if h.MaxRetries < 1 {
		problems = append(problems, "http.max_retries must be >= 1")
	}
	if h.TimeoutSecs <= 0 {
		problems = append(problems, "http.timeout_secs must be > 0")
	}
	if h.RequestsPerSecond <= 0 {
		problems = append(problems, "http.requests_per_second must be > 0")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
