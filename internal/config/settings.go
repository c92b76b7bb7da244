package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/handiism/fetcher/internal/fetch"
	"github.com/handiism/fetcher/internal/http"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	OutputDir             string `json:"output_dir" mapstructure:"output_dir"`
	FileNameFormat        string `json:"file_name_format" mapstructure:"file_name_format"` // {name}, {host}, {index}
	MaxConcurrentFetches  int    `json:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`
	BufferSize            int    `json:"buffer_size" mapstructure:"buffer_size"`
	UnknownLengthProgress string `json:"unknown_length_progress" mapstructure:"unknown_length_progress"` // suppress, indeterminate
	FreshClientPerFetch   bool   `json:"fresh_client_per_fetch" mapstructure:"fresh_client_per_fetch"`

	HTTP HTTPSettings `json:"http" mapstructure:"http"`
	Log  LogSettings  `json:"log" mapstructure:"log"`
}

// HTTPSettings configures the transport.
type HTTPSettings struct {
	UserAgent      string  `json:"user_agent" mapstructure:"user_agent"`
	TimeoutSeconds int     `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	ProxyType      string  `json:"proxy_type" mapstructure:"proxy_type"` // none, system, manual
	ProxyAddress   string  `json:"proxy_address" mapstructure:"proxy_address"`
	ProxyPort      int     `json:"proxy_port" mapstructure:"proxy_port"`
	RateLimit      float64 `json:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int     `json:"rate_burst" mapstructure:"rate_burst"`
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"` // json, console
	File   string `json:"file" mapstructure:"file"`     // empty logs to stderr
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		OutputDir:             filepath.Join(homeDir, "Downloads", "fetcher"),
		FileNameFormat:        "{name}",
		MaxConcurrentFetches:  4,
		BufferSize:            fetch.DefaultBufferSize,
		UnknownLengthProgress: "suppress",
		FreshClientPerFetch:   false,

		HTTP: HTTPSettings{
			UserAgent:      "fetcher/1.0",
			TimeoutSeconds: 60,
			ProxyType:      http.ProxySystem,
			RateBurst:      1,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads settings from a JSON file, then applies FETCH_* environment
// overrides. A missing file is not an error; an empty path skips the file.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("json")

	v.SetEnvPrefix("FETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultSettings())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, eris.Wrapf(err, "config: read %s", path)
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return settings, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("file_name_format", d.FileNameFormat)
	v.SetDefault("max_concurrent_fetches", d.MaxConcurrentFetches)
	v.SetDefault("buffer_size", d.BufferSize)
	v.SetDefault("unknown_length_progress", d.UnknownLengthProgress)
	v.SetDefault("fresh_client_per_fetch", d.FreshClientPerFetch)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.timeout_seconds", d.HTTP.TimeoutSeconds)
	v.SetDefault("http.proxy_type", d.HTTP.ProxyType)
	v.SetDefault("http.proxy_address", d.HTTP.ProxyAddress)
	v.SetDefault("http.proxy_port", d.HTTP.ProxyPort)
	v.SetDefault("http.rate_limit", d.HTTP.RateLimit)
	v.SetDefault("http.rate_burst", d.HTTP.RateBurst)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrapf(err, "config: mkdir %s", dir)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "config: marshal")
	}

	return os.WriteFile(path, data, 0644)
}

// ToClientOptions converts settings to http.Options.
func (s *Settings) ToClientOptions() http.Options {
	opts := http.Options{
		UserAgent: s.HTTP.UserAgent,
		Timeout:   time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
		ProxyType: s.HTTP.ProxyType,
		RateLimit: s.HTTP.RateLimit,
		RateBurst: s.HTTP.RateBurst,
	}
	if s.HTTP.ProxyType == http.ProxyManual && s.HTTP.ProxyAddress != "" {
		addr := s.HTTP.ProxyAddress
		if !strings.Contains(addr, "://") {
			addr = "http://" + addr
		}
		if s.HTTP.ProxyPort > 0 {
			addr += ":" + strconv.Itoa(s.HTTP.ProxyPort)
		}
		opts.ProxyURL = addr
	}
	return opts
}

// ToFetchOptions converts settings to fetcher options.
func (s *Settings) ToFetchOptions() []fetch.Option {
	return []fetch.Option{
		fetch.WithBufferSize(s.BufferSize),
		fetch.WithUnknownLength(fetch.ParseUnknownLengthPolicy(s.UnknownLengthProgress)),
	}
}

// InitLogger builds the global zap logger from cfg.
func InitLogger(cfg LogSettings) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)
	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
