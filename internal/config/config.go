// Package config loads the dbmeta YAML configuration and converts it into
// the settings each subsystem takes.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/dbmeta/internal/codec"
	"github.com/koustreak/dbmeta/internal/database"
	"github.com/koustreak/dbmeta/internal/filestore"
	"github.com/koustreak/dbmeta/internal/filter"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/orchestrator"
	"github.com/koustreak/dbmeta/internal/retry"
)

// Environment variables read by ApplyEnv.
const (
	EnvPassword          = "DBMETA_PASSWORD"
	EnvStorageSecret     = "DBMETA_STORAGE_SECRET_KEY"
	DefaultPassphraseEnv = "DBMETA_PASSPHRASE"
)

type Config struct {
	Source  Source  `yaml:"source"`
	Collect Collect `yaml:"collect"`
	Retry   Retry   `yaml:"retry"`
	Output  Output  `yaml:"output"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

type Source struct {
	Engine           string `yaml:"engine"`
	DSN              string `yaml:"dsn"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	SSLMode          string `yaml:"ssl_mode"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms"`
	QueryTimeoutMS   int    `yaml:"query_timeout_ms"`
	MaxConns         int32  `yaml:"max_conns"`
}

type Collect struct {
	MaxConcurrency  int      `yaml:"max_concurrency"`
	IncludeSystem   bool     `yaml:"include_system"`
	Include         []string `yaml:"include"`
	Exclude         []string `yaml:"exclude"`
	ContinueOnError bool     `yaml:"continue_on_error"`
	Strict          bool     `yaml:"strict"`
}

type Retry struct {
	MaxAttempts  int `yaml:"max_attempts"`
	BaseMS       int `yaml:"base_ms"`
	MaxBackoffMS int `yaml:"max_backoff_ms"`
	JitterMinMS  int `yaml:"jitter_min_ms"`
	JitterMaxMS  int `yaml:"jitter_max_ms"`
}

type Output struct {
	Mode          string `yaml:"mode"`
	Path          string `yaml:"path"`
	Compress      bool   `yaml:"compress"`
	PassphraseEnv string `yaml:"passphrase_env"`
}

type Storage struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		Source: Source{
			Engine:           string(database.EnginePostgres),
			ConnectTimeoutMS: 10_000,
			QueryTimeoutMS:   30_000,
			MaxConns:         2,
		},
		Collect: Collect{
			MaxConcurrency:  4,
			ContinueOnError: true,
		},
		Retry: Retry{
			MaxAttempts:  p.MaxAttempts,
			BaseMS:       int(p.Base / time.Millisecond),
			MaxBackoffMS: int(p.MaxBackoff / time.Millisecond),
			JitterMinMS:  int(p.JitterMin / time.Millisecond),
			JitterMaxMS:  int(p.JitterMax / time.Millisecond),
		},
		Output: Output{
			Mode:          orchestrator.ModeBundle.String(),
			Path:          "./dbmeta-out",
			PassphraseEnv: DefaultPassphraseEnv,
		},
		Storage: Storage{Bucket: "dbmeta"},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value; unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv fills secrets from the environment when the file leaves them
// empty.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if c.Source.Password == "" {
		c.Source.Password = getenv(EnvPassword)
	}
	if c.Storage.SecretKey == "" {
		c.Storage.SecretKey = getenv(EnvStorageSecret)
	}
}

// Validate collects every problem instead of stopping at the first.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) { problems = append(problems, fmt.Errorf(format, args...)) }

	if _, err := database.ParseEngine(c.Source.Engine); err != nil {
		problems = append(problems, fmt.Errorf("source.engine: %w", err))
	}
	if c.Source.DSN == "" && c.Source.Host == "" {
		add("source: either dsn or host is required")
	}
	if c.Source.MaxConns < 1 {
		add("source.max_conns must be at least 1, got %d", c.Source.MaxConns)
	}
	if c.Collect.MaxConcurrency < 1 {
		add("collect.max_concurrency must be at least 1, got %d", c.Collect.MaxConcurrency)
	}
	if err := filter.Validate(c.Collect.Include); err != nil {
		problems = append(problems, fmt.Errorf("collect.include: %w", err))
	}
	if err := filter.Validate(c.Collect.Exclude); err != nil {
		problems = append(problems, fmt.Errorf("collect.exclude: %w", err))
	}
	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseMS < 0 || c.Retry.MaxBackoffMS < 0 || c.Retry.JitterMinMS < 0 {
		add("retry durations must not be negative")
	}
	if c.Retry.JitterMinMS > c.Retry.JitterMaxMS {
		add("retry.jitter_min_ms (%d) exceeds jitter_max_ms (%d)", c.Retry.JitterMinMS, c.Retry.JitterMaxMS)
	}
	if _, err := orchestrator.ParseOutputMode(c.Output.Mode); err != nil {
		problems = append(problems, fmt.Errorf("output.mode: %w", err))
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		add("output.path is required")
	}
	if c.Storage.Enabled {
		if err := c.FileStore().Validate(); err != nil {
			problems = append(problems, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(problems...)
}

// Database converts the source section. Call after Validate.
func (c *Config) Database() *database.Config {
	engine, _ := database.ParseEngine(c.Source.Engine)
	cfg := database.DefaultConfig(engine, c.Source.DSN)
	cfg.Host = c.Source.Host
	cfg.Port = c.Source.Port
	cfg.User = c.Source.User
	cfg.Password = c.Source.Password
	cfg.SSLMode = c.Source.SSLMode
	cfg.MaxConns = c.Source.MaxConns
	cfg.ConnectTimeout = ms(c.Source.ConnectTimeoutMS)
	cfg.QueryTimeout = ms(c.Source.QueryTimeoutMS)
	return cfg
}

// Run converts the collect and output sections. Call after Validate.
func (c *Config) Run() orchestrator.Config {
	mode, _ := orchestrator.ParseOutputMode(c.Output.Mode)
	return orchestrator.Config{
		MaxConcurrency:  c.Collect.MaxConcurrency,
		IncludeSystem:   c.Collect.IncludeSystem,
		Include:         c.Collect.Include,
		Exclude:         c.Collect.Exclude,
		ContinueOnError: c.Collect.ContinueOnError,
		Mode:            mode,
	}
}

func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Base:        ms(c.Retry.BaseMS),
		MaxBackoff:  ms(c.Retry.MaxBackoffMS),
		JitterMin:   ms(c.Retry.JitterMinMS),
		JitterMax:   ms(c.Retry.JitterMaxMS),
	}
}

// Codec reads the passphrase from the configured environment variable;
// encryption is off when it is unset.
func (c *Config) Codec(getenv func(string) string) codec.Options {
	opts := codec.Options{Compress: c.Output.Compress}
	if c.Output.PassphraseEnv != "" {
		if p := getenv(c.Output.PassphraseEnv); p != "" {
			opts.Passphrase = []byte(p)
		}
	}
	return opts
}

func (c *Config) FileStore() *filestore.Config {
	return &filestore.Config{
		Provider:  filestore.ProviderMinIO,
		Endpoint:  c.Storage.Endpoint,
		AccessKey: c.Storage.AccessKey,
		SecretKey: c.Storage.SecretKey,
		UseSSL:    c.Storage.UseSSL,
		Region:    c.Storage.Region,
		Bucket:    c.Storage.Bucket,
		Prefix:    c.Storage.Prefix,
	}
}

func (c *Config) Logger() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	return cfg
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
