package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"parity/internal/engine"
	"parity/internal/log"
)

type Config struct {
	// Documents
	FixturePath    string `env:"FIXTURE_PATH" envDefault:"fixtures/representative-dataset.json"`
	SnapshotPath   string `env:"SNAPSHOT_PATH" envDefault:"snapshots/expected-output.json"`
	DashboardPath  string `env:"DASHBOARD_PATH" envDefault:"snapshots/diff-dashboard.md"`
	CandidatesPath string `env:"CANDIDATES_PATH" envDefault:"candidates.yaml"`

	// Comparison
	ReferenceEngine  string        `env:"REFERENCE_ENGINE" envDefault:"reference"`
	Epsilon          float64       `env:"EPSILON" envDefault:"1e-6"`
	CandidateTimeout time.Duration `env:"CANDIDATE_TIMEOUT" envDefault:"2m"`
	Parallelism      int           `env:"PARALLELISM" envDefault:"0"`

	// Run history
	HistoryDB    string `env:"HISTORY_DB"`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"20"`

	// Publish to the in-memory sheet and print its rows instead of AMQP and Google Sheets
	PublishDryRun bool `env:"PUBLISH_DRY_RUN"`

	// AMQP
	AMQPURL        string `env:"AMQP_URL"`
	AMQPExchange   string `env:"AMQP_EXCHANGE" envDefault:"parity"`
	AMQPRoutingKey string `env:"AMQP_ROUTING_KEY" envDefault:"parity.runs"`

	// Google Sheets
	GoogleSpreadsheetID string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName     string `env:"GOOGLE_SHEET_NAME" envDefault:"Parity runs"`

	// Metrics
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "PARITY_"

// Load reads the configuration from the environment only.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseConfig loads environment defaults and then lets flags in args
// override them. Remaining positional arguments are left in fs.Args().
func ParseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	cfg.RegisterFlags(fs)
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterFlags binds every setting to a flag whose default is the current value.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.FixturePath, "fixture", c.FixturePath, "dataset fixture path")
	fs.StringVar(&c.SnapshotPath, "snapshot", c.SnapshotPath, "expected output snapshot path")
	fs.StringVar(&c.DashboardPath, "dashboard", c.DashboardPath, "Markdown dashboard output path")
	fs.StringVar(&c.CandidatesPath, "candidates", c.CandidatesPath, "candidate registry path")
	fs.StringVar(&c.ReferenceEngine, "reference", c.ReferenceEngine, "reference engine name")
	fs.Float64Var(&c.Epsilon, "epsilon", c.Epsilon, "absolute tolerance for numeric comparison")
	fs.DurationVar(&c.CandidateTimeout, "timeout", c.CandidateTimeout, "default timeout per candidate process")
	fs.IntVar(&c.Parallelism, "parallelism", c.Parallelism, "candidates evaluated at once (0 = number of CPUs)")
	fs.StringVar(&c.HistoryDB, "history-db", c.HistoryDB, "SQLite run history path (empty disables history)")
	fs.IntVar(&c.HistoryLimit, "limit", c.HistoryLimit, "runs listed by the history command")
	fs.BoolVar(&c.PublishDryRun, "dry-run", c.PublishDryRun, "print the rows that would be published instead of publishing")
	fs.StringVar(&c.MetricsTextfile, "metrics-textfile", c.MetricsTextfile, "Prometheus textfile output path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "text or json")
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	for _, p := range []struct{ name, value string }{
		{"fixture path", c.FixturePath},
		{"snapshot path", c.SnapshotPath},
		{"dashboard path", c.DashboardPath},
		{"candidates path", c.CandidatesPath},
	} {
		if strings.TrimSpace(p.value) == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", p.name))
		}
	}

	if _, err := engine.Lookup(c.ReferenceEngine); err != nil {
		errors = append(errors, fmt.Sprintf("invalid reference engine: %v", err))
	}

	if !(c.Epsilon > 0) || c.Epsilon >= 1 {
		errors = append(errors, fmt.Sprintf("invalid epsilon %v: must be greater than 0 and less than 1", c.Epsilon))
	}

	if c.CandidateTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid candidate timeout %v: must be positive", c.CandidateTimeout))
	} else if c.CandidateTimeout > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid candidate timeout %v: must be at most 1 hour", c.CandidateTimeout))
	}

	if c.Parallelism < 0 {
		errors = append(errors, fmt.Sprintf("invalid parallelism %d: must not be negative", c.Parallelism))
	}

	if c.HistoryLimit <= 0 {
		errors = append(errors, fmt.Sprintf("invalid history limit %d: must be positive", c.HistoryLimit))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is provided")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != log.FormatText && c.LogFormat != log.FormatJSON {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be '%s' or '%s'", c.LogFormat, log.FormatText, log.FormatJSON))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() slog.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}
