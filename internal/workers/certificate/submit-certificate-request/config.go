package submitcertificaterequest

import (
	"fmt"
	"time"

	"certflow/internal/common/config"
	"certflow/internal/flow/gate"
)

type Config struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxJobsActive    int           `mapstructure:"max_jobs_active"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Endpoint         string        `mapstructure:"endpoint"`
	SubmitTimeout    time.Duration `mapstructure:"submit_timeout"`
	Fields           []string      `mapstructure:"fields"`
	RequiredFields   []string      `mapstructure:"required_fields"`
	GuardMode        string        `mapstructure:"guard_mode"`
	ResetOnFailure   bool          `mapstructure:"reset_on_failure"`
	IncludeTimestamp bool          `mapstructure:"include_timestamp"`
	PaymentURL       string        `mapstructure:"payment_url"`
	MaxBackdateDays  int           `mapstructure:"max_backdate_days"`
	MaxSpanDays      int           `mapstructure:"max_span_days"`
	// ResultTTL bounds how long an idle process instance without a
	// successful submission keeps its gate.
	ResultTTL time.Duration `mapstructure:"result_ttl"`
	// SubmittedRetention bounds how long a successful outcome is remembered
	// for job retries. Zero keeps it for the life of the worker.
	SubmittedRetention time.Duration `mapstructure:"submitted_retention"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxJobsActive:   5,
		Timeout:         30 * time.Second,
		SubmitTimeout:   15 * time.Second,
		Fields:          append([]string(nil), config.DefaultFields...),
		RequiredFields:  append([]string(nil), config.DefaultRequiredFields...),
		GuardMode:       string(gate.GuardPreCall),
		ResetOnFailure:  true,
		MaxBackdateDays: 7,
		MaxSpanDays:     5,
		ResultTTL:       time.Hour,

		SubmittedRetention: 30 * 24 * time.Hour,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("submit_timeout must not be negative")
	}
	if c.SubmitTimeout > c.Timeout {
		return fmt.Errorf("submit_timeout must not exceed the job timeout")
	}
	switch gate.GuardMode(c.GuardMode) {
	case gate.GuardPreCall, gate.GuardPostSuccess:
	default:
		return fmt.Errorf("guard_mode must be %q or %q", gate.GuardPreCall, gate.GuardPostSuccess)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("fields must not be empty")
	}
	if c.SubmittedRetention < 0 {
		return fmt.Errorf("submitted_retention must not be negative")
	}
	if c.SubmittedRetention > 0 && c.SubmittedRetention < c.ResultTTL {
		return fmt.Errorf("submitted_retention must not be shorter than result_ttl")
	}
	if c.MaxBackdateDays < 0 || c.MaxSpanDays <= 0 {
		return fmt.Errorf("date limits must be positive")
	}
	return nil
}

func (c *Config) gateConfig() gate.Config {
	return gate.Config{
		Required:         c.RequiredFields,
		GuardMode:        gate.GuardMode(c.GuardMode),
		ResetOnFailure:   c.ResetOnFailure,
		Timeout:          c.SubmitTimeout,
		IncludeTimestamp: c.IncludeTimestamp,
	}
}

// checksDates reports whether the record carries the date step's fields.
func (c *Config) checksDates() bool {
	var from, to bool
	for _, f := range c.Fields {
		switch f {
		case "fromDate":
			from = true
		case "toDate":
			to = true
		}
	}
	return from && to
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, exists := appConfig.Workers[WorkerName]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
		}
	}

	cfg.Endpoint = appConfig.Submission.Endpoint
	cfg.SubmitTimeout = appConfig.Submission.TimeoutDuration()
	if cfg.SubmitTimeout > cfg.Timeout {
		cfg.SubmitTimeout = cfg.Timeout
	}
	if appConfig.Submission.GuardMode != "" {
		cfg.GuardMode = appConfig.Submission.GuardMode
	}
	cfg.ResetOnFailure = appConfig.Submission.ShouldResetOnFailure()
	cfg.IncludeTimestamp = appConfig.Submission.IncludeTimestamp
	if len(appConfig.Flow.Fields) > 0 {
		cfg.Fields = append([]string(nil), appConfig.Flow.Fields...)
		cfg.RequiredFields = append([]string(nil), appConfig.Flow.RequiredFields...)
	}
	cfg.PaymentURL = appConfig.Payment.URL
	if appConfig.Flow.MaxBackdateDays > 0 {
		cfg.MaxBackdateDays = appConfig.Flow.MaxBackdateDays
	}
	if appConfig.Flow.MaxSpanDays > 0 {
		cfg.MaxSpanDays = appConfig.Flow.MaxSpanDays
	}
	if appConfig.Session.TTL > 0 {
		cfg.ResultTTL = time.Duration(appConfig.Session.TTL) * time.Second
	}
	if appConfig.Submission.Retention > 0 {
		cfg.SubmittedRetention = time.Duration(appConfig.Submission.Retention) * time.Second
	}
	return cfg
}
