// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Flow         FlowConfig              `mapstructure:"flow"`
	Submission   SubmissionConfig        `mapstructure:"submission"`
	Payment      PaymentConfig           `mapstructure:"payment"`
	Session      SessionConfig           `mapstructure:"session"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	RegistryPath string                  `mapstructure:"registry_path"`
	Revision     string                  `mapstructure:"revision"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// --- Flow Configuration ---

// FlowConfig describes the step sequence and the form fields of one revision.
type FlowConfig struct {
	Steps                []StepConfig `mapstructure:"steps"`
	Fields               []string     `mapstructure:"fields"`
	RequiredFields       []string     `mapstructure:"required_fields"`
	TransitionMode       string       `mapstructure:"transition_mode"` // adjacent | explicit
	ReviewStep           string       `mapstructure:"review_step"`
	PaymentStep          string       `mapstructure:"payment_step"`
	DateStep             string       `mapstructure:"date_step"`
	ReviewJumpsToPayment bool         `mapstructure:"review_jumps_to_payment"`
	MaxBackdateDays      int          `mapstructure:"max_backdate_days"`
	MaxSpanDays          int          `mapstructure:"max_span_days"`
	Preview              bool         `mapstructure:"preview"` // show certificate text on the review step
}

// StepConfig is one page of the form. Next is only honoured in explicit mode.
type StepConfig struct {
	Name string `mapstructure:"name"`
	Next string `mapstructure:"next"`
}

// StepIndex returns the position of the named step or -1.
func (f FlowConfig) StepIndex(name string) int {
	for i, s := range f.Steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

type SubmissionConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	Timeout          int    `mapstructure:"timeout"`    // milliseconds, 0 disables the deadline
	GuardMode        string `mapstructure:"guard_mode"` // pre_call | post_success
	ResetOnFailure   *bool  `mapstructure:"reset_on_failure"`
	IncludeTimestamp bool   `mapstructure:"include_timestamp"`
	Retention        int    `mapstructure:"retention"` // seconds a successful outcome is remembered by the worker
}

type PaymentConfig struct {
	URL      string `mapstructure:"url"`
	Embedded bool   `mapstructure:"embedded"`
}

type SessionConfig struct {
	Store     string `mapstructure:"store"` // memory | redis
	TTL       int    `mapstructure:"ttl"`   // seconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ShouldResetOnFailure reports whether a failed submission re-arms the gate.
func (s SubmissionConfig) ShouldResetOnFailure() bool {
	return s.ResetOnFailure == nil || *s.ResetOnFailure
}

// TimeoutDuration converts the submission timeout to a time.Duration.
func (s SubmissionConfig) TimeoutDuration() time.Duration {
	return GetDuration(s.Timeout)
}
