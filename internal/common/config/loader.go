// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"certflow/pkg/registry"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TransitionAdjacent = "adjacent"
	TransitionExplicit = "explicit"

	GuardPreCall     = "pre_call"
	GuardPostSuccess = "post_success"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// DefaultFields is the full record layout of the latest form revision.
var DefaultFields = []string{
	"firstName", "lastName", "dob", "email", "mobile",
	"address", "city", "state", "postcode",
	"certType", "otherLeave", "reason", "fromDate", "toDate",
	"symptoms", "doctorNote",
}

// DefaultRequiredFields is checked in this order, which is also the order of
// the reported missing fields.
var DefaultRequiredFields = []string{
	"email", "firstName", "lastName", "dob", "mobile",
	"address", "city", "state", "postcode", "fromDate", "toDate",
}

// DefaultSteps is the seven-page layout.
var DefaultSteps = []StepConfig{
	{Name: "patient"},
	{Name: "certificate"},
	{Name: "dates"},
	{Name: "symptoms"},
	{Name: "doctor-note"},
	{Name: "review"},
	{Name: "payment"},
}

// Load reads configs/config.yaml, merges config.<env>.yaml and environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // env overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyRevision(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "certflow")
	v.SetDefault("app.environment", "development")
	v.SetDefault("submission.timeout", 15000)
	v.SetDefault("submission.guard_mode", GuardPreCall)
	v.SetDefault("flow.transition_mode", TransitionAdjacent)
	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("server.address", ":8080")
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal {
			v.Set(key, expanded)
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.Submission.Endpoint == "" {
		if val := os.Getenv("SUBMISSION_ENDPOINT"); val != "" {
			cfg.Submission.Endpoint = val
		}
	}
	if cfg.Payment.URL == "" {
		if val := os.Getenv("PAYMENT_URL"); val != "" {
			cfg.Payment.URL = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyRevision overlays a named revision from the registry file onto the flow
// and submission sections. Values set explicitly in YAML are replaced. An
// empty revision selects the registry's default.
func applyRevision(cfg *Config) error {
	if cfg.RegistryPath == "" {
		return nil
	}
	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load revision registry %s: %w", cfg.RegistryPath, err)
	}
	id := cfg.Revision
	if id == "" {
		if reg.Default == "" {
			return nil
		}
		id = reg.Default
	}
	rev, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("revision %q not found in %s", id, cfg.RegistryPath)
	}
	if err := rev.Validate(); err != nil {
		return fmt.Errorf("revision %s: %w", rev.ID, err)
	}
	cfg.Revision = rev.ID

	steps := make([]StepConfig, len(rev.Steps))
	for i, s := range rev.Steps {
		steps[i] = StepConfig{Name: s.Name, Next: s.Next}
	}
	cfg.Flow.Steps = steps
	cfg.Flow.Fields = rev.Fields
	cfg.Flow.RequiredFields = rev.RequiredFields
	cfg.Flow.TransitionMode = rev.TransitionMode
	cfg.Flow.ReviewStep = rev.ReviewStep
	cfg.Flow.PaymentStep = rev.PaymentStep
	cfg.Flow.DateStep = rev.DateStep
	cfg.Flow.ReviewJumpsToPayment = rev.ReviewJumpsToPayment
	cfg.Flow.Preview = rev.HasPreview

	cfg.Submission.GuardMode = rev.GuardMode
	cfg.Submission.ResetOnFailure = &rev.ResetOnFailure
	cfg.Submission.IncludeTimestamp = rev.IncludeTimestamp
	if rev.TimeoutMillis > 0 {
		cfg.Submission.Timeout = rev.TimeoutMillis
	}
	return nil
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if len(cfg.Flow.Steps) == 0 {
		cfg.Flow.Steps = append([]StepConfig(nil), DefaultSteps...)
	}
	if len(cfg.Flow.Fields) == 0 {
		cfg.Flow.Fields = append([]string(nil), DefaultFields...)
	}
	if cfg.Flow.RequiredFields == nil {
		cfg.Flow.RequiredFields = append([]string(nil), DefaultRequiredFields...)
	}
	if cfg.Flow.TransitionMode == "" {
		cfg.Flow.TransitionMode = TransitionAdjacent
	}
	if cfg.Flow.ReviewStep == "" {
		cfg.Flow.ReviewStep = "review"
	}
	if cfg.Flow.PaymentStep == "" && cfg.Flow.StepIndex("payment") >= 0 {
		cfg.Flow.PaymentStep = "payment"
	}
	if cfg.Flow.DateStep == "" && cfg.Flow.StepIndex("dates") >= 0 {
		cfg.Flow.DateStep = "dates"
	}
	if cfg.Flow.MaxBackdateDays == 0 {
		cfg.Flow.MaxBackdateDays = 7
	}
	if cfg.Flow.MaxSpanDays == 0 {
		cfg.Flow.MaxSpanDays = 5
	}

	if cfg.Submission.GuardMode == "" {
		cfg.Submission.GuardMode = GuardPreCall
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = SessionStoreMemory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 3600
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "certflow:session:"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	if cfg.Submission.Endpoint == "" {
		return fmt.Errorf("submission.endpoint is required")
	}
	if cfg.Submission.Timeout < 0 {
		return fmt.Errorf("submission.timeout must not be negative")
	}
	switch cfg.Submission.GuardMode {
	case GuardPreCall, GuardPostSuccess:
	default:
		return fmt.Errorf("submission.guard_mode must be %q or %q", GuardPreCall, GuardPostSuccess)
	}

	if len(cfg.Flow.Steps) < 2 {
		return fmt.Errorf("flow.steps needs at least two steps")
	}
	seen := make(map[string]bool, len(cfg.Flow.Steps))
	for _, s := range cfg.Flow.Steps {
		if s.Name == "" {
			return fmt.Errorf("flow.steps: step name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("flow.steps: duplicate step %q", s.Name)
		}
		seen[s.Name] = true
	}
	for _, s := range cfg.Flow.Steps {
		if s.Next != "" && !seen[s.Next] {
			return fmt.Errorf("flow.steps: step %q targets unknown step %q", s.Name, s.Next)
		}
	}

	switch cfg.Flow.TransitionMode {
	case TransitionAdjacent, TransitionExplicit:
	default:
		return fmt.Errorf("flow.transition_mode must be %q or %q", TransitionAdjacent, TransitionExplicit)
	}

	if cfg.Flow.StepIndex(cfg.Flow.ReviewStep) < 0 {
		return fmt.Errorf("flow.review_step %q is not a configured step", cfg.Flow.ReviewStep)
	}
	if cfg.Flow.PaymentStep != "" && cfg.Flow.StepIndex(cfg.Flow.PaymentStep) < 0 {
		return fmt.Errorf("flow.payment_step %q is not a configured step", cfg.Flow.PaymentStep)
	}
	if cfg.Flow.ReviewJumpsToPayment && cfg.Flow.PaymentStep == "" {
		return fmt.Errorf("flow.review_jumps_to_payment requires flow.payment_step")
	}
	if cfg.Flow.DateStep != "" && cfg.Flow.StepIndex(cfg.Flow.DateStep) < 0 {
		return fmt.Errorf("flow.date_step %q is not a configured step", cfg.Flow.DateStep)
	}

	fields := make(map[string]bool, len(cfg.Flow.Fields))
	for _, f := range cfg.Flow.Fields {
		fields[f] = true
	}
	for _, r := range cfg.Flow.RequiredFields {
		if !fields[r] {
			return fmt.Errorf("flow.required_fields: %q is not a configured field", r)
		}
	}

	switch cfg.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis session store")
		}
	default:
		return fmt.Errorf("session.store must be %q or %q", SessionStoreMemory, SessionStoreRedis)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
