package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry = `{
  "version": "1.0.0",
  "default": "r-test",
  "revisions": [
    {
      "id": "r-test",
      "displayName": "Test revision",
      "steps": [
        {"name": "details", "next": "review"},
        {"name": "extra"},
        {"name": "review"},
        {"name": "payment"}
      ],
      "fields": ["firstName", "email"],
      "requiredFields": ["email"],
      "transitionMode": "explicit",
      "reviewStep": "review",
      "paymentStep": "payment",
      "guardMode": "post_success",
      "resetOnFailure": false,
      "includeTimestamp": true,
      "timeoutMillis": 9000,
      "hasPreview": true
    }
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_AppliesRevision(t *testing.T) {
	dir := t.TempDir()
	registryPath := writeFile(t, dir, "revisions.json", testRegistry)
	t.Setenv("CERTFLOW_TEST_ENDPOINT", "https://clinic.example.com/submit")
	configPath := writeFile(t, dir, "config.yaml", `
registry_path: `+registryPath+`
revision: r-test
flow:
  max_span_days: 10
submission:
  endpoint: ${CERTFLOW_TEST_ENDPOINT}
  timeout: 15000
workers:
  submit-certificate-request:
    enabled: true
`)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://clinic.example.com/submit", cfg.Submission.Endpoint)
	require.Len(t, cfg.Flow.Steps, 4)
	assert.Equal(t, "review", cfg.Flow.Steps[0].Next)
	assert.Equal(t, TransitionExplicit, cfg.Flow.TransitionMode)
	assert.Equal(t, []string{"email"}, cfg.Flow.RequiredFields)
	assert.True(t, cfg.Flow.Preview)
	assert.Equal(t, "", cfg.Flow.DateStep)
	assert.Equal(t, 10, cfg.Flow.MaxSpanDays)
	assert.Equal(t, 7, cfg.Flow.MaxBackdateDays)

	assert.Equal(t, GuardPostSuccess, cfg.Submission.GuardMode)
	assert.False(t, cfg.Submission.ShouldResetOnFailure())
	assert.True(t, cfg.Submission.IncludeTimestamp)
	assert.Equal(t, 9000, cfg.Submission.Timeout)

	worker := cfg.Workers["submit-certificate-request"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_DefaultsWithoutRevision(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", `
revision: ${CERTFLOW_TEST_UNSET_REVISION}
submission:
  endpoint: http://localhost:9999/submit
`)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Revision)
	assert.Equal(t, DefaultSteps, cfg.Flow.Steps)
	assert.Equal(t, DefaultFields, cfg.Flow.Fields)
	assert.Equal(t, DefaultRequiredFields, cfg.Flow.RequiredFields)
	assert.Equal(t, "dates", cfg.Flow.DateStep)
	assert.Equal(t, "payment", cfg.Flow.PaymentStep)
	assert.Equal(t, GuardPreCall, cfg.Submission.GuardMode)
	assert.True(t, cfg.Submission.ShouldResetOnFailure())
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 3600, cfg.Session.TTL)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadFromFile_EmptyRevisionUsesRegistryDefault(t *testing.T) {
	dir := t.TempDir()
	registryPath := writeFile(t, dir, "revisions.json", testRegistry)
	configPath := writeFile(t, dir, "config.yaml", `
registry_path: `+registryPath+`
revision: ${CERTFLOW_TEST_UNSET_REVISION}
submission:
  endpoint: http://localhost:9999/submit
`)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "r-test", cfg.Revision)
	require.Len(t, cfg.Flow.Steps, 4)
	assert.Equal(t, TransitionExplicit, cfg.Flow.TransitionMode)
	assert.Equal(t, GuardPostSuccess, cfg.Submission.GuardMode)
	assert.Equal(t, 9000, cfg.Submission.Timeout)
}

func TestLoadFromFile_ShippedRegistryDefault(t *testing.T) {
	registryPath, err := filepath.Abs(filepath.Join("..", "..", "..", "configs", "revisions.json"))
	require.NoError(t, err)
	configPath := writeFile(t, t.TempDir(), "config.yaml", `
registry_path: `+registryPath+`
submission:
  endpoint: http://localhost:9999/submit
`)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "r7", cfg.Revision)
	assert.True(t, cfg.Flow.ReviewJumpsToPayment)
	assert.Equal(t, "dates", cfg.Flow.DateStep)
	require.Len(t, cfg.Flow.Steps, 7)
	assert.Equal(t, "doctor-note", cfg.Flow.Steps[4].Name)
}

func TestLoadFromFile_RegistryWithoutDefault(t *testing.T) {
	dir := t.TempDir()
	noDefault := strings.Replace(testRegistry, `"default": "r-test",`, "", 1)
	registryPath := writeFile(t, dir, "revisions.json", noDefault)
	configPath := writeFile(t, dir, "config.yaml", `
registry_path: `+registryPath+`
submission:
  endpoint: http://localhost:9999/submit
`)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Revision)
	assert.Equal(t, DefaultSteps, cfg.Flow.Steps)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "missing endpoint",
			yaml:   "submission:\n  endpoint: \"\"\n",
			errMsg: "submission.endpoint is required",
		},
		{
			name:   "bad guard mode",
			yaml:   "submission:\n  endpoint: http://x\n  guard_mode: eventually\n",
			errMsg: "submission.guard_mode",
		},
		{
			name:   "redis store without address",
			yaml:   "submission:\n  endpoint: http://x\nsession:\n  store: redis\n",
			errMsg: "database.redis.address",
		},
		{
			name:   "required field not declared",
			yaml:   "submission:\n  endpoint: http://x\nflow:\n  fields: [email]\n  required_fields: [email, mobile]\n",
			errMsg: "\"mobile\" is not a configured field",
		},
		{
			name:   "unknown revision",
			yaml:   "registry_path: REGISTRY\nrevision: r-missing\nsubmission:\n  endpoint: http://x\n",
			errMsg: "revision \"r-missing\" not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			registryPath := writeFile(t, dir, "revisions.json", testRegistry)
			yaml := strings.ReplaceAll(tt.yaml, "REGISTRY", registryPath)
			_, err := LoadFromFile(writeFile(t, dir, "config.yaml", yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWorkerConfigHelpers(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"off": {Enabled: false}}}

	assert.False(t, IsWorkerEnabled(cfg, "off"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "unknown").MaxJobsActive)
}

func TestSubmissionConfig(t *testing.T) {
	off := false
	assert.True(t, SubmissionConfig{}.ShouldResetOnFailure())
	assert.False(t, SubmissionConfig{ResetOnFailure: &off}.ShouldResetOnFailure())
	assert.Equal(t, int64(15000), SubmissionConfig{Timeout: 15000}.TimeoutDuration().Milliseconds())
}
