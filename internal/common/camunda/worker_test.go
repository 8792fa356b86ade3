package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"certflow/internal/common/config"
	commonerrors "certflow/internal/common/errors"
	"certflow/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJobHandler struct {
	mock.Mock
}

func (m *MockJobHandler) Register() error {
	return m.Called().Error(0)
}

func (m *MockJobHandler) Close() {
	m.Called()
}

func (m *MockJobHandler) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockJobHandler) GetTaskType() string {
	return m.Called().String(0)
}

func (m *MockJobHandler) IsEnabled() bool {
	return m.Called().Bool(0)
}

func newMockHandler(taskType string, enabled bool) *MockJobHandler {
	h := &MockJobHandler{}
	h.On("GetTaskType").Return(taskType)
	h.On("IsEnabled").Return(enabled)
	return h
}

func TestWorkerSet_AddAndClose(t *testing.T) {
	set := NewWorkerSet(logger.NewTestLogger(t))

	var closed []string
	first := newMockHandler("certificate.request.submit", true)
	first.On("Register").Return(nil)
	first.On("Close").Run(func(mock.Arguments) { closed = append(closed, "first") })
	second := newMockHandler("certificate.request.notify", true)
	second.On("Register").Return(nil)
	second.On("Close").Run(func(mock.Arguments) { closed = append(closed, "second") })
	disabled := newMockHandler("certificate.request.disabled", false)

	require.NoError(t, set.Add(first))
	require.NoError(t, set.Add(second))
	require.NoError(t, set.Add(disabled))
	assert.Equal(t, 2, set.Len())
	disabled.AssertNotCalled(t, "Register")

	set.Close()
	assert.Equal(t, []string{"second", "first"}, closed)
	assert.Equal(t, 0, set.Len())
}

func TestWorkerSet_RegisterFailure(t *testing.T) {
	set := NewWorkerSet(logger.NewNoOpLogger())
	h := newMockHandler("certificate.request.submit", true)
	h.On("Register").Return(errors.New("broker unavailable"))

	err := set.Add(h)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "register certificate.request.submit")
	assert.Equal(t, 0, set.Len())
}

func TestWorkerSet_HealthCheck(t *testing.T) {
	set := NewWorkerSet(logger.NewNoOpLogger())
	h := newMockHandler("certificate.request.submit", true)
	h.On("Register").Return(nil)
	h.On("HealthCheck", mock.Anything).Return(nil).Once()
	h.On("HealthCheck", mock.Anything).Return(errors.New("topology timeout")).Once()
	require.NoError(t, set.Add(h))

	assert.NoError(t, set.HealthCheck(context.Background()))
	err := set.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certificate.request.submit: topology timeout")
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.New("rpc error: code = Unavailable desc = connection refused")))
	assert.False(t, IsRetryableError(errors.New("invalid argument")))
}

func TestExecuteWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}}}

	t.Run("transient errors are retried", func(t *testing.T) {
		attempts := 0
		result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("connection reset by peer")
			}
			return "ok", nil
		}, "topology")

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent errors fail fast", func(t *testing.T) {
		attempts := 0
		_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			attempts++
			return nil, errors.New("invalid job key")
		}, "complete")

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
		stdErr := commonerrors.Normalize(err)
		assert.Equal(t, commonerrors.ErrCodeExternalService, stdErr.Code)
		assert.False(t, stdErr.Retryable)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			attempts++
			return nil, errors.New("unavailable")
		}, "topology")

		require.Error(t, err)
		assert.Equal(t, 3, attempts)
		assert.Contains(t, commonerrors.Normalize(err).Details, "after 2 attempts")
		assert.True(t, commonerrors.Normalize(err).Retryable)
	})
}

func TestClientConfigFromApp(t *testing.T) {
	cfg := ClientConfigFromApp(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 5000})

	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)
}
