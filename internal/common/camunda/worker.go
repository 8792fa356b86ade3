// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"

	"certflow/internal/common/logger"
)

// JobHandler is implemented by every worker handler.
type JobHandler interface {
	Register() error
	Close()
	HealthCheck(ctx context.Context) error
	GetTaskType() string
	IsEnabled() bool
}

// WorkerSet registers a group of handlers and closes them together.
type WorkerSet struct {
	logger   logger.Logger
	handlers []JobHandler
}

func NewWorkerSet(log logger.Logger) *WorkerSet {
	return &WorkerSet{logger: log}
}

// Add registers h and keeps it for Close. Disabled handlers are skipped.
func (s *WorkerSet) Add(h JobHandler) error {
	if !h.IsEnabled() {
		s.logger.Info("worker disabled", map[string]interface{}{"taskType": h.GetTaskType()})
		return nil
	}
	if err := h.Register(); err != nil {
		return fmt.Errorf("register %s: %w", h.GetTaskType(), err)
	}
	s.handlers = append(s.handlers, h)
	s.logger.Info("worker started", map[string]interface{}{"taskType": h.GetTaskType()})
	return nil
}

func (s *WorkerSet) Len() int {
	return len(s.handlers)
}

// HealthCheck returns the first failing handler's error.
func (s *WorkerSet) HealthCheck(ctx context.Context) error {
	for _, h := range s.handlers {
		if err := h.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", h.GetTaskType(), err)
		}
	}
	return nil
}

// Close stops handlers in reverse registration order.
func (s *WorkerSet) Close() {
	for i := len(s.handlers) - 1; i >= 0; i-- {
		h := s.handlers[i]
		s.logger.Info("stopping worker", map[string]interface{}{"taskType": h.GetTaskType()})
		h.Close()
	}
	s.handlers = nil
}
