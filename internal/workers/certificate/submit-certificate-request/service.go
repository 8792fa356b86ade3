package submitcertificaterequest

import (
	"context"
	"sync"
	"time"

	"certflow/internal/common/logger"
	"certflow/internal/common/observability"
	"certflow/internal/flow/daterange"
	"certflow/internal/flow/gate"
	"certflow/internal/flow/preview"
	"certflow/internal/flow/record"
)

// Service submits one certificate request per process instance. The gate of
// an instance outlives the job so that a retried job after a lost completion
// gets the cached response instead of a second network call.
type Service struct {
	config    *Config
	logger    logger.Logger
	transport gate.Transport
	obs       *observability.Observability
	now       func() time.Time

	mu    sync.Mutex
	gates map[int64]*instanceGate
}

type instanceGate struct {
	gate     *gate.Gate
	lastUsed time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:    config,
		logger:    deps.Logger,
		transport: deps.Transport,
		obs:       deps.Obs,
		now:       time.Now,
		gates:     make(map[int64]*instanceGate),
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	rec := record.Build(s.config.Fields, record.Values(input.Fields))
	g := s.gateFor(input.ProcessInstanceKey)

	s.logger.Info("Executing certificate submission", map[string]interface{}{
		"processInstanceKey": input.ProcessInstanceKey,
		"certType":           rec["certType"],
	})

	if err := s.checkDates(g, rec); err != nil {
		return nil, err
	}

	resp, err := g.Submit(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &Output{
		Submitted:    true,
		SubmissionID: resp.ID,
		Message:      resp.Message,
		Preview:      preview.Render(rec),
		PaymentURL:   s.config.PaymentURL,
	}, nil
}

// checkDates applies the dates step guard once the required fields are
// present. A submitted instance is not re-checked so that retries still see
// the cached outcome after the dates age.
func (s *Service) checkDates(g *gate.Gate, rec record.Record) error {
	if !s.config.checksDates() || g.Succeeded() || len(g.Validate(rec)) > 0 {
		return nil
	}
	v := daterange.New(s.config.MaxBackdateDays, s.config.MaxSpanDays)
	v.Now = s.now
	return v.Validate(rec["fromDate"], rec["toDate"])
}

func (s *Service) gateFor(key int64) *gate.Gate {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)

	ig, ok := s.gates[key]
	if !ok {
		ig = &instanceGate{
			gate: gate.New(s.config.gateConfig(), s.transport, s.logger.WithFields(map[string]interface{}{
				"processInstanceKey": key,
			}), gate.WithObservability(s.obs)),
		}
		s.gates[key] = ig
	}
	ig.lastUsed = now
	return ig.gate
}

// evictLocked drops idle gates. A gate that has succeeded is kept for
// SubmittedRetention so that a late job retry never sends the record again.
func (s *Service) evictLocked(now time.Time) {
	for key, ig := range s.gates {
		ttl := s.config.ResultTTL
		if ig.gate.Succeeded() {
			ttl = s.config.SubmittedRetention
		}
		if ttl > 0 && now.Sub(ig.lastUsed) > ttl {
			delete(s.gates, key)
		}
	}
}

// Tracked reports how many process instances currently have a gate.
func (s *Service) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gates)
}
