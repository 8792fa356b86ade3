// Package gate implements the submission gate: required-field validation and
// a guarded, at-most-once submission of the form record to the remote endpoint.
package gate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"certflow/internal/common/logger"
	"certflow/internal/common/metrics"
	"certflow/internal/common/observability"
	"certflow/internal/flow/record"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrValidationFailed   = errors.New("REQUIRED_FIELDS_MISSING")
	ErrSubmissionFailed   = errors.New("SUBMISSION_FAILED")
	ErrSubmissionTimeout  = errors.New("SUBMISSION_TIMEOUT")
	ErrSubmissionRejected = errors.New("SUBMISSION_REJECTED")
	ErrSubmissionInFlight = errors.New("SUBMISSION_IN_FLIGHT")
	// ErrSubmissionLocked is returned when a failed attempt left the gate
	// marked as sent and retries are disabled.
	ErrSubmissionLocked = errors.New("SUBMISSION_LOCKED")
)

// ValidationError lists the empty required fields in declared order.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

type State string

const (
	NotSent State = "not_sent"
	Sent    State = "sent"
)

type GuardMode string

const (
	// GuardPreCall marks the gate sent before the network call starts, so a
	// second attempt while one is in flight is refused.
	GuardPreCall GuardMode = "pre_call"
	// GuardPostSuccess only marks the gate after a successful call. Concurrent
	// attempts may both reach the network.
	GuardPostSuccess GuardMode = "post_success"
)

// Response is the endpoint's decoded reply.
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	ID      string                 `json:"id,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Transport performs one network attempt.
type Transport interface {
	Send(ctx context.Context, payload map[string]interface{}) (*Response, error)
}

type Config struct {
	Required         []string
	GuardMode        GuardMode
	ResetOnFailure   bool
	Timeout          time.Duration
	IncludeTimestamp bool
}

// Snapshot is the persisted submission state.
type Snapshot struct {
	State    State     `json:"state"`
	Response *Response `json:"response,omitempty"`
	Attempts int       `json:"attempts"`
}

type Gate struct {
	cfg       Config
	transport Transport
	logger    logger.Logger
	obs       *observability.Observability
	now       func() time.Time

	mu       sync.Mutex
	state    State
	cached   *Response
	inFlight int
	attempts int
}

type Option func(*Gate)

func WithObservability(obs *observability.Observability) Option {
	return func(g *Gate) { g.obs = obs }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func New(cfg Config, transport Transport, log logger.Logger, opts ...Option) *Gate {
	if cfg.GuardMode == "" {
		cfg.GuardMode = GuardPreCall
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	g := &Gate{
		cfg:       cfg,
		transport: transport,
		logger:    log,
		now:       time.Now,
		state:     NotSent,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate returns the missing required fields; empty means valid.
func (g *Gate) Validate(rec record.Record) []string {
	return rec.Missing(g.cfg.Required)
}

// Submit validates rec and sends it at most once. After a success every call
// returns the cached response without touching the network.
func (g *Gate) Submit(ctx context.Context, rec record.Record) (*Response, error) {
	if missing := g.Validate(rec); len(missing) > 0 {
		metrics.SubmissionAttempts.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, &ValidationError{Missing: missing}
	}

	g.mu.Lock()
	if g.cached != nil {
		resp := g.cached
		g.mu.Unlock()
		metrics.SubmissionAttempts.WithLabelValues(metrics.OutcomeCached).Inc()
		return resp, nil
	}
	if g.state == Sent {
		inFlight := g.inFlight > 0
		g.mu.Unlock()
		metrics.SubmissionAttempts.WithLabelValues(metrics.OutcomeInFlight).Inc()
		if inFlight {
			return nil, ErrSubmissionInFlight
		}
		return nil, ErrSubmissionLocked
	}
	if g.cfg.GuardMode == GuardPreCall {
		g.state = Sent
	}
	g.inFlight++
	g.attempts++
	attempt := g.attempts
	g.mu.Unlock()

	resp, err := g.send(ctx, rec, attempt)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight--
	if err != nil {
		if g.cfg.ResetOnFailure && g.cached == nil {
			g.state = NotSent
		}
		return nil, err
	}
	g.state = Sent
	if g.cached == nil {
		g.cached = resp
	}
	return g.cached, nil
}

func (g *Gate) send(ctx context.Context, rec record.Record, attempt int) (*Response, error) {
	ctx, span := g.obs.StartSpan(ctx, "gate.submit",
		attribute.Int("attempt", attempt),
		attribute.String("guard_mode", string(g.cfg.GuardMode)),
	)
	defer span.End()

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	payload := make(map[string]interface{}, len(rec)+1)
	for k, v := range rec {
		payload[k] = v
	}
	if g.cfg.IncludeTimestamp {
		payload["timestamp"] = g.now().UTC().Format(time.RFC3339)
	}

	log := g.logger.WithFields(map[string]interface{}{"attempt": attempt})
	log.Info("submitting certificate request", nil)

	start := time.Now()
	resp, err := g.transport.Send(ctx, payload)
	elapsed := time.Since(start)
	metrics.SubmissionDuration.Observe(elapsed.Seconds())

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil && isTimeout(ctx, err):
		outcome = metrics.OutcomeTimeout
		err = fmt.Errorf("%w: no response within %s", ErrSubmissionTimeout, g.cfg.Timeout)
	case err != nil && errors.Is(err, ErrSubmissionFailed):
		outcome = metrics.OutcomeFailed
	case err != nil:
		outcome = metrics.OutcomeFailed
		err = fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	case resp == nil:
		outcome = metrics.OutcomeFailed
		err = fmt.Errorf("%w: empty response", ErrSubmissionFailed)
	case !resp.Success:
		outcome = metrics.OutcomeRejected
		err = fmt.Errorf("%w: %s", ErrSubmissionRejected, resp.Message)
	}

	metrics.SubmissionAttempts.WithLabelValues(outcome).Inc()
	g.obs.RecordSubmission(ctx, outcome, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		log.Warn("submission failed", map[string]interface{}{
			"outcome":  outcome,
			"error":    err,
			"duration": elapsed.String(),
		})
		return nil, err
	}
	log.Info("submission accepted", map[string]interface{}{
		"duration":     elapsed.String(),
		"submissionId": resp.ID,
	})
	return resp, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// State returns the current submission state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Succeeded reports whether a response has been cached.
func (g *Gate) Succeeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cached != nil
}

// Response returns the cached successful response, if any.
func (g *Gate) Response() *Response {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cached
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.state
	if g.inFlight > 0 && g.cached == nil {
		// an interrupted call must not lock a restored session
		state = NotSent
	}
	return Snapshot{State: state, Response: g.cached, Attempts: g.attempts}
}

func (g *Gate) Restore(s Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s.State
	if g.state == "" {
		g.state = NotSent
	}
	g.cached = s.Response
	g.attempts = s.Attempts
	if g.cached != nil {
		g.state = Sent
	}
}
