// Package session binds a navigator, a submission gate and the live field
// values of one user into an explicit, session-scoped state object. Adapters
// call its command methods; all commands on one session are serialised.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"certflow/internal/common/logger"
	"certflow/internal/common/metrics"
	"certflow/internal/common/observability"
	"certflow/internal/flow/daterange"
	"certflow/internal/flow/gate"
	"certflow/internal/flow/navigator"
	"certflow/internal/flow/preview"
	"certflow/internal/flow/record"
)

var ErrPaymentNotReady = errors.New("PAYMENT_NOT_READY")

// Snapshot is the persisted form of a session.
type Snapshot struct {
	ID        string            `json:"id"`
	StepIndex int               `json:"stepIndex"`
	Fields    map[string]string `json:"fields"`
	Gate      gate.Snapshot     `json:"gate"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// View is what adapters render after every command.
type View struct {
	ID         string          `json:"id"`
	Step       navigator.State `json:"step"`
	Submission gate.State      `json:"submission"`
	Submitted  bool            `json:"submitted"`
	Response   *gate.Response  `json:"response,omitempty"`
	Preview    string          `json:"preview,omitempty"`
	Payment    *PaymentTarget  `json:"payment,omitempty"`
}

type Session struct {
	id        string
	def       Definition
	nav       *navigator.Navigator
	gate      *gate.Gate
	dates     *daterange.Validator
	values    record.Values
	logger    logger.Logger
	createdAt time.Time
	now       func() time.Time

	// updatedAt and busy are read by the manager without taking mu, which
	// is held for the whole network call of a submission.
	updatedAt atomic.Value
	busy      atomic.Int32

	mu sync.Mutex
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Transport gate.Transport
	View      navigator.View
	Logger    logger.Logger
	Obs       *observability.Observability
	Now       func() time.Time
}

// New creates a session on the first step with nothing submitted.
func New(id string, def Definition, deps Deps) (*Session, error) {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"sessionId": id})
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	nav, err := navigator.New(def.Navigator, deps.View, log)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        id,
		def:       def,
		nav:       nav,
		gate:      gate.New(def.Gate, deps.Transport, log, gate.WithObservability(deps.Obs), gate.WithClock(now)),
		values:    record.Values{},
		logger:    log,
		createdAt: now(),
		now:       now,
	}
	s.updatedAt.Store(now())

	if def.DateStep != "" {
		s.dates = daterange.New(def.MaxBackdateDays, def.MaxSpanDays)
		s.dates.Now = now
		if err := nav.AddGuard(def.DateStep, navigator.GuardFunc(s.checkDates)); err != nil {
			return nil, err
		}
	}
	if def.Navigator.ReviewStep != "" {
		if err := nav.AddGuard(def.Navigator.ReviewStep, navigator.GuardFunc(s.submitGuard)); err != nil {
			return nil, err
		}
	}

	nav.Render()
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) record() record.Record {
	return record.Build(s.def.Fields, s.values)
}

// checkDates reads the dates the way the submitted record does.
func (s *Session) checkDates(_ context.Context) error {
	rec := record.Build([]string{"fromDate", "toDate"}, s.values)
	return s.dates.Validate(rec["fromDate"], rec["toDate"])
}

func (s *Session) submitGuard(ctx context.Context) error {
	_, err := s.gate.Submit(ctx, s.record())
	return err
}

// SetFields records input values. Unknown names are kept but never submitted.
func (s *Session) SetFields(values map[string]string) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	s.touch()
	return s.view()
}

// Advance moves forward if the current step's guards pass.
func (s *Session) Advance(ctx context.Context) (View, error) {
	defer s.enter()()
	before := s.nav.Index()
	_, err := s.nav.Advance(ctx)
	s.observe(metrics.DirectionForward, before, err)
	s.touch()
	return s.view(), err
}

// AdvanceTo moves to a declared target (explicit transition mode only).
func (s *Session) AdvanceTo(ctx context.Context, target string) (View, error) {
	defer s.enter()()
	before := s.nav.Index()
	_, err := s.nav.AdvanceTo(ctx, target)
	s.observe(metrics.DirectionJump, before, err)
	s.touch()
	return s.view(), err
}

// Retreat moves one step back unconditionally.
func (s *Session) Retreat() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.nav.Index()
	s.nav.Retreat()
	s.observe(metrics.DirectionBackward, before, nil)
	s.touch()
	return s.view()
}

// Submit runs the gate directly, without moving.
func (s *Session) Submit(ctx context.Context) (*gate.Response, error) {
	defer s.enter()()
	s.touch()
	return s.gate.Submit(ctx, s.record())
}

// Validate lists the missing required fields of the current values.
func (s *Session) Validate() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Validate(s.record())
}

// Preview renders the certificate text from the current values.
func (s *Session) Preview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return preview.Render(s.record())
}

// Payment returns the payment target once the submission has succeeded and
// the payment step is showing.
func (s *Session) Payment() (PaymentTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gate.Succeeded() || !s.nav.OnPayment() || s.def.Payment.URL == "" {
		return PaymentTarget{}, ErrPaymentNotReady
	}
	return s.def.Payment, nil
}

// View returns the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Session) view() View {
	v := View{
		ID:         s.id,
		Step:       s.nav.State(),
		Submission: s.gate.State(),
		Response:   s.gate.Response(),
	}
	v.Submitted = v.Response != nil
	if s.def.Preview && s.nav.IsReview() {
		v.Preview = preview.Render(s.record())
	}
	if v.Submitted && s.nav.OnPayment() && s.def.Payment.URL != "" {
		p := s.def.Payment
		v.Payment = &p
	}
	return v
}

func (s *Session) observe(direction string, before int, err error) {
	outcome := metrics.OutcomeMoved
	switch {
	case err != nil:
		outcome = metrics.OutcomeHeld
	case s.nav.Index() == before:
		outcome = metrics.OutcomeNoop
	}
	metrics.StepTransitions.WithLabelValues(direction, outcome).Inc()
	s.logger.Debug("step transition", map[string]interface{}{
		"direction": direction,
		"from":      before,
		"to":        s.nav.Index(),
		"outcome":   outcome,
	})
}

// enter marks the session busy and takes the command lock. The returned func
// releases both.
func (s *Session) enter() func() {
	s.busy.Add(1)
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.busy.Add(-1)
	}
}

// Busy reports whether a command that may reach the network is running or
// waiting on this session.
func (s *Session) Busy() bool {
	return s.busy.Load() > 0
}

// UpdatedAt is the time of the last command. It never blocks.
func (s *Session) UpdatedAt() time.Time {
	t, _ := s.updatedAt.Load().(time.Time)
	return t
}

func (s *Session) touch() {
	s.updatedAt.Store(s.now())
}

// Snapshot captures the session for a Store.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make(map[string]string, len(s.values))
	for k, v := range s.values {
		fields[k] = v
	}
	return Snapshot{
		ID:        s.id,
		StepIndex: s.nav.Index(),
		Fields:    fields,
		Gate:      s.gate.Snapshot(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.UpdatedAt(),
	}
}

// Restore rebuilds a session from a snapshot.
func Restore(snap Snapshot, def Definition, deps Deps) (*Session, error) {
	s, err := New(snap.ID, def, deps)
	if err != nil {
		return nil, err
	}
	for k, v := range snap.Fields {
		s.values[k] = v
	}
	s.gate.Restore(snap.Gate)
	s.nav.Restore(snap.StepIndex)
	s.createdAt = snap.CreatedAt
	s.updatedAt.Store(snap.UpdatedAt)
	return s, nil
}
