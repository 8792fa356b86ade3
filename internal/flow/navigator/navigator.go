// Package navigator implements the step state machine of the request form.
//
// The navigator owns the index of the visible step. Forward moves are
// conditioned on the guards registered for the step being left; backward moves
// are unconditional. Rendering goes through a View so the machine can be driven
// without a browser.
package navigator

import (
	"context"
	"errors"
	"fmt"

	"certflow/internal/common/logger"
)

// Mode selects which forward transitions are allowed.
type Mode string

const (
	// ModeAdjacent allows only ±1 moves (plus the optional review→payment jump).
	ModeAdjacent Mode = "adjacent"
	// ModeExplicit honours per-step next targets and AdvanceTo.
	ModeExplicit Mode = "explicit"
)

var (
	ErrTransitionNotAllowed = errors.New("TRANSITION_NOT_ALLOWED")
	ErrUnknownStep          = errors.New("UNKNOWN_STEP")
)

// Step is one page. Next names the step a continue button targets in explicit mode.
type Step struct {
	Name string
	Next string
}

// View is the display collaborator. Implementations must tolerate being
// called for every step on every render.
type View interface {
	SetActive(step int, active bool)
	SetProgress(percent float64)
}

// Guard must pass before the navigator leaves the step it is registered on.
type Guard interface {
	Check(ctx context.Context) error
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx context.Context) error

func (f GuardFunc) Check(ctx context.Context) error { return f(ctx) }

// Config declares the steps in display order and the special review and
// payment steps.
type Config struct {
	Steps                []Step
	Mode                 Mode
	ReviewStep           string
	PaymentStep          string
	ReviewJumpsToPayment bool
}

// State is a snapshot of the navigator for adapters.
type State struct {
	Index     int     `json:"index"`
	Step      string  `json:"step"`
	StepCount int     `json:"stepCount"`
	Progress  float64 `json:"progress"`
}

// Navigator keeps exactly one step active and moves between steps behind
// the guards registered on them. It is not safe for concurrent use.
type Navigator struct {
	steps         []Step
	byName        map[string]int
	mode          Mode
	index         int
	review        int
	payment       int
	jumpToPayment bool
	guards        map[int][]Guard
	view          View
	logger        logger.Logger
}

// New returns a navigator positioned on the first step. view may be nil.
func New(cfg Config, view View, log logger.Logger) (*Navigator, error) {
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("navigator needs at least one step")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAdjacent
	}
	if cfg.Mode != ModeAdjacent && cfg.Mode != ModeExplicit {
		return nil, fmt.Errorf("unknown transition mode %q", cfg.Mode)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	byName := make(map[string]int, len(cfg.Steps))
	for i, s := range cfg.Steps {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		byName[s.Name] = i
	}

	n := &Navigator{
		steps:         append([]Step(nil), cfg.Steps...),
		byName:        byName,
		mode:          cfg.Mode,
		review:        -1,
		payment:       -1,
		jumpToPayment: cfg.ReviewJumpsToPayment,
		guards:        make(map[int][]Guard),
		view:          view,
		logger:        log,
	}
	if cfg.ReviewStep != "" {
		idx, ok := byName[cfg.ReviewStep]
		if !ok {
			return nil, fmt.Errorf("%w: review step %q", ErrUnknownStep, cfg.ReviewStep)
		}
		n.review = idx
	}
	if cfg.PaymentStep != "" {
		idx, ok := byName[cfg.PaymentStep]
		if !ok {
			return nil, fmt.Errorf("%w: payment step %q", ErrUnknownStep, cfg.PaymentStep)
		}
		n.payment = idx
	}
	for _, s := range cfg.Steps {
		if s.Next == "" {
			continue
		}
		if _, ok := byName[s.Next]; !ok {
			return nil, fmt.Errorf("%w: step %q targets %q", ErrUnknownStep, s.Name, s.Next)
		}
	}
	return n, nil
}

// AddGuard registers g on the named step.
func (n *Navigator) AddGuard(step string, g Guard) error {
	idx, ok := n.byName[step]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	n.guards[idx] = append(n.guards[idx], g)
	return nil
}

// Progress is the indicator width in percent for a zero-based index.
func Progress(index, count int) float64 {
	if count <= 0 || index < 0 || index >= count {
		return 0
	}
	return float64(index+1) / float64(count) * 100
}

func (n *Navigator) current() (int, bool) {
	return n.index, n.index >= 0 && n.index < len(n.steps)
}

func (n *Navigator) State() State {
	st := State{Index: n.index, StepCount: len(n.steps)}
	if i, ok := n.current(); ok {
		st.Step = n.steps[i].Name
		st.Progress = Progress(i, len(n.steps))
	}
	return st
}

// StepCount returns the number of steps.
func (n *Navigator) StepCount() int { return len(n.steps) }

// Index returns the raw current index.
func (n *Navigator) Index() int { return n.index }

// IsReview reports whether the current step is the review step.
func (n *Navigator) IsReview() bool { return n.review >= 0 && n.index == n.review }

// OnPayment reports whether the current step is the payment step.
func (n *Navigator) OnPayment() bool { return n.payment >= 0 && n.index == n.payment }

// Restore positions the navigator without running guards, for rehydrating a
// persisted session. An out-of-range index leaves the navigator without an
// active step; navigation then no-ops.
func (n *Navigator) Restore(index int) {
	n.index = index
	n.Render()
}

// Render marks exactly one step active and sets the progress width.
func (n *Navigator) Render() {
	if n.view == nil {
		return
	}
	i, ok := n.current()
	if !ok {
		return
	}
	for j := range n.steps {
		n.view.SetActive(j, j == i)
	}
	n.view.SetProgress(Progress(i, len(n.steps)))
}

func (n *Navigator) nextIndex(i int) int {
	if i == n.review && n.jumpToPayment && n.payment >= 0 {
		return n.payment
	}
	if n.mode == ModeExplicit && n.steps[i].Next != "" {
		return n.byName[n.steps[i].Next]
	}
	if i+1 > len(n.steps)-1 {
		return len(n.steps) - 1
	}
	return i + 1
}

func (n *Navigator) checkGuards(ctx context.Context, i int) error {
	for _, g := range n.guards[i] {
		if err := g.Check(ctx); err != nil {
			n.logger.Info("step guard blocked advance", map[string]interface{}{
				"step":  n.steps[i].Name,
				"error": err,
			})
			return err
		}
	}
	return nil
}

// Advance leaves the current step if its guards pass. On the last step, or
// when no step is active, it is a no-op. The returned state is always the
// state after the call.
func (n *Navigator) Advance(ctx context.Context) (State, error) {
	i, ok := n.current()
	if !ok {
		return n.State(), nil
	}
	next := n.nextIndex(i)
	if next == i {
		return n.State(), nil
	}
	if err := n.checkGuards(ctx, i); err != nil {
		return n.State(), err
	}
	n.index = next
	n.Render()
	return n.State(), nil
}

// AdvanceTo moves to a declared target in explicit mode. Forward targets run
// the current step's guards and may not skip past the review step; backward
// targets move unconditionally.
func (n *Navigator) AdvanceTo(ctx context.Context, target string) (State, error) {
	if n.mode != ModeExplicit {
		return n.State(), fmt.Errorf("%w: targeted moves need explicit mode", ErrTransitionNotAllowed)
	}
	t, ok := n.byName[target]
	if !ok {
		return n.State(), fmt.Errorf("%w: %q", ErrUnknownStep, target)
	}
	i, ok := n.current()
	if !ok || t == i {
		return n.State(), nil
	}
	if t > i {
		if n.review >= 0 && i < n.review && t > n.review {
			return n.State(), fmt.Errorf("%w: %q would skip the review step", ErrTransitionNotAllowed, target)
		}
		if err := n.checkGuards(ctx, i); err != nil {
			return n.State(), err
		}
	}
	n.index = t
	n.Render()
	return n.State(), nil
}

// Retreat moves one step back and re-renders. The index never drops below
// zero; with no active step it is a no-op.
func (n *Navigator) Retreat() State {
	i, ok := n.current()
	if !ok {
		return n.State()
	}
	if i > 0 {
		n.index = i - 1
	}
	n.Render()
	return n.State()
}
