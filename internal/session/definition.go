package session

import (
	"certflow/internal/common/config"
	"certflow/internal/flow/gate"
	"certflow/internal/flow/navigator"
)

// PaymentTarget is where the payment trigger sends the user. Embedded targets
// open in a frame on the payment step, others in a new browsing context.
type PaymentTarget struct {
	URL      string `json:"url"`
	Embedded bool   `json:"embedded"`
}

// Definition is the fixed, per-deployment description of the flow.
type Definition struct {
	Navigator       navigator.Config
	Fields          []string
	Gate            gate.Config
	DateStep        string
	MaxBackdateDays int
	MaxSpanDays     int
	Preview         bool
	Payment         PaymentTarget
}

// DefinitionFromConfig maps the loaded configuration onto a flow definition.
func DefinitionFromConfig(cfg *config.Config) Definition {
	steps := make([]navigator.Step, len(cfg.Flow.Steps))
	for i, s := range cfg.Flow.Steps {
		steps[i] = navigator.Step{Name: s.Name, Next: s.Next}
	}
	return Definition{
		Navigator: navigator.Config{
			Steps:                steps,
			Mode:                 navigator.Mode(cfg.Flow.TransitionMode),
			ReviewStep:           cfg.Flow.ReviewStep,
			PaymentStep:          cfg.Flow.PaymentStep,
			ReviewJumpsToPayment: cfg.Flow.ReviewJumpsToPayment,
		},
		Fields: append([]string(nil), cfg.Flow.Fields...),
		Gate: gate.Config{
			Required:         append([]string(nil), cfg.Flow.RequiredFields...),
			GuardMode:        gate.GuardMode(cfg.Submission.GuardMode),
			ResetOnFailure:   cfg.Submission.ShouldResetOnFailure(),
			Timeout:          cfg.Submission.TimeoutDuration(),
			IncludeTimestamp: cfg.Submission.IncludeTimestamp,
		},
		DateStep:        cfg.Flow.DateStep,
		MaxBackdateDays: cfg.Flow.MaxBackdateDays,
		MaxSpanDays:     cfg.Flow.MaxSpanDays,
		Preview:         cfg.Flow.Preview,
		Payment: PaymentTarget{
			URL:      cfg.Payment.URL,
			Embedded: cfg.Payment.Embedded,
		},
	}
}
