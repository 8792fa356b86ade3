// Package daterange checks the certificate date range entered on the dates step.
package daterange

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the form's date format.
const DateLayout = "2006-01-02"

var ErrDateRangeInvalid = errors.New("DATE_RANGE_INVALID")

// Rule identifies which check failed.
type Rule string

const (
	RuleMissing   Rule = "missing"
	RuleBackdated Rule = "backdated"
	RuleOrder     Rule = "order"
	RuleSpan      Rule = "span"
)

// Error carries the user-facing message of the first violated rule.
type Error struct {
	Rule    Rule
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return ErrDateRangeInvalid }

// Validator enforces: start at most MaxBackdateDays before today, end not
// before start, and a span strictly shorter than MaxSpanDays.
type Validator struct {
	MaxBackdateDays int
	MaxSpanDays     int
	Now             func() time.Time
}

func New(maxBackdateDays, maxSpanDays int) *Validator {
	return &Validator{
		MaxBackdateDays: maxBackdateDays,
		MaxSpanDays:     maxSpanDays,
		Now:             time.Now,
	}
}

func (v *Validator) today() time.Time {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parse(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	return t, err == nil
}

func days(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// Validate checks the rules in order and returns the first violation as *Error.
func (v *Validator) Validate(from, to string) error {
	start, okStart := parse(from)
	end, okEnd := parse(to)
	if !okStart || !okEnd {
		return &Error{Rule: RuleMissing, Message: "Please select both a start date and an end date."}
	}

	if days(start, v.today()) > v.MaxBackdateDays {
		return &Error{
			Rule:    RuleBackdated,
			Message: fmt.Sprintf("Start date cannot be more than %d days before today.", v.MaxBackdateDays),
		}
	}
	if end.Before(start) {
		return &Error{Rule: RuleOrder, Message: "The end date must be after start date."}
	}
	if days(start, end) >= v.MaxSpanDays {
		return &Error{
			Rule:    RuleSpan,
			Message: fmt.Sprintf("Certificate duration cannot exceed %d days.", v.MaxSpanDays),
		}
	}
	return nil
}
