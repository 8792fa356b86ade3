// Package flowerr maps navigator, date range and gate errors onto the shared
// error codes. Importing it registers the mapping with errors.Normalize.
package flowerr

import (
	"errors"

	commonerrors "certflow/internal/common/errors"
	"certflow/internal/flow/daterange"
	"certflow/internal/flow/gate"
	"certflow/internal/flow/navigator"
)

func init() {
	commonerrors.RegisterClassifier(Classify)
}

// Classify returns nil for errors that do not come from the flow packages.
func Classify(err error) *commonerrors.StandardError {
	var verr *gate.ValidationError
	var derr *daterange.Error
	switch {
	case errors.As(err, &verr):
		return commonerrors.NewRequiredFieldsMissingError(verr.Missing, err)
	case errors.As(err, &derr):
		return commonerrors.NewDateRangeInvalidError(derr.Message, err)
	case errors.Is(err, gate.ErrSubmissionTimeout):
		return commonerrors.NewSubmissionTimeoutError(err)
	case errors.Is(err, gate.ErrSubmissionRejected):
		return commonerrors.NewSubmissionRejectedError(err)
	case errors.Is(err, gate.ErrSubmissionInFlight):
		return commonerrors.NewSubmissionInFlightError(err)
	case errors.Is(err, gate.ErrSubmissionLocked):
		se := commonerrors.NewSubmissionFailedError(err)
		se.Retryable = false
		return se
	case errors.Is(err, gate.ErrSubmissionFailed):
		return commonerrors.NewSubmissionFailedError(err)
	case errors.Is(err, navigator.ErrTransitionNotAllowed), errors.Is(err, navigator.ErrUnknownStep):
		return commonerrors.NewTransitionNotAllowedError(err.Error(), err)
	}
	return nil
}
