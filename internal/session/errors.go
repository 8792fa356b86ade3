package session

import (
	"errors"

	commonerrors "certflow/internal/common/errors"
	"certflow/internal/flow/flowerr"
)

var ErrStoreFailed = errors.New("SESSION_STORE_FAILED")

func init() {
	commonerrors.RegisterClassifier(classify)
}

// classify maps session errors onto the shared error codes and defers the
// rest to the flow mapping.
func classify(err error) *commonerrors.StandardError {
	switch {
	case errors.Is(err, ErrPaymentNotReady):
		return commonerrors.NewPaymentNotReadyError(err)
	case errors.Is(err, ErrSessionNotFound):
		return commonerrors.NewSessionNotFoundError("", err)
	case errors.Is(err, ErrStoreFailed):
		return commonerrors.NewSessionStoreFailedError(err)
	}
	return flowerr.Classify(err)
}
