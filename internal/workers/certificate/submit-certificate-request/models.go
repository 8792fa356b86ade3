package submitcertificaterequest

import (
	"certflow/internal/common/logger"
	"certflow/internal/common/observability"
	"certflow/internal/flow/gate"
)

// Input is the form record carried by the process instance.
type Input struct {
	ProcessInstanceKey int64
	Fields             map[string]string
}

type Output struct {
	Submitted    bool   `json:"certificateSubmitted"`
	SubmissionID string `json:"submissionId,omitempty"`
	Message      string `json:"submissionMessage,omitempty"`
	Preview      string `json:"certificatePreview"`
	PaymentURL   string `json:"paymentUrl,omitempty"`
}

type ServiceDependencies struct {
	Logger    logger.Logger
	Transport gate.Transport
	Obs       *observability.Observability
}
