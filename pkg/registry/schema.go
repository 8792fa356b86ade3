// pkg/registry/schema.go
package registry

// RevisionRegistry lists the known revisions of the certificate request form.
type RevisionRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Default     string     `json:"default"`
	Revisions   []Revision `json:"revisions"`
}

// Revision captures everything that differs between form revisions: the page
// layout, the record fields and how strictly the submission is guarded.
type Revision struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"displayName"`
	Description          string   `json:"description"`
	Steps                []Step   `json:"steps"`
	Fields               []string `json:"fields"`
	RequiredFields       []string `json:"requiredFields"`
	TransitionMode       string   `json:"transitionMode"`
	ReviewStep           string   `json:"reviewStep"`
	PaymentStep          string   `json:"paymentStep,omitempty"`
	DateStep             string   `json:"dateStep,omitempty"`
	ReviewJumpsToPayment bool     `json:"reviewJumpsToPayment,omitempty"`
	GuardMode            string   `json:"guardMode"`
	ResetOnFailure       bool     `json:"resetOnFailure"`
	IncludeTimestamp     bool     `json:"includeTimestamp,omitempty"`
	TimeoutMillis        int      `json:"timeoutMillis,omitempty"`
	HasPreview           bool     `json:"hasPreview,omitempty"`
	Tags                 []string `json:"tags,omitempty"`
}

type Step struct {
	Name string `json:"name"`
	Next string `json:"next,omitempty"`
}
