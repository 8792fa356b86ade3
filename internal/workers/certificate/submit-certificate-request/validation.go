package submitcertificaterequest

import (
	"certflow/internal/common/validation"
	"certflow/internal/flow/daterange"
	"certflow/internal/flow/preview"
)

var datePattern = `^\d{4}-\d{2}-\d{2}$`

// GetInputSchema checks the types of the form fields that are present.
// Presence of required fields is the gate's job so that the missing list
// comes back in declared order.
func GetInputSchema(fields []string) validation.JSONSchema {
	props := make(map[string]validation.Property, len(fields))
	for _, f := range fields {
		props[f] = validation.Property{
			Type:      "string",
			MaxLength: intPtr(500),
		}
	}
	if _, ok := props["certType"]; ok {
		props["certType"] = validation.Property{
			Type:        "string",
			Description: "Certificate type selected on the certificate step",
			Enum:        []string{"", preview.CertSickLeave, preview.CertCarerLeave, preview.CertOther},
		}
	}
	for _, name := range []string{"fromDate", "toDate", "dob"} {
		if _, ok := props[name]; ok {
			props[name] = validation.Property{
				Type:        "string",
				Description: "Calendar date in " + daterange.DateLayout + " form",
				Pattern:     &datePattern,
			}
		}
	}
	return validation.JSONSchema{
		Type:       "object",
		Properties: props,
		// process variables carry more than the form
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
