// Package preview renders the certificate text shown on the review step.
package preview

import (
	"bytes"
	"strings"
	"text/template"

	"certflow/internal/flow/record"
)

const (
	CertSickLeave  = "Sick Leave"
	CertCarerLeave = "Carer's Leave"
	CertOther      = "Other"

	defaultPhrase = "work due to illness"
)

var phrases = map[string]string{
	CertSickLeave:  "work due to illness",
	CertCarerLeave: "caring responsibilities",
}

const certificateText = `This is to certify that {{.Name}} was assessed and, in my professional opinion, is unfit for {{.Phrase}} from {{.From}} to {{.To}} inclusive.` +
	`{{if .Reason}} Reason provided: {{.Reason}}.{{end}}` +
	`{{if .CertType}} Certificate type: {{.CertType}}.{{end}}`

var tmpl = template.Must(template.New("certificate").Parse(certificateText))

// Phrase maps a certificate type to the wording used in the certificate.
// "Other" uses the free-text description when one was given.
func Phrase(certType, otherLeave string) string {
	if certType == CertOther {
		if text := strings.TrimSpace(otherLeave); text != "" {
			return text
		}
		return defaultPhrase
	}
	if p, ok := phrases[certType]; ok {
		return p
	}
	return defaultPhrase
}

type view struct {
	Name     string
	Phrase   string
	From     string
	To       string
	Reason   string
	CertType string
}

// Render composes the certificate sentence from the record. It never fails;
// empty fields render as blanks.
func Render(rec record.Record) string {
	v := view{
		Name:     rec.FullName(),
		Phrase:   Phrase(rec["certType"], rec["otherLeave"]),
		From:     rec["fromDate"],
		To:       rec["toDate"],
		Reason:   strings.TrimSpace(rec["reason"]),
		CertType: rec["certType"],
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return ""
	}
	return buf.String()
}
