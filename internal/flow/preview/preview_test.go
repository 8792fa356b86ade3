package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"certflow/internal/flow/record"
)

func TestPhrase(t *testing.T) {
	tests := []struct {
		certType string
		other    string
		want     string
	}{
		{certType: CertSickLeave, want: "work due to illness"},
		{certType: CertCarerLeave, want: "caring responsibilities"},
		{certType: CertOther, other: "  jury duty ", want: "jury duty"},
		{certType: CertOther, other: "   ", want: "work due to illness"},
		{certType: "", want: "work due to illness"},
		{certType: "Something Else", other: "ignored", want: "work due to illness"},
	}

	for _, tt := range tests {
		t.Run(tt.certType+"/"+tt.other, func(t *testing.T) {
			assert.Equal(t, tt.want, Phrase(tt.certType, tt.other))
		})
	}
}

func TestRender(t *testing.T) {
	rec := record.Record{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"certType":  CertCarerLeave,
		"fromDate":  "2026-03-08",
		"toDate":    "2026-03-09",
		"reason":    "Looking after a parent",
	}

	got := Render(rec)

	assert.Equal(t,
		"This is to certify that Ada Lovelace was assessed and, in my professional opinion, is unfit for caring responsibilities from 2026-03-08 to 2026-03-09 inclusive."+
			" Reason provided: Looking after a parent."+
			" Certificate type: Carer's Leave.",
		got)
}

func TestRender_EmptyRecord(t *testing.T) {
	got := Render(record.Record{})

	assert.Equal(t,
		"This is to certify that  was assessed and, in my professional opinion, is unfit for work due to illness from  to  inclusive.",
		got)
}

func TestRender_OtherUsesFreeText(t *testing.T) {
	got := Render(record.Record{
		"firstName":  "Grace",
		"certType":   CertOther,
		"otherLeave": "a medical appointment",
		"fromDate":   "2026-03-10",
		"toDate":     "2026-03-10",
	})

	assert.Contains(t, got, "Grace was assessed")
	assert.Contains(t, got, "unfit for a medical appointment from 2026-03-10")
	assert.NotContains(t, got, "Reason provided")
}
