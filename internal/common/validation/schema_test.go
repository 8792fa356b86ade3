package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	pattern := `^\d{4}-\d{2}-\d{2}$`
	maxLen := 5
	schema := JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"name":     {Type: "string", MaxLength: &maxLen},
			"fromDate": {Type: "string", Pattern: &pattern},
			"certType": {Type: "string", Enum: []string{"", "Sick Leave"}},
			"consent":  {Type: "boolean"},
		},
		Required: []string{"name", "consent"},
	}

	t.Run("valid", func(t *testing.T) {
		result := ValidateInput(map[string]interface{}{
			"name": "Ada", "consent": true, "fromDate": "2026-03-09", "certType": "",
		}, schema)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("empty date skips the pattern", func(t *testing.T) {
		result := ValidateInput(map[string]interface{}{"name": "Ada", "consent": false, "fromDate": ""}, schema)
		assert.True(t, result.Valid)
	})

	t.Run("errors are ordered", func(t *testing.T) {
		result := ValidateInput(map[string]interface{}{
			"name":     "Augusta",
			"fromDate": "9/3/26",
			"certType": "Holiday",
			"extra":    1,
		}, schema)

		require.False(t, result.Valid)
		codes := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			codes[i] = e.Field + ":" + e.Code
		}
		assert.Equal(t, []string{
			"consent:REQUIRED_FIELD_MISSING",
			"certType:INVALID_ENUM_VALUE",
			"extra:EXTRA_FIELD",
			"fromDate:PATTERN_MISMATCH",
			"name:MAX_LENGTH_VIOLATION",
		}, codes)
		assert.True(t, result.HasErrors("extra"))
		assert.Len(t, result.GetErrorMessages(), 5)
	})

	t.Run("wrong type", func(t *testing.T) {
		result := ValidateInput(map[string]interface{}{"name": 12, "consent": "yes"}, schema)
		require.Len(t, result.Errors, 2)
		assert.Equal(t, "INVALID_TYPE", result.Errors[0].Code)
		assert.Equal(t, "INVALID_TYPE", result.Errors[1].Code)
	})
}

func TestDocumentValidator(t *testing.T) {
	v := MustDocumentValidator(`{"type":"object","required":["success"],"properties":{"success":{"type":"boolean"}}}`)

	problems, err := v.Validate([]byte(`{"success":true}`))
	require.NoError(t, err)
	assert.Nil(t, problems)

	problems, err = v.Validate([]byte(`{"success":1}`))
	require.NoError(t, err)
	assert.Len(t, problems, 1)

	_, err = v.Validate([]byte(`{`))
	assert.Error(t, err)

	_, err = NewDocumentValidator(`{"type":`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustDocumentValidator(`nope`) })
}
