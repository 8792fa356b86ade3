// Package record holds the flat field-name to value map collected from the
// certificate request form.
package record

import "strings"

// Record maps a field name to its string value. Dates are YYYY-MM-DD strings.
type Record map[string]string

// FieldSource yields the current value of a named input. ok is false when the
// input does not exist.
type FieldSource interface {
	Value(name string) (value string, ok bool)
}

// Values is a FieldSource over a plain map.
type Values map[string]string

func (v Values) Value(name string) (string, bool) {
	val, ok := v[name]
	return val, ok
}

// Build reads every name in fields from src. Missing inputs become "" so the
// returned record always carries every key. A nil source yields an all-empty record.
func Build(fields []string, src FieldSource) Record {
	rec := make(Record, len(fields))
	for _, name := range fields {
		if src == nil {
			rec[name] = ""
			continue
		}
		val, ok := src.Value(name)
		if !ok {
			val = ""
		}
		rec[name] = strings.TrimSpace(val)
	}
	return rec
}

// Missing returns the names in required whose value is empty, preserving the
// order of required.
func (r Record) Missing(required []string) []string {
	missing := []string{}
	for _, name := range required {
		if strings.TrimSpace(r[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// FullName joins first and last name.
func (r Record) FullName() string {
	return strings.TrimSpace(r["firstName"] + " " + r["lastName"])
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
