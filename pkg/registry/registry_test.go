package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRevision() Revision {
	return Revision{
		ID:             "r-test",
		Steps:          []Step{{Name: "details"}, {Name: "review"}, {Name: "payment"}},
		Fields:         []string{"firstName", "email"},
		RequiredFields: []string{"email"},
		TransitionMode: "adjacent",
		ReviewStep:     "review",
		PaymentStep:    "payment",
		GuardMode:      "pre_call",
	}
}

func TestShippedRegistryIsValid(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "revisions.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	rev, ok := reg.Find("default")
	require.True(t, ok)
	assert.Equal(t, reg.Default, rev.ID)
}

func TestParse(t *testing.T) {
	_, err := Parse([]byte(`{"revisions":[{"id":"a"},{"id":"a"}]}`))
	assert.ErrorContains(t, err, "duplicate revision")

	_, err = Parse([]byte(`{"revisions":[{"displayName":"no id"}]}`))
	assert.ErrorContains(t, err, "without id")

	_, err = Parse([]byte(`{`))
	assert.ErrorContains(t, err, "parse revision registry")
}

func TestRevisionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Revision)
		errMsg string
	}{
		{name: "valid", mutate: func(*Revision) {}},
		{name: "one step", mutate: func(r *Revision) { r.Steps = r.Steps[:1] }, errMsg: "at least two steps"},
		{name: "unnamed step", mutate: func(r *Revision) { r.Steps[0].Name = "" }, errMsg: "step without name"},
		{name: "duplicate step", mutate: func(r *Revision) { r.Steps[1].Name = "details" }, errMsg: "duplicate step"},
		{name: "bad next", mutate: func(r *Revision) { r.Steps[0].Next = "nowhere" }, errMsg: "targets unknown step"},
		{name: "bad mode", mutate: func(r *Revision) { r.TransitionMode = "random" }, errMsg: "unknown transition mode"},
		{name: "bad guard", mutate: func(r *Revision) { r.GuardMode = "" }, errMsg: "unknown guard mode"},
		{name: "unknown date step", mutate: func(r *Revision) { r.DateStep = "dates" }, errMsg: "date step"},
		{name: "no review", mutate: func(r *Revision) { r.ReviewStep = "" }, errMsg: "review step is required"},
		{
			name:   "jump without payment",
			mutate: func(r *Revision) { r.PaymentStep = ""; r.ReviewJumpsToPayment = true },
			errMsg: "review jump needs a payment step",
		},
		{name: "required not a field", mutate: func(r *Revision) { r.RequiredFields = []string{"mobile"} }, errMsg: "required field \"mobile\""},
		{name: "negative timeout", mutate: func(r *Revision) { r.TimeoutMillis = -1 }, errMsg: "timeout must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := validRevision()
			tt.mutate(&rev)
			err := rev.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestRegistryValidate(t *testing.T) {
	assert.ErrorContains(t, (&RevisionRegistry{}).Validate(), "no revisions")

	reg := &RevisionRegistry{Default: "r-missing", Revisions: []Revision{validRevision()}}
	assert.ErrorContains(t, reg.Validate(), "default revision \"r-missing\" not found")

	broken := validRevision()
	broken.ID = "r-broken"
	broken.GuardMode = "later"
	reg = &RevisionRegistry{Default: "r-test", Revisions: []Revision{validRevision(), broken}}
	assert.ErrorContains(t, reg.Validate(), "revision r-broken")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revisions.json")
	reg := &RevisionRegistry{Version: "1.0.0", Default: "r-test", Revisions: []Revision{validRevision()}}

	require.NoError(t, Save(reg, path))
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), reg.LastUpdated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg, loaded)
}
