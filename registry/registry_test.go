package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bt-bridge/voice-gateway/shared"
)

type fakeCRM struct {
	contacts map[string]*Contact
	findErr  error
	logged   []string
}

func (f *fakeCRM) FindByPhone(_ context.Context, phone string) (*Contact, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.contacts[phone], nil
}

func (f *fakeCRM) Create(_ context.Context, contact *Contact) (*Contact, error) {
	created := *contact
	created.Id = "contact-1"
	return &created, nil
}

func (f *fakeCRM) LogInteraction(_ context.Context, contactId, note string) error {
	f.logged = append(f.logged, contactId+": "+note)
	return nil
}

type fakeScheduler struct {
	slots   []string
	bookErr error
}

func (f *fakeScheduler) Availability(_ context.Context, _ string) ([]string, error) {
	return f.slots, nil
}

func (f *fakeScheduler) Book(_ context.Context, _, _ string) (string, error) {
	if f.bookErr != nil {
		return "", f.bookErr
	}
	return "conf-42", nil
}

type panicHandler struct{}

func (panicHandler) Schema() Schema {
	return Schema{
		Name:       "explode",
		Parameters: map[string]any{"type": "object"},
	}
}

func (panicHandler) Invoke(context.Context, map[string]any) (map[string]any, error) {
	panic("boom")
}

func newTestRegistry(t *testing.T) (*Registry, *fakeCRM) {
	t.Helper()
	crm := &fakeCRM{contacts: map[string]*Contact{
		"+15551234567": {Id: "c-9", Name: "Ada", Phone: "+15551234567"},
	}}
	sched := &fakeScheduler{slots: []string{"2026-09-01T10:00", "2026-09-01T11:00"}}
	reg, err := New(shared.NewNopLogger(),
		NewLookupContact(crm),
		NewCreateContact(crm),
		NewLogInteraction(crm),
		NewCheckAvailability(sched),
		NewBookAppointment(sched),
		panicHandler{},
	)
	require.NoError(t, err)
	return reg, crm
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	crm := &fakeCRM{}
	_, err := New(shared.NewNopLogger(), NewLookupContact(crm), NewLookupContact(crm))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tool name")
}

func TestNewRequiresLogger(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, shared.ErrNoLogger)
}

func TestDefinitionsFiltersAndDeduplicates(t *testing.T) {
	reg, _ := newTestRegistry(t)

	defs := reg.Definitions([]string{"book_appointment", "lookup_contact", "book_appointment", "no_such_tool"})
	require.Len(t, defs, 2)
	assert.Equal(t, "book_appointment", defs[0].Name)
	assert.Equal(t, "lookup_contact", defs[1].Name)
}

func TestExecuteUnknownTool(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result := reg.Execute(context.Background(), "no_such_tool", []byte(`{}`))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Failure(), shared.ErrUnknownTool)
}

func TestExecuteInvalidArguments(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tests := []struct {
		name string
		tool string
		args string
	}{
		{name: "not json", tool: "lookup_contact", args: `{"phone"`},
		{name: "missing required", tool: "lookup_contact", args: `{}`},
		{name: "wrong type", tool: "lookup_contact", args: `{"phone": 42}`},
		{name: "missing slot", tool: "book_appointment", args: `{"contact_id":"c-9"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := reg.Execute(context.Background(), tc.tool, []byte(tc.args))
			assert.False(t, result.Success)
			assert.ErrorIs(t, result.Failure(), shared.ErrInvalidArguments)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestExecuteLookupContact(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result := reg.Execute(context.Background(), "lookup_contact", []byte(`{"phone":"+15551234567"}`))
	require.True(t, result.Success)
	assert.Equal(t, true, result.Fields["found"])

	payload, err := result.Payload()
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["found"])
}

func TestExecuteLookupContactNoMatch(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result := reg.Execute(context.Background(), "lookup_contact", []byte(`{"phone":"+15550000000"}`))
	require.True(t, result.Success)
	assert.Equal(t, false, result.Fields["found"])
}

func TestExecuteHandlerErrorBecomesFailedResult(t *testing.T) {
	crm := &fakeCRM{findErr: errors.New("crm is down")}
	reg, err := New(shared.NewNopLogger(), NewLookupContact(crm))
	require.NoError(t, err)

	result := reg.Execute(context.Background(), "lookup_contact", []byte(`{"phone":"+15551234567"}`))
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Failure(), shared.ErrExecution)
	assert.Contains(t, result.Error, "crm is down")
}

func TestExecuteRecoversPanics(t *testing.T) {
	reg, _ := newTestRegistry(t)

	result := reg.Execute(context.Background(), "explode", []byte(`{}`))
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Failure(), shared.ErrExecution)
	assert.Contains(t, result.Error, "boom")
}

func TestExecuteLogInteraction(t *testing.T) {
	reg, crm := newTestRegistry(t)

	result := reg.Execute(context.Background(), "log_interaction", []byte(`{"contact_id":"c-9","note":"asked about pricing"}`))
	require.True(t, result.Success)
	require.Len(t, crm.logged, 1)
	assert.Equal(t, "c-9: asked about pricing", crm.logged[0])
}

func TestFailedPayloadOmitsReservedFields(t *testing.T) {
	result := &Result{Success: true, Fields: map[string]any{"success": false, "slots": []string{"a"}}}
	payload, err := result.Payload()
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &body))
	assert.Equal(t, true, body["success"])
}
