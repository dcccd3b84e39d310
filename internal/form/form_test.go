package form

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

func testEvent() *model.EventDescriptor {
	open := false
	return &model.EventDescriptor{
		ID:         "evt-1",
		Name:       "Go Meetup",
		ToggleForm: &open,
		RegistrationFields: []model.FieldDescriptor{
			{FieldName: "NAME", FieldType: model.FieldText, Required: true},
			{FieldName: "EMAIL", FieldType: model.FieldEmail, Required: true},
			{FieldName: "age", FieldType: model.FieldNumber},
			{FieldName: "Track", FieldType: model.FieldSelect, Required: true, Options: []string{"Web", "Infra"}},
			{FieldName: "Topics", FieldType: model.FieldCheckbox, Options: []string{"gRPC", "SQL", "WASM"}},
			{FieldName: model.RoleFieldName, FieldType: "radio", Required: true},
		},
		EventRoles: []model.RoleDescriptor{
			{Name: "Student", Price: 0, MaxRegistrations: 50, Description: "Entry, Lunch"},
			{Name: "Pro", Price: 500, MaxRegistrations: 50},
		},
	}
}

func TestRender(t *testing.T) {
	ev := testEvent()
	fields, err := ev.FormFields()
	require.NoError(t, err)

	answers := model.Answers{"NAME": model.Text("Asha"), "Track": model.Text("Infra"), "Topics": model.List("SQL")}
	controls := Render(fields, answers)
	require.Len(t, controls, 5)

	assert.Equal(t, Control{Name: "NAME", Label: "NAME", Kind: ControlInput, InputType: "text", Required: true, Value: "Asha"}, controls[0])
	assert.Equal(t, "email", controls[1].InputType)
	assert.Equal(t, "number", controls[2].InputType)
	assert.Equal(t, "Age", controls[2].Label)

	sel := controls[3]
	assert.Equal(t, ControlSelect, sel.Kind)
	require.Len(t, sel.Options, 3)
	assert.Equal(t, Option{Value: "", Label: "Select an option"}, sel.Options[0])
	assert.True(t, sel.Options[2].Selected)

	box := controls[4]
	assert.Equal(t, ControlCheckbox, box.Kind)
	assert.Equal(t, []Option{
		{Value: "gRPC", Label: "gRPC"},
		{Value: "SQL", Label: "SQL", Selected: true},
		{Value: "WASM", Label: "WASM"},
	}, box.Options)

	accented, err := model.ParseField(model.FieldDescriptor{FieldName: "état civil", FieldType: model.FieldText})
	require.NoError(t, err)
	controls = Render([]model.Field{accented}, nil)
	assert.Equal(t, "État civil", controls[0].Label)
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"age":        "Age",
		"NAME":       "NAME",
		"état civil": "État civil",
		"ñame":       "Ñame",
		"1st choice": "1st choice",
	}
	for in, want := range tests {
		assert.Equal(t, want, Label(in), in)
	}
}

func TestSetKeepsRawString(t *testing.T) {
	answers := model.Answers{}
	Set(answers, "age", " 042 ")
	assert.Equal(t, " 042 ", answers["age"].String())
	assert.False(t, answers["age"].IsList())
}

func TestToggle(t *testing.T) {
	answers := model.Answers{}
	Toggle(answers, "Topics", "WASM", true)
	Toggle(answers, "Topics", "gRPC", true)
	Toggle(answers, "Topics", "gRPC", true)
	assert.Equal(t, []string{"WASM", "gRPC"}, answers["Topics"].Items(), "insertion order, no duplicates")

	before := answers["Topics"].Items()
	Toggle(answers, "Topics", "SQL", true)
	Toggle(answers, "Topics", "SQL", false)
	assert.ElementsMatch(t, before, answers["Topics"].Items())

	Toggle(answers, "Topics", "missing", false)
	assert.ElementsMatch(t, before, answers["Topics"].Items())
}

func TestCollect(t *testing.T) {
	ev := testEvent()
	fields, err := ev.FormFields()
	require.NoError(t, err)

	values := url.Values{
		"NAME":   {"Asha"},
		"EMAIL":  {"asha@example.com"},
		"Track":  {"Mainframe"},
		"Topics": {"SQL", "bogus", "gRPC"},
		"ROLE":   {"Pro"},
		"extra":  {"x"},
	}
	answers := Collect(fields, values)

	assert.Equal(t, "Asha", answers["NAME"].String())
	assert.Equal(t, []string{"SQL", "gRPC"}, answers["Topics"].Items())
	_, ok := answers["Track"]
	assert.False(t, ok, "unknown select option dropped")
	_, ok = answers["age"]
	assert.False(t, ok)
	_, ok = answers["extra"]
	assert.False(t, ok)
	assert.Equal(t, "Pro", answers.Role())
}

func TestRoleOptions(t *testing.T) {
	ev := testEvent()
	counts := model.RoleRegistrationCounts{"Pro": 50, "Student": 3}
	answers := model.Answers{model.RoleFieldName: model.Text("Pro")}

	opts := RoleOptions(ev, counts, answers, "Corporate events / Training Programs")
	require.Len(t, opts, 2)

	assert.Equal(t, 47, opts[0].Remaining)
	assert.False(t, opts[0].SoldOut)
	assert.Equal(t, "FREE", opts[0].PriceLabel)
	assert.Equal(t, []string{"Entry", "Lunch"}, opts[0].Bullets)

	assert.Equal(t, 0, opts[1].Remaining)
	assert.True(t, opts[1].SoldOut)
	assert.False(t, opts[1].Selected, "a sold-out role is never the active selection")
	assert.Equal(t, "₹500.00", opts[1].PriceLabel)
	assert.Equal(t, 512.5, opts[1].Pricing.Total)
}

func TestActiveRole(t *testing.T) {
	ev := testEvent()
	counts := model.RoleRegistrationCounts{"Pro": 50}

	_, err := ActiveRole(ev, counts, model.Answers{})
	assert.True(t, errors.Is(err, model.ErrNoRoleSelected))

	_, err = ActiveRole(ev, counts, model.Answers{model.RoleFieldName: model.Text("Pro")})
	assert.True(t, errors.Is(err, model.ErrRoleSoldOut))

	role, err := ActiveRole(ev, counts, model.Answers{model.RoleFieldName: model.Text("Student")})
	require.NoError(t, err)
	assert.Equal(t, "Student", role.Name)
}

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Event Started", Countdown(now, now))
	assert.Equal(t, "Event Started", Countdown(now, now.Add(-time.Hour)))
	assert.Equal(t, "1D : 2H : 3M : 4S", Countdown(now, now.Add(26*time.Hour+3*time.Minute+4*time.Second)))
	assert.Equal(t, "0D : 0H : 0M : 0S", Countdown(now, now.Add(500*time.Millisecond)))
}

func TestIsOpen(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	closed, open := true, false

	ev := testEvent()
	ev.StartDate = model.Date{Time: now.Add(time.Hour)}
	assert.True(t, IsOpen(ev, now))

	ev.ToggleForm = &closed
	assert.False(t, IsOpen(ev, now))

	ev.ToggleForm = nil
	assert.False(t, IsOpen(ev, now), "missing flag keeps the form closed")

	ev.ToggleForm = &open
	ev.StartDate = model.Date{Time: now.Add(-time.Minute)}
	assert.False(t, IsOpen(ev, now), "started events stop taking registrations")
}

func TestDateRange(t *testing.T) {
	ev := &model.EventDescriptor{
		StartDate: model.Date{Time: time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)},
		EndDate:   model.Date{Time: time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC)},
	}
	assert.Equal(t, "01/11/2026", DateRange(ev))

	ev.EndDate = model.Date{Time: time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "01/11/2026 - 03/11/2026", DateRange(ev))
	assert.Empty(t, DateRange(&model.EventDescriptor{}))
}
