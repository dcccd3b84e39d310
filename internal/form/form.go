// Package form turns an event's registration schema into renderable
// controls and merges user input into the answers map. It performs no
// validation; that happens once, at submission time.
package form

import (
	"fmt"
	"net/url"
	"unicode"
	"unicode/utf8"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// ControlKind selects the HTML control used for a field.
type ControlKind string

const (
	ControlInput    ControlKind = "input"
	ControlSelect   ControlKind = "select"
	ControlCheckbox ControlKind = "checkbox"
)

// Option is one choice of a select or checkbox control.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Control is the view model of one registration field.
type Control struct {
	Name      string      `json:"name"`
	Label     string      `json:"label"`
	Kind      ControlKind `json:"kind"`
	InputType string      `json:"inputType,omitempty"`
	Required  bool        `json:"required"`
	Value     string      `json:"value,omitempty"`
	Options   []Option    `json:"options,omitempty"`
}

// Render builds one control per field, filled from the current answers.
func Render(fields []model.Field, answers model.Answers) []Control {
	controls := make([]Control, 0, len(fields))
	for _, f := range fields {
		controls = append(controls, render(f, answers))
	}
	return controls
}

func render(f model.Field, answers model.Answers) Control {
	c := Control{
		Name:     f.Name(),
		Label:    Label(f.Name()),
		Required: f.IsRequired(),
	}
	current := answers[f.Name()]

	switch f := f.(type) {
	case model.TextField:
		c.Kind, c.InputType, c.Value = ControlInput, "text", current.String()
	case model.EmailField:
		c.Kind, c.InputType, c.Value = ControlInput, "email", current.String()
	case model.NumberField:
		c.Kind, c.InputType, c.Value = ControlInput, "number", current.String()
	case model.SelectField:
		c.Kind = ControlSelect
		c.Value = current.String()
		c.Options = append(c.Options, Option{Value: "", Label: "Select an option", Selected: c.Value == ""})
		for _, o := range f.Options {
			c.Options = append(c.Options, Option{Value: o, Label: o, Selected: o == c.Value})
		}
	case model.CheckboxField:
		c.Kind = ControlCheckbox
		for _, o := range f.Options {
			c.Options = append(c.Options, Option{Value: o, Label: o, Selected: current.Contains(o)})
		}
	default:
		panic(fmt.Sprintf("form: unhandled field type %T", f))
	}
	return c
}

// Label capitalises the first letter of a field name.
func Label(name string) string {
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Set records the raw value of a single-value field. Nothing is coerced.
func Set(answers model.Answers, field, raw string) {
	answers[field] = model.Text(raw)
}

// Toggle adds or removes one checkbox option. The resulting list keeps
// insertion order.
func Toggle(answers model.Answers, field, option string, on bool) {
	current := answers[field]
	if on {
		answers[field] = current.With(option)
	} else {
		answers[field] = current.Without(option)
	}
}

// Collect builds answers from a posted HTML form. Checkbox values are
// applied as toggles in the order the browser sent them, and options that
// are not part of the schema are ignored.
func Collect(fields []model.Field, values url.Values) model.Answers {
	answers := model.Answers{}
	for _, f := range fields {
		switch f := f.(type) {
		case model.CheckboxField:
			answers[f.Name()] = model.List()
			for _, v := range values[f.Name()] {
				if contains(f.Options, v) {
					Toggle(answers, f.Name(), v, true)
				}
			}
		case model.SelectField:
			if v := values.Get(f.Name()); v == "" || contains(f.Options, v) {
				Set(answers, f.Name(), v)
			}
		case model.TextField, model.EmailField, model.NumberField:
			if _, ok := values[f.Name()]; ok {
				Set(answers, f.Name(), values.Get(f.Name()))
			}
		}
	}
	if role := values.Get(model.RoleFieldName); role != "" {
		Set(answers, model.RoleFieldName, role)
	}
	return answers
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
