package model

import "fmt"

// FieldType is the wire tag of a registration field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// FieldDescriptor is a registration field as stored on the event.
type FieldDescriptor struct {
	FieldName string    `json:"fieldName"`
	FieldType FieldType `json:"fieldType"`
	Required  bool      `json:"required"`
	Options   []string  `json:"options,omitempty"`
}

// Field is a decoded registration field. The implementations are closed
// to this package: TextField, EmailField, NumberField, SelectField and
// CheckboxField.
type Field interface {
	Name() string
	IsRequired() bool
	isField()
}

type fieldBase struct {
	name     string
	required bool
}

func (b fieldBase) Name() string     { return b.name }
func (b fieldBase) IsRequired() bool { return b.required }
func (fieldBase) isField()           {}

// TextField is a free-text input.
type TextField struct{ fieldBase }

// EmailField is an email input.
type EmailField struct{ fieldBase }

// NumberField is a numeric input. Its answer is kept as the raw string.
type NumberField struct{ fieldBase }

// SelectField is a single choice out of Options.
type SelectField struct {
	fieldBase
	Options []string
}

// CheckboxField is a multiple choice out of Options.
type CheckboxField struct {
	fieldBase
	Options []string
}

// ParseField decodes a descriptor into its variant.
func ParseField(desc FieldDescriptor) (Field, error) {
	base := fieldBase{name: desc.FieldName, required: desc.Required}
	if base.name == "" {
		return nil, fmt.Errorf("registration field without a name")
	}
	switch desc.FieldType {
	case FieldText:
		return TextField{base}, nil
	case FieldEmail:
		return EmailField{base}, nil
	case FieldNumber:
		return NumberField{base}, nil
	case FieldSelect:
		return SelectField{fieldBase: base, Options: append([]string(nil), desc.Options...)}, nil
	case FieldCheckbox:
		return CheckboxField{fieldBase: base, Options: append([]string(nil), desc.Options...)}, nil
	default:
		return nil, fmt.Errorf("registration field %q: unknown type %q", desc.FieldName, desc.FieldType)
	}
}
