// Package model defines the core domain types for the registration gateway:
// the event descriptor served by the remote API, the dynamic form schema and
// the answers collected against it.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RoleFieldName is the reserved registration field rendered by the role
// selector instead of the generic field renderer.
const RoleFieldName = "ROLE"

// EventDescriptor is the event as returned by GET /events/{id}. It is
// immutable from the form's perspective.
type EventDescriptor struct {
	ID                 string            `json:"_id"`
	Name               string            `json:"eventName"`
	Place              string            `json:"place"`
	Time               string            `json:"time"`
	StartDate          Date              `json:"startDate"`
	EndDate            Date              `json:"endDate"`
	CompanyName        string            `json:"companyName"`
	Poster             string            `json:"companyPoster"`
	Description        string            `json:"eventDescription"`
	RegistrationFields []FieldDescriptor `json:"registrationFields"`
	EventRoles         []RoleDescriptor  `json:"eventRoles"`

	// ToggleForm closes the form when true. The form is also treated as
	// closed when the backend omits the flag.
	ToggleForm *bool `json:"toggleForm,omitempty"`
}

// FormFields decodes every registration field except the reserved role field.
func (e *EventDescriptor) FormFields() ([]Field, error) {
	fields := make([]Field, 0, len(e.RegistrationFields))
	for _, desc := range e.RegistrationFields {
		if desc.FieldName == RoleFieldName {
			continue
		}
		f, err := ParseField(desc)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FieldNames lists the registration field names in schema order.
func (e *EventDescriptor) FieldNames() []string {
	names := make([]string, 0, len(e.RegistrationFields))
	for _, desc := range e.RegistrationFields {
		names = append(names, desc.FieldName)
	}
	return names
}

// Role looks up a ticket role by name.
func (e *EventDescriptor) Role(name string) (RoleDescriptor, bool) {
	for _, r := range e.EventRoles {
		if r.Name == name {
			return r, true
		}
	}
	return RoleDescriptor{}, false
}

// SlugName returns the event name with whitespace runs replaced by dashes,
// as used in public registration links.
func (e *EventDescriptor) SlugName() string {
	return strings.Join(strings.Fields(e.Name), "-")
}

// RoleDescriptor is one ticket tier of an event.
type RoleDescriptor struct {
	Name             string  `json:"roleName"`
	Description      string  `json:"roleDescription"`
	Price            float64 `json:"rolePrice"`
	MaxRegistrations int     `json:"maxRegistrations"`
}

// IsFree reports whether the role is charged nothing.
func (r RoleDescriptor) IsFree() bool {
	return r.Price == 0
}

// Bullets splits the comma-delimited description into trimmed items.
func (r RoleDescriptor) Bullets() []string {
	if strings.TrimSpace(r.Description) == "" {
		return nil
	}
	parts := strings.Split(r.Description, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// RoleRegistrationCounts maps a role name to its confirmed registrations.
// It is read-only server state.
type RoleRegistrationCounts map[string]int

// Remaining returns the seats left for a role, never negative.
func (c RoleRegistrationCounts) Remaining(role RoleDescriptor) int {
	left := role.MaxRegistrations - c[role.Name]
	if left < 0 {
		return 0
	}
	return left
}

// Admin is the organizer record behind an event.
type Admin struct {
	CompanyName string `json:"companyName"`
	Email       string `json:"email"`
	Category    string `json:"category"`
}

// Registrant is a stored registration as returned by
// GET /users/by-id/{eventId}/{email}.
type Registrant struct {
	RegistrationData Answers `json:"registrationData"`
	Role             string  `json:"role"`
	PaymentStatus    string  `json:"paymentStatus"`
	QRCode           string  `json:"qrCode"`
	TransactionID    string  `json:"transactionId,omitempty"`
	Amount           float64 `json:"amount,omitempty"`
}

// Date accepts the date encodings the backend emits: RFC 3339 timestamps,
// bare calendar dates and empty values.
type Date struct {
	time.Time
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("date: unrecognised value %q", s)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Time.Format(time.RFC3339))
}
