package form

import (
	"fmt"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
	"github.com/AurelionFutureForge/registration-gateway/internal/pricing"
)

// RoleOption is one ticket tier as shown in the role selector.
type RoleOption struct {
	Name       string            `json:"name"`
	Price      float64           `json:"price"`
	PriceLabel string            `json:"priceLabel"`
	Bullets    []string          `json:"bullets,omitempty"`
	Remaining  int               `json:"remaining"`
	SoldOut    bool              `json:"soldOut"`
	Selected   bool              `json:"selected"`
	Pricing    pricing.Breakdown `json:"pricing"`
}

// RoleOptions lists the event's roles with their remaining capacity. A
// sold-out role is listed but never reported as selected.
func RoleOptions(ev *model.EventDescriptor, counts model.RoleRegistrationCounts, answers model.Answers, category string) []RoleOption {
	active := answers.Role()
	out := make([]RoleOption, 0, len(ev.EventRoles))
	for _, r := range ev.EventRoles {
		remaining := counts.Remaining(r)
		opt := RoleOption{
			Name:      r.Name,
			Price:     r.Price,
			Bullets:   r.Bullets(),
			Remaining: remaining,
			SoldOut:   remaining == 0,
			Pricing:   pricing.Compute(r, category),
		}
		opt.Selected = !opt.SoldOut && r.Name == active
		if r.IsFree() {
			opt.PriceLabel = "FREE"
		} else {
			opt.PriceLabel = pricing.FormatINR(r.Price)
		}
		out = append(out, opt)
	}
	return out
}

// ActiveRole resolves the selected role, if it is a valid choice.
func ActiveRole(ev *model.EventDescriptor, counts model.RoleRegistrationCounts, answers model.Answers) (model.RoleDescriptor, error) {
	name := answers.Role()
	if name == "" {
		return model.RoleDescriptor{}, &model.ValidationError{Field: model.RoleFieldName, Err: model.ErrNoRoleSelected}
	}
	role, ok := ev.Role(name)
	if !ok {
		return model.RoleDescriptor{}, &model.ValidationError{Field: name, Err: fmt.Errorf("%w: %s", model.ErrUnknownRole, name)}
	}
	if counts.Remaining(role) == 0 {
		return model.RoleDescriptor{}, &model.ValidationError{Field: name, Err: model.ErrRoleSoldOut}
	}
	return role, nil
}
