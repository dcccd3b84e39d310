// Package pricing computes the checkout breakdown for a ticket role.
//
// The backend recomputes the same figures and compares them with the amount
// charged, so the order of operations here is fixed: the platform fee is
// rounded to two decimals and added to the base price, and the sum is not
// rounded again.
package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// EntertainmentCategory is the organizer category charged the higher fee.
const EntertainmentCategory = "Entertainment Events / concerts"

const (
	EntertainmentFeeRate = 0.05
	StandardFeeRate      = 0.025
)

// Breakdown is a derived checkout summary. It is never stored.
type Breakdown struct {
	BaseAmount  float64 `json:"baseAmount"`
	FeeRate     float64 `json:"feeRate"`
	PlatformFee float64 `json:"platformFee"`
	Total       float64 `json:"total"`
}

// IsFree reports whether nothing is charged.
func (b Breakdown) IsFree() bool {
	return b.Total == 0
}

// FeePercent renders the fee rate as a percentage label, e.g. "2.5%".
func (b Breakdown) FeePercent() string {
	return strconv.FormatFloat(b.FeeRate*100, 'f', -1, 64) + "%"
}

// FeeRate returns the platform fee rate for an organizer category.
func FeeRate(category string) float64 {
	if category == EntertainmentCategory {
		return EntertainmentFeeRate
	}
	return StandardFeeRate
}

// Round2 rounds half away from zero to two decimals.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Compute returns the breakdown for a role sold by an organizer of the
// given category. Free roles carry no fee.
func Compute(role model.RoleDescriptor, category string) Breakdown {
	if role.Price == 0 {
		return Breakdown{}
	}
	rate := FeeRate(category)
	fee := Round2(role.Price * rate)
	return Breakdown{
		BaseAmount:  role.Price,
		FeeRate:     rate,
		PlatformFee: fee,
		Total:       role.Price + fee,
	}
}

// Inverse recovers the breakdown from a charged total. It is how the
// completion step and the invoice display an amount read back from the
// hand-off state or the registrant record.
func Inverse(total, feeRate float64) Breakdown {
	if total == 0 {
		return Breakdown{}
	}
	base := total / (1 + feeRate)
	return Breakdown{
		BaseAmount:  base,
		FeeRate:     feeRate,
		PlatformFee: total - base,
		Total:       total,
	}
}

// FormatINR renders an amount with two decimals and Indian digit grouping,
// e.g. 123456.5 -> "₹1,23,456.50".
func FormatINR(amount float64) string {
	s := strconv.FormatFloat(math.Abs(amount), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	sign := ""
	if amount < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s₹%s.%s", sign, grouped, frac)
}
