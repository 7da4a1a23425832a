// Package pricing holds the charge arithmetic shared by carts and orders.
// Amounts are float64 at the edges and shopspring decimals inside; every
// result is rounded to two places, half away from zero.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DefaultHandlingCharge = 2
	Places                = 2
)

var ErrNegativeCharge = errors.New("charges cannot be negative")

// Policy holds the configurable defaults applied when nothing overrides them.
type Policy struct {
	HandlingCharge float64
	DeliveryFee    float64
	// FreeDeliveryAbove waives the delivery fee when the items total reaches it.
	// Zero disables the waiver.
	FreeDeliveryAbove float64
}

func DefaultPolicy() Policy {
	return Policy{HandlingCharge: DefaultHandlingCharge}
}

// DeliveryChargeFor applies the flat delivery fee with the free-delivery waiver.
func (p Policy) DeliveryChargeFor(itemsTotal float64) float64 {
	if p.FreeDeliveryAbove > 0 && itemsTotal >= p.FreeDeliveryAbove {
		return 0
	}
	return Round(p.DeliveryFee)
}

// CartDefaults are the charges of a freshly created cart.
func (p Policy) CartDefaults() Charges {
	return Charges{HandlingCharge: Round(p.HandlingCharge)}
}

// OrderDefaults are the charges of an order before cart and request overrides.
func (p Policy) OrderDefaults(itemsTotal float64) Charges {
	return Charges{
		DeliveryCharge: p.DeliveryChargeFor(itemsTotal),
		HandlingCharge: Round(p.HandlingCharge),
	}
}

type Charges struct {
	DeliveryCharge float64 `json:"deliveryCharge"`
	HandlingCharge float64 `json:"handlingCharge"`
	TipAmount      float64 `json:"tipAmount"`
	DonationAmount float64 `json:"donationAmount"`
}

// ChargesUpdate is a partial edit; nil fields keep their current value.
type ChargesUpdate struct {
	DeliveryCharge *float64 `json:"deliveryCharge"`
	HandlingCharge *float64 `json:"handlingCharge"`
	TipAmount      *float64 `json:"tipAmount"`
	DonationAmount *float64 `json:"donationAmount"`
}

func (u ChargesUpdate) Empty() bool {
	return u.DeliveryCharge == nil && u.HandlingCharge == nil && u.TipAmount == nil && u.DonationAmount == nil
}

func (u ChargesUpdate) Validate() error {
	fields := []struct {
		name  string
		value *float64
	}{
		{"deliveryCharge", u.DeliveryCharge},
		{"handlingCharge", u.HandlingCharge},
		{"tipAmount", u.TipAmount},
		{"donationAmount", u.DonationAmount},
	}
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			return fmt.Errorf("%s: %w", f.name, ErrNegativeCharge)
		}
	}
	return nil
}

// Apply returns c with the non-nil fields of u, rounded.
func (c Charges) Apply(u ChargesUpdate) Charges {
	if u.DeliveryCharge != nil {
		c.DeliveryCharge = Round(*u.DeliveryCharge)
	}
	if u.HandlingCharge != nil {
		c.HandlingCharge = Round(*u.HandlingCharge)
	}
	if u.TipAmount != nil {
		c.TipAmount = Round(*u.TipAmount)
	}
	if u.DonationAmount != nil {
		c.DonationAmount = Round(*u.DonationAmount)
	}
	return c
}

// AsUpdate turns every field of c into an explicit override.
func (c Charges) AsUpdate() ChargesUpdate {
	return ChargesUpdate{
		DeliveryCharge: &c.DeliveryCharge,
		HandlingCharge: &c.HandlingCharge,
		TipAmount:      &c.TipAmount,
		DonationAmount: &c.DonationAmount,
	}
}

type Line struct {
	UnitPrice float64
	Quantity  int
}

func (l Line) Total() float64 {
	return Round(lineTotal(l).InexactFloat64())
}

func lineTotal(l Line) decimal.Decimal {
	return decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ItemsTotal sums unit price times quantity over lines. Lines with a
// non-positive quantity contribute nothing.
func ItemsTotal(lines []Line) float64 {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(lineTotal(l))
	}
	return sum.Round(Places).InexactFloat64()
}

type Breakdown struct {
	ItemsTotal     float64 `json:"itemsTotal"`
	DeliveryCharge float64 `json:"deliveryCharge"`
	HandlingCharge float64 `json:"handlingCharge"`
	TipAmount      float64 `json:"tipAmount"`
	DonationAmount float64 `json:"donationAmount"`
	GrandTotal     float64 `json:"grandTotal"`
}

func (b Breakdown) Charges() Charges {
	return Charges{
		DeliveryCharge: b.DeliveryCharge,
		HandlingCharge: b.HandlingCharge,
		TipAmount:      b.TipAmount,
		DonationAmount: b.DonationAmount,
	}
}

// Compose builds the breakdown; the grand total is the sum of the items
// total and every charge.
func Compose(itemsTotal float64, c Charges) Breakdown {
	b := Breakdown{
		ItemsTotal:     Round(itemsTotal),
		DeliveryCharge: Round(c.DeliveryCharge),
		HandlingCharge: Round(c.HandlingCharge),
		TipAmount:      Round(c.TipAmount),
		DonationAmount: Round(c.DonationAmount),
	}
	b.GrandTotal = decimal.NewFromFloat(b.ItemsTotal).
		Add(decimal.NewFromFloat(b.DeliveryCharge)).
		Add(decimal.NewFromFloat(b.HandlingCharge)).
		Add(decimal.NewFromFloat(b.TipAmount)).
		Add(decimal.NewFromFloat(b.DonationAmount)).
		Round(Places).
		InexactFloat64()
	return b
}

func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(Places).InexactFloat64()
}
