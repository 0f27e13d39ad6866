package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundingMode selects how adjustment amounts are brought to a fixed number of
// decimal places.
type RoundingMode string

const (
	RoundHalfUp   RoundingMode = "half_up"
	RoundTruncate RoundingMode = "truncate"
)

// Rounding is applied to every computed adjustment amount.
type Rounding struct {
	Mode   RoundingMode `json:"mode"`
	Places int32        `json:"places"`
}

// DefaultRounding rounds half-up to two decimal places.
func DefaultRounding() Rounding {
	return Rounding{Mode: RoundHalfUp, Places: 2}
}

// ParseRounding validates a mode name and a place count read from configuration.
func ParseRounding(mode string, places int) (Rounding, error) {
	m := RoundingMode(strings.ToLower(strings.TrimSpace(mode)))
	if m == "" {
		m = RoundHalfUp
	}
	if m != RoundHalfUp && m != RoundTruncate {
		return Rounding{}, fmt.Errorf("rounding mode must be %q or %q, got %q", RoundHalfUp, RoundTruncate, mode)
	}
	if places < 0 || places > 4 {
		return Rounding{}, fmt.Errorf("rounding places must be between 0 and 4, got %d", places)
	}
	return Rounding{Mode: m, Places: int32(places)}, nil
}

// Apply rounds d. Amounts handled here are never negative, so half-up and
// half-away-from-zero agree.
func (r Rounding) Apply(d decimal.Decimal) decimal.Decimal {
	if r.Mode == RoundTruncate {
		return d.Truncate(r.Places)
	}
	return d.Round(r.Places)
}

// Adjustment is the outcome of applying one rule to one amount.
type Adjustment struct {
	Code             Code            `json:"code"`
	BaseAmount       decimal.Decimal `json:"base_amount"`
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	ResultAmount     decimal.Decimal `json:"result_amount"`
}

// Chain is the outcome of a primary and optional secondary adjustment.
type Chain struct {
	BaseAmount  decimal.Decimal `json:"base_amount"`
	Primary     Adjustment      `json:"primary"`
	Secondary   *Adjustment     `json:"secondary,omitempty"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// Calculator applies catalog rules. It holds no mutable state.
type Calculator struct {
	catalog  *Catalog
	rounding Rounding
}

func NewCalculator(catalog *Catalog, rounding Rounding) *Calculator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Calculator{catalog: catalog, rounding: rounding}
}

// Catalog returns the catalog the calculator resolves codes against.
func (c *Calculator) Catalog() *Catalog { return c.catalog }

// Rounding returns the configured rounding.
func (c *Calculator) Rounding() Rounding { return c.rounding }

// Lookup resolves code against the catalog.
func (c *Calculator) Lookup(code Code) (Rule, error) {
	return c.catalog.Lookup(code)
}

// ApplyAdjustment computes base*percentage/100, rounded, and adds or subtracts
// it according to the rule direction.
func (c *Calculator) ApplyAdjustment(base decimal.Decimal, code Code) (Adjustment, error) {
	if base.IsNegative() {
		return Adjustment{}, fmt.Errorf("%w: base amount %s is negative", ErrInvalidAmount, base)
	}
	rule, err := c.catalog.Lookup(code)
	if err != nil {
		return Adjustment{}, err
	}

	adj := Adjustment{Code: code, BaseAmount: base}
	switch rule.Direction {
	case DirectionDiscount:
		adj.AdjustmentAmount = c.rounding.Apply(base.Mul(rule.Percentage).Div(hundred))
		adj.ResultAmount = base.Sub(adj.AdjustmentAmount)
	case DirectionAddition:
		adj.AdjustmentAmount = c.rounding.Apply(base.Mul(rule.Percentage).Div(hundred))
		adj.ResultAmount = base.Add(adj.AdjustmentAmount)
	default:
		adj.AdjustmentAmount = decimal.Zero
		adj.ResultAmount = base
	}
	return adj, nil
}

// ApplyChain applies primary to base and then, when secondary is not empty,
// applies secondary to the primary's result.
func (c *Calculator) ApplyChain(base decimal.Decimal, primary, secondary Code) (Chain, error) {
	first, err := c.ApplyAdjustment(base, primary)
	if err != nil {
		return Chain{}, err
	}
	chain := Chain{BaseAmount: base, Primary: first, FinalAmount: first.ResultAmount}
	if secondary == "" {
		return chain, nil
	}
	second, err := c.ApplyAdjustment(first.ResultAmount, secondary)
	if err != nil {
		return Chain{}, err
	}
	chain.Secondary = &second
	chain.FinalAmount = second.ResultAmount
	return chain, nil
}
