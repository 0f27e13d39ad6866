// Package pricing implements the CGHS-style percentage adjustment rules applied
// to invoice sub-items: a named catalog of rules and a calculator that chains a
// primary and an optional secondary adjustment over a base amount.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrUnknownAdjustmentCode = errors.New("unknown adjustment code")
	ErrInvalidRule           = errors.New("invalid adjustment rule")
)

// Direction says what an adjustment does to the amount it is applied to.
type Direction string

const (
	DirectionNone     Direction = "none"
	DirectionDiscount Direction = "discount"
	DirectionAddition Direction = "addition"
)

// Code names one rule in the catalog.
type Code string

const CodeNone Code = "none"

// Rule is a single named percentage adjustment.
type Rule struct {
	Code       Code            `json:"code" db:"code"`
	Label      string          `json:"label" db:"label"`
	Percentage decimal.Decimal `json:"percentage" db:"percentage"`
	Direction  Direction       `json:"direction" db:"direction"`
}

var hundred = decimal.NewFromInt(100)

// Validate checks the percentage range and the direction.
func (r Rule) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidRule)
	}
	if r.Percentage.IsNegative() || r.Percentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s percentage %s outside 0-100", ErrInvalidRule, r.Code, r.Percentage)
	}
	switch r.Direction {
	case DirectionNone, DirectionDiscount, DirectionAddition:
	default:
		return fmt.Errorf("%w: %s has direction %q", ErrInvalidRule, r.Code, r.Direction)
	}
	return nil
}

// Catalog is an immutable set of rules keyed by code.
type Catalog struct {
	rules map[Code]Rule
}

// NewCatalog builds a catalog, rejecting invalid or duplicate rules.
func NewCatalog(rules ...Rule) (*Catalog, error) {
	c := &Catalog{rules: make(map[Code]Rule, len(rules))}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.rules[r.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate code %s", ErrInvalidRule, r.Code)
		}
		c.rules[r.Code] = r
	}
	return c, nil
}

// With returns a new catalog where the given rules replace or extend the
// receiver's rules. The receiver is not modified.
func (c *Catalog) With(rules ...Rule) (*Catalog, error) {
	next := &Catalog{rules: make(map[Code]Rule, len(c.rules)+len(rules))}
	for code, r := range c.rules {
		next.rules[code] = r
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		next.rules[r.Code] = r
	}
	return next, nil
}

// Lookup returns the rule for code.
func (c *Catalog) Lookup(code Code) (Rule, error) {
	r, ok := c.rules[code]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownAdjustmentCode, code)
	}
	return r, nil
}

// Rules returns every rule sorted by code.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

func pct(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// DefaultCatalog returns the built-in CGHS tariff adjustments.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Rule{Code: CodeNone, Label: "No adjustment", Percentage: decimal.Zero, Direction: DirectionNone},
		Rule{Code: "ward10", Label: "General ward, 10% less than semi-private tariff", Percentage: pct(10), Direction: DirectionDiscount},
		Rule{Code: "gen_ward5", Label: "General ward, 5% less per CGHS guideline", Percentage: pct(5), Direction: DirectionDiscount},
		Rule{Code: "pvt_ward5", Label: "Private ward, 5% more per CGHS guideline", Percentage: pct(5), Direction: DirectionAddition},
		Rule{Code: "non_nabh15", Label: "Non-NABH accredited hospital, 15% less", Percentage: pct(15), Direction: DirectionDiscount},
		Rule{Code: "super_specialty15", Label: "Super-specialty hospital, 15% more", Percentage: pct(15), Direction: DirectionAddition},
		Rule{Code: "discount10", Label: "10% discount", Percentage: pct(10), Direction: DirectionDiscount},
		Rule{Code: "second_surgery50", Label: "Second procedure in same sitting, 50% of tariff", Percentage: pct(50), Direction: DirectionDiscount},
		Rule{Code: "subsequent_surgery75", Label: "Third and subsequent procedures, 25% of tariff", Percentage: pct(75), Direction: DirectionDiscount},
	)
	if err != nil {
		panic(err)
	}
	return c
}
