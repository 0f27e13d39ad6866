package invoice

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// ComputeAmount returns the sub-item's contribution: the derived final amount
// when it is adjustment-priced, otherwise rate × quantity.
func (s *SubItem) ComputeAmount() decimal.Decimal {
	if s.Pricing != nil {
		return s.Pricing.FinalAmount
	}
	return round2(s.rateOrZero().Mul(s.quantityOrOne()))
}

// ComputeAmount returns the main item's contribution. A group line is the sum
// of its sub-items even when it has none; its own rate is never counted.
func (m *MainItem) ComputeAmount() decimal.Decimal {
	if m.Kind == KindGroup {
		sum := decimal.Zero
		for _, s := range m.SubItems {
			sum = sum.Add(s.ComputeAmount())
		}
		return sum
	}
	return round2(m.rateOrZero().Mul(m.quantityOrOne()))
}

// ComputeSectionTotal sums the contribution of every item.
func ComputeSectionTotal(items []*MainItem) decimal.Decimal {
	total := decimal.Zero
	for _, m := range items {
		total = total.Add(m.ComputeAmount())
	}
	return total
}

// ComputeGrandTotal sums every main item regardless of section headers or
// print visibility.
func ComputeGrandTotal(items []*MainItem) decimal.Decimal {
	return ComputeSectionTotal(items)
}

// Recompute refreshes every cached amount and the invoice total.
func (inv *Invoice) Recompute() {
	for _, m := range inv.Items {
		for _, s := range m.SubItems {
			s.Amount = s.ComputeAmount()
		}
		m.Amount = m.ComputeAmount()
	}
	inv.Total = ComputeGrandTotal(inv.Items)
}

// refreshItem recomputes one main item (and one of its sub-items when sub >= 0)
// and then the total from the cached main-item amounts.
func (inv *Invoice) refreshItem(main, sub int) {
	m := inv.Items[main]
	if sub >= 0 {
		m.SubItems[sub].Amount = m.SubItems[sub].ComputeAmount()
	}
	if m.Kind == KindGroup {
		sum := decimal.Zero
		for _, s := range m.SubItems {
			sum = sum.Add(s.Amount)
		}
		m.Amount = sum
	} else {
		m.Amount = m.ComputeAmount()
	}
	inv.refreshTotal()
}

func (inv *Invoice) refreshTotal() {
	total := decimal.Zero
	for _, m := range inv.Items {
		total = total.Add(m.Amount)
	}
	inv.Total = total
}

// SectionSubtotal is a display-only running subtotal under one header.
type SectionSubtotal struct {
	SectionID uuid.UUID       `json:"section_id"`
	Title     string          `json:"title"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SectionSubtotals groups items by the header that precedes them. Items ahead
// of the first header are reported under a zero SectionID. The subtotals add
// up to the grand total; they never exclude anything from it.
func (inv *Invoice) SectionSubtotals() []SectionSubtotal {
	var out []SectionSubtotal
	for _, m := range inv.Items {
		if s := inv.SectionAt(m.ID); s != nil {
			out = append(out, SectionSubtotal{SectionID: s.ID, Title: s.Title, Subtotal: decimal.Zero})
		} else if len(out) == 0 {
			out = append(out, SectionSubtotal{Subtotal: decimal.Zero})
		}
		last := &out[len(out)-1]
		last.Subtotal = last.Subtotal.Add(m.ComputeAmount())
	}
	return out
}
