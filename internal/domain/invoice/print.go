package invoice

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Print row kinds.
const (
	RowSection = "section"
	RowItem    = "item"
	RowSubItem = "sub_item"
)

// PrintRow is one rendered line of the printed bill.
type PrintRow struct {
	Kind      string           `json:"kind"`
	ID        uuid.UUID        `json:"id"`
	Serial    string           `json:"serial,omitempty"`
	Label     string           `json:"label"`
	Code      string           `json:"code,omitempty"`
	DateRange string           `json:"date_range,omitempty"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// PrintView is what the print dialog renders. Hidden rows are left out of
// Rows but Total and Subtotals still include them.
type PrintView struct {
	InvoiceID   uuid.UUID         `json:"invoice_id"`
	PatientID   string            `json:"patient_id"`
	PatientName string            `json:"patient_name,omitempty"`
	VisitID     string            `json:"visit_id"`
	DoctorName  string            `json:"doctor_name,omitempty"`
	Currency    string            `json:"currency"`
	Rows        []PrintRow        `json:"rows"`
	Subtotals   []SectionSubtotal `json:"subtotals"`
	Total       decimal.Decimal   `json:"total"`
}

// PrintView renders the invoice. A hidden main item hides its sub-items too.
func (inv *Invoice) PrintView() *PrintView {
	pv := &PrintView{
		InvoiceID:   inv.ID,
		PatientID:   inv.PatientID,
		PatientName: inv.PatientName,
		VisitID:     inv.VisitID,
		DoctorName:  inv.DoctorName,
		Currency:    inv.Currency,
		Rows:        []PrintRow{},
		Subtotals:   inv.SectionSubtotals(),
		Total:       ComputeGrandTotal(inv.Items),
	}
	for _, m := range inv.Items {
		if s := inv.SectionAt(m.ID); s != nil {
			pv.Rows = append(pv.Rows, PrintRow{Kind: RowSection, ID: s.ID, Label: s.Title, DateRange: s.DateRangeLabel})
		}
		if inv.IsHidden(m.ID) {
			continue
		}
		amount := m.ComputeAmount()
		row := PrintRow{Kind: RowItem, ID: m.ID, Serial: m.Serial, Label: m.Label, Code: strVal(m.Code), Amount: &amount}
		if m.Kind == KindProduct {
			row.Rate = decPtr(m.rateOrZero())
			row.Quantity = decPtr(m.quantityOrOne())
		}
		pv.Rows = append(pv.Rows, row)

		for _, s := range m.SubItems {
			if inv.IsHidden(s.ID) {
				continue
			}
			subAmount := s.ComputeAmount()
			sub := PrintRow{
				Kind:     RowSubItem,
				ID:       s.ID,
				Serial:   s.Serial,
				Label:    s.Label,
				Code:     strVal(s.Code),
				Rate:     decPtr(s.rateOrZero()),
				Quantity: decPtr(s.quantityOrOne()),
				Amount:   &subAmount,
			}
			if s.Pricing != nil {
				sub.Rate = decPtr(s.Pricing.BaseAmount)
				sub.Quantity = nil
			}
			if s.DateRange != nil {
				sub.DateRange = dateRangeLabel(&s.DateRange.Start, &s.DateRange.End)
			}
			pv.Rows = append(pv.Rows, sub)
		}
	}
	return pv
}
