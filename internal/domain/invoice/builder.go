package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrVisitNotFound = errors.New("visit not found")

// VisitContext is the patient, visit and doctor data a fresh invoice is
// seeded from. Only the string fields and dates are consumed.
type VisitContext struct {
	PatientID     string     `json:"patient_id"`
	PatientName   string     `json:"patient_name"`
	VisitID       string     `json:"visit_id"`
	VisitType     string     `json:"visit_type"`
	DoctorName    string     `json:"doctor_name"`
	WardType      string     `json:"ward_type"`
	AdmissionDate *time.Time `json:"admission_date,omitempty"`
	DischargeDate *time.Time `json:"discharge_date,omitempty"`
}

// VisitProvider supplies visit context from the hospital records system.
type VisitProvider interface {
	GetVisitContext(ctx context.Context, patientID, visitID string) (*VisitContext, error)
}

// StaticVisitProvider serves visit contexts registered in memory.
type StaticVisitProvider struct {
	visits map[string]*VisitContext
}

func NewStaticVisitProvider(visits ...*VisitContext) *StaticVisitProvider {
	p := &StaticVisitProvider{visits: make(map[string]*VisitContext, len(visits))}
	for _, v := range visits {
		p.visits[v.PatientID+"/"+v.VisitID] = v
	}
	return p
}

func (p *StaticVisitProvider) GetVisitContext(_ context.Context, patientID, visitID string) (*VisitContext, error) {
	v, ok := p.visits[patientID+"/"+visitID]
	if !ok {
		return nil, fmt.Errorf("%w: patient %s visit %s", ErrVisitNotFound, patientID, visitID)
	}
	return v, nil
}

// TemplateItem is one main item of a template section.
type TemplateItem struct {
	Label string
	Code  string
	Kind  LineKind
	Rate  decimal.Decimal
}

type TemplateSection struct {
	Title string
	Items []TemplateItem
}

// Template is the standard layout of a hospital bill.
type Template struct {
	Sections []TemplateSection
	// WardRates is the per-day rate keyed by ward type.
	WardRates map[string]decimal.Decimal
}

// DefaultTemplate is the layout used by the billing desk for inpatient visits.
func DefaultTemplate() Template {
	return Template{
		Sections: []TemplateSection{
			{
				Title: "Conservative Treatment",
				Items: []TemplateItem{
					{Label: "Registration Charges", Code: "REG", Kind: KindProduct, Rate: decimal.NewFromInt(100)},
					{Label: "Room / Ward Charges", Kind: KindGroup},
					{Label: "Consultation for Inpatients", Kind: KindGroup},
					{Label: "Pathology Investigations", Kind: KindGroup},
					{Label: "Radiological Investigations", Kind: KindGroup},
					{Label: "Pharmacy Charges", Code: "PHARM", Kind: KindProduct},
				},
			},
			{
				Title: "Surgical Package",
				Items: []TemplateItem{
					{Label: "Surgery", Kind: KindGroup},
					{Label: "Implant / Consumables", Kind: KindProduct},
				},
			},
		},
		WardRates: map[string]decimal.Decimal{
			"general":      decimal.NewFromInt(1500),
			"semi_private": decimal.NewFromInt(3000),
			"private":      decimal.NewFromInt(4500),
			"icu":          decimal.NewFromInt(5400),
		},
	}
}

// Build constructs a fresh invoice tree for a visit.
func Build(vc *VisitContext, tmpl Template) *Invoice {
	inv := New(vc.PatientID, vc.VisitID)
	inv.PatientName = vc.PatientName
	inv.DoctorName = vc.DoctorName

	label := dateRangeLabel(vc.AdmissionDate, vc.DischargeDate)
	for _, ts := range tmpl.Sections {
		for i, ti := range ts.Items {
			m := &MainItem{
				ID:     uuid.New(),
				Serial: fmt.Sprintf("%d", len(inv.Items)+1),
				Label:  ti.Label,
				Code:   strPtr(ti.Code),
				Kind:   ti.Kind,
			}
			if ti.Kind == KindGroup {
				m.SubItems = []*SubItem{}
			} else {
				m.Rate = decPtr(ti.Rate)
				m.Quantity = decPtr(decimal.NewFromInt(1))
			}
			if i == 0 {
				inv.Sections = append(inv.Sections, &Section{
					ID:             uuid.New(),
					Title:          ts.Title,
					DateRangeLabel: label,
					StartsAt:       m.ID,
				})
			}
			seedSubItems(m, vc, tmpl)
			inv.Items = append(inv.Items, m)
		}
	}
	inv.Recompute()
	return inv
}

func seedSubItems(m *MainItem, vc *VisitContext, tmpl Template) {
	switch m.Label {
	case "Room / Ward Charges":
		if vc.WardType == "" {
			return
		}
		s := &SubItem{
			ID:       uuid.New(),
			Serial:   RomanNumeral(1),
			Label:    fmt.Sprintf("%s ward", vc.WardType),
			WardType: strPtr(vc.WardType),
			Rate:     decPtr(tmpl.WardRates[vc.WardType]),
			Quantity: decPtr(decimal.NewFromInt(int64(stayDays(vc.AdmissionDate, vc.DischargeDate)))),
		}
		if vc.AdmissionDate != nil && vc.DischargeDate != nil {
			s.DateRange = &DateRange{Start: *vc.AdmissionDate, End: *vc.DischargeDate}
		}
		m.SubItems = append(m.SubItems, s)
	case "Consultation for Inpatients":
		if vc.DoctorName == "" {
			return
		}
		m.SubItems = append(m.SubItems, &SubItem{
			ID:       uuid.New(),
			Serial:   RomanNumeral(1),
			Label:    vc.DoctorName,
			Rate:     decPtr(decimal.Zero),
			Quantity: decPtr(decimal.NewFromInt(int64(stayDays(vc.AdmissionDate, vc.DischargeDate)))),
		})
	}
}

// stayDays counts calendar days between admission and discharge, at least 1.
func stayDays(from, to *time.Time) int {
	if from == nil || to == nil {
		return 1
	}
	days := int(to.Truncate(24*time.Hour).Sub(from.Truncate(24*time.Hour)).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func dateRangeLabel(from, to *time.Time) string {
	const layout = "02/01/2006"
	switch {
	case from != nil && to != nil:
		return fmt.Sprintf("Dt. %s to %s", from.Format(layout), to.Format(layout))
	case from != nil:
		return fmt.Sprintf("Dt. %s", from.Format(layout))
	default:
		return ""
	}
}
