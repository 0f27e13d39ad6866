package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/pricing"
)

// LineKind tags how a main item contributes to totals.
type LineKind string

const (
	// KindProduct contributes rate × quantity.
	KindProduct LineKind = "product"
	// KindGroup contributes the sum of its sub-items and ignores its own rate.
	KindGroup LineKind = "group"
)

// DateRange is the period a sub-item covers (ward stay, package days).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Pricing is the adjustment-based amount of a sub-item. FinalAmount is always
// derived from BaseAmount and the two codes and is never set on its own.
type Pricing struct {
	BaseAmount          decimal.Decimal `json:"base_amount"`
	PrimaryAdjustment   pricing.Code    `json:"primary_adjustment"`
	AdjustmentAmount    decimal.Decimal `json:"adjustment_amount"`
	SecondaryAdjustment pricing.Code    `json:"secondary_adjustment,omitempty"`
	SecondaryAmount     decimal.Decimal `json:"secondary_amount"`
	FinalAmount         decimal.Decimal `json:"final_amount"`
}

// Section is a print header. It carries no amount and does not bound totals.
type Section struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	DateRangeLabel string    `json:"date_range_label"`
	// StartsAt is the ID of the first main item under this header.
	StartsAt uuid.UUID `json:"starts_at"`
}

type SubItem struct {
	ID        uuid.UUID        `json:"id"`
	Serial    string           `json:"serial"`
	Label     string           `json:"label"`
	Code      *string          `json:"code,omitempty"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	Pricing   *Pricing         `json:"pricing,omitempty"`
	WardType  *string          `json:"ward_type,omitempty"`
	DateRange *DateRange       `json:"date_range,omitempty"`
}

type MainItem struct {
	ID       uuid.UUID        `json:"id"`
	Serial   string           `json:"serial"`
	Label    string           `json:"label"`
	Code     *string          `json:"code,omitempty"`
	Kind     LineKind         `json:"kind"`
	Rate     *decimal.Decimal `json:"rate,omitempty"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Amount   decimal.Decimal  `json:"amount"`
	SubItems []*SubItem       `json:"sub_items,omitempty"`
}

// Invoice is one editable bill for one visit. It lives only for the editing
// session; submission persists a Bill snapshot, never the tree.
type Invoice struct {
	ID          uuid.UUID          `json:"id"`
	PatientID   string             `json:"patient_id"`
	VisitID     string             `json:"visit_id"`
	PatientName string             `json:"patient_name,omitempty"`
	DoctorName  string             `json:"doctor_name,omitempty"`
	Currency    string             `json:"currency"`
	Sections    []*Section         `json:"sections"`
	Items       []*MainItem        `json:"items"`
	Hidden      map[uuid.UUID]bool `json:"hidden"`
	Total       decimal.Decimal    `json:"total"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// New returns an empty invoice for a patient visit.
func New(patientID, visitID string) *Invoice {
	now := time.Now().UTC()
	return &Invoice{
		ID:        uuid.New(),
		PatientID: patientID,
		VisitID:   visitID,
		Currency:  "INR",
		Hidden:    make(map[uuid.UUID]bool),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsHidden reports whether the row with id is excluded from print.
func (inv *Invoice) IsHidden(id uuid.UUID) bool {
	return inv.Hidden[id]
}

// SectionAt returns the header that starts at the main item with id, if any.
func (inv *Invoice) SectionAt(id uuid.UUID) *Section {
	for _, s := range inv.Sections {
		if s.StartsAt == id {
			return s
		}
	}
	return nil
}

func (m *MainItem) rateOrZero() decimal.Decimal    { return orZero(m.Rate) }
func (m *MainItem) quantityOrOne() decimal.Decimal { return orOne(m.Quantity) }
func (s *SubItem) rateOrZero() decimal.Decimal     { return orZero(s.Rate) }
func (s *SubItem) quantityOrOne() decimal.Decimal  { return orOne(s.Quantity) }

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func orOne(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.NewFromInt(1)
	}
	return *d
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Bill statuses.
const (
	BillDraft     = "draft"
	BillSubmitted = "submitted"
	BillPaid      = "paid"
	BillCancelled = "cancelled"
)

// Bill maps to the bills table. It is the flattened snapshot written when an
// invoice is finalized; the line-item tree is not persisted.
type Bill struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	BillNumber  string          `db:"bill_number" json:"bill_number"`
	InvoiceID   uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	PatientID   string          `db:"patient_id" json:"patient_id"`
	VisitID     string          `db:"visit_id" json:"visit_id"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Currency    string          `db:"currency" json:"currency"`
	Status      string          `db:"status" json:"status"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
