package invoice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/pricing"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidSlot     = errors.New("invalid adjustment slot")
	ErrInvalidKind     = errors.New("invalid line kind")
	ErrRowNotFound     = errors.New("row not found")
)

// Slot selects which of the two chained adjustments is being edited.
type Slot string

const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
)

// Ref addresses a main item (Sub < 0) or one of its sub-items.
type Ref struct {
	Main int
	Sub  int
}

func MainRef(main int) Ref     { return Ref{Main: main, Sub: -1} }
func SubRef(main, sub int) Ref { return Ref{Main: main, Sub: sub} }

func (r Ref) String() string {
	if r.Sub < 0 {
		return fmt.Sprintf("item %d", r.Main)
	}
	return fmt.Sprintf("item %d sub-item %d", r.Main, r.Sub)
}

// Editor applies mutations to one invoice. Every operation validates first
// and leaves the invoice untouched when it returns an error.
type Editor struct {
	inv  *Invoice
	calc *pricing.Calculator
}

func NewEditor(inv *Invoice, calc *pricing.Calculator) *Editor {
	if inv.Hidden == nil {
		inv.Hidden = make(map[uuid.UUID]bool)
	}
	return &Editor{inv: inv, calc: calc}
}

// Invoice returns the invoice being edited.
func (e *Editor) Invoice() *Invoice { return e.inv }

func (e *Editor) touch() {
	e.inv.Version++
	e.inv.UpdatedAt = time.Now().UTC()
}

func (e *Editor) mainAt(i int) (*MainItem, error) {
	if i < 0 || i >= len(e.inv.Items) {
		return nil, fmt.Errorf("%w: item %d of %d", ErrIndexOutOfRange, i, len(e.inv.Items))
	}
	return e.inv.Items[i], nil
}

func (e *Editor) subAt(i, j int) (*MainItem, *SubItem, error) {
	m, err := e.mainAt(i)
	if err != nil {
		return nil, nil, err
	}
	if j < 0 || j >= len(m.SubItems) {
		return nil, nil, fmt.Errorf("%w: sub-item %d of %d under item %d", ErrIndexOutOfRange, j, len(m.SubItems), i)
	}
	return m, m.SubItems[j], nil
}

// InsertMainItem appends a main item numbered after its siblings.
func (e *Editor) InsertMainItem(kind LineKind, label string) (*MainItem, error) {
	if kind != KindProduct && kind != KindGroup {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	m := &MainItem{
		ID:       uuid.New(),
		Serial:   strconv.Itoa(len(e.inv.Items) + 1),
		Label:    label,
		Kind:     kind,
		Rate:     decPtr(decimal.Zero),
		Quantity: decPtr(decimal.NewFromInt(1)),
	}
	if kind == KindGroup {
		m.SubItems = []*SubItem{}
	}
	e.inv.Items = append(e.inv.Items, m)
	e.inv.refreshItem(len(e.inv.Items)-1, -1)
	e.touch()
	return m, nil
}

// InsertSubItem appends a blank sub-item with a roman-numeral serial. A
// product line receiving its first sub-item becomes a group line.
func (e *Editor) InsertSubItem(mainIndex int) (*SubItem, error) {
	m, err := e.mainAt(mainIndex)
	if err != nil {
		return nil, err
	}
	s := &SubItem{
		ID:       uuid.New(),
		Serial:   RomanNumeral(len(m.SubItems) + 1),
		Rate:     decPtr(decimal.Zero),
		Quantity: decPtr(decimal.NewFromInt(1)),
	}
	m.Kind = KindGroup
	m.SubItems = append(m.SubItems, s)
	e.inv.refreshItem(mainIndex, len(m.SubItems)-1)
	e.touch()
	return s, nil
}

func (e *Editor) DeleteMainItem(index int) error {
	m, err := e.mainAt(index)
	if err != nil {
		return err
	}
	var next *MainItem
	if index+1 < len(e.inv.Items) {
		next = e.inv.Items[index+1]
	}
	if s := e.inv.SectionAt(m.ID); s != nil {
		if next != nil && e.inv.SectionAt(next.ID) == nil {
			s.StartsAt = next.ID
		} else {
			e.removeSection(s.ID)
		}
	}
	delete(e.inv.Hidden, m.ID)
	for _, s := range m.SubItems {
		delete(e.inv.Hidden, s.ID)
	}
	e.inv.Items = append(e.inv.Items[:index], e.inv.Items[index+1:]...)
	e.inv.refreshTotal()
	e.touch()
	return nil
}

func (e *Editor) DeleteSubItem(mainIndex, subIndex int) error {
	m, s, err := e.subAt(mainIndex, subIndex)
	if err != nil {
		return err
	}
	delete(e.inv.Hidden, s.ID)
	m.SubItems = append(m.SubItems[:subIndex], m.SubItems[subIndex+1:]...)
	e.inv.refreshItem(mainIndex, -1)
	e.touch()
	return nil
}

func (e *Editor) MoveMainItemUp(index int) error {
	if _, err := e.mainAt(index); err != nil {
		return err
	}
	if index == 0 {
		return nil
	}
	items := e.inv.Items
	items[index-1], items[index] = items[index], items[index-1]
	e.touch()
	return nil
}

func (e *Editor) MoveMainItemDown(index int) error {
	if _, err := e.mainAt(index); err != nil {
		return err
	}
	if index == len(e.inv.Items)-1 {
		return nil
	}
	items := e.inv.Items
	items[index+1], items[index] = items[index], items[index+1]
	e.touch()
	return nil
}

func (e *Editor) MoveSubItemUp(mainIndex, subIndex int) error {
	m, _, err := e.subAt(mainIndex, subIndex)
	if err != nil {
		return err
	}
	if subIndex == 0 {
		return nil
	}
	m.SubItems[subIndex-1], m.SubItems[subIndex] = m.SubItems[subIndex], m.SubItems[subIndex-1]
	e.touch()
	return nil
}

func (e *Editor) MoveSubItemDown(mainIndex, subIndex int) error {
	m, _, err := e.subAt(mainIndex, subIndex)
	if err != nil {
		return err
	}
	if subIndex == len(m.SubItems)-1 {
		return nil
	}
	m.SubItems[subIndex+1], m.SubItems[subIndex] = m.SubItems[subIndex], m.SubItems[subIndex+1]
	e.touch()
	return nil
}

func (e *Editor) RenameItem(ref Ref, label string) error {
	if ref.Sub < 0 {
		m, err := e.mainAt(ref.Main)
		if err != nil {
			return err
		}
		m.Label = label
	} else {
		_, s, err := e.subAt(ref.Main, ref.Sub)
		if err != nil {
			return err
		}
		s.Label = label
	}
	e.touch()
	return nil
}

func (e *Editor) SetCode(ref Ref, code string) error {
	code = strings.TrimSpace(code)
	if ref.Sub < 0 {
		m, err := e.mainAt(ref.Main)
		if err != nil {
			return err
		}
		m.Code = strPtr(code)
	} else {
		_, s, err := e.subAt(ref.Main, ref.Sub)
		if err != nil {
			return err
		}
		s.Code = strPtr(code)
	}
	e.touch()
	return nil
}

// SetRate changes a rate and recomputes only the addressed item. On an
// adjustment-priced sub-item the rate becomes the new base amount and the
// chain is re-derived.
func (e *Editor) SetRate(ref Ref, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return fmt.Errorf("%w: rate %s is negative", pricing.ErrInvalidAmount, rate)
	}
	if ref.Sub < 0 {
		m, err := e.mainAt(ref.Main)
		if err != nil {
			return err
		}
		m.Rate = decPtr(rate)
		e.inv.refreshItem(ref.Main, -1)
		e.touch()
		return nil
	}

	_, s, err := e.subAt(ref.Main, ref.Sub)
	if err != nil {
		return err
	}
	if s.Pricing != nil {
		next := *s.Pricing
		next.BaseAmount = rate
		if err := e.derive(&next); err != nil {
			return err
		}
		s.Pricing = &next
	}
	s.Rate = decPtr(rate)
	e.inv.refreshItem(ref.Main, ref.Sub)
	e.touch()
	return nil
}

func (e *Editor) SetQuantity(ref Ref, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return fmt.Errorf("%w: quantity %s is negative", pricing.ErrInvalidAmount, qty)
	}
	if ref.Sub < 0 {
		m, err := e.mainAt(ref.Main)
		if err != nil {
			return err
		}
		m.Quantity = decPtr(qty)
		e.inv.refreshItem(ref.Main, -1)
	} else {
		_, s, err := e.subAt(ref.Main, ref.Sub)
		if err != nil {
			return err
		}
		s.Quantity = decPtr(qty)
		e.inv.refreshItem(ref.Main, ref.Sub)
	}
	e.touch()
	return nil
}

// SetAdjustment sets one slot of a sub-item's adjustment chain. The first call
// on a sub-item creates its pricing with the current rate as base amount.
func (e *Editor) SetAdjustment(mainIndex, subIndex int, slot Slot, code pricing.Code) error {
	if slot != SlotPrimary && slot != SlotSecondary {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	_, s, err := e.subAt(mainIndex, subIndex)
	if err != nil {
		return err
	}

	var next Pricing
	if s.Pricing != nil {
		next = *s.Pricing
	} else {
		next = Pricing{BaseAmount: s.rateOrZero(), PrimaryAdjustment: pricing.CodeNone}
	}
	if slot == SlotPrimary {
		next.PrimaryAdjustment = code
	} else {
		next.SecondaryAdjustment = code
	}
	if err := e.derive(&next); err != nil {
		return err
	}
	s.Pricing = &next
	e.inv.refreshItem(mainIndex, subIndex)
	e.touch()
	return nil
}

// ClearAdjustment removes one slot. Clearing the primary slot drops the
// pricing entirely and the sub-item falls back to rate × quantity.
func (e *Editor) ClearAdjustment(mainIndex, subIndex int, slot Slot) error {
	if slot != SlotPrimary && slot != SlotSecondary {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	_, s, err := e.subAt(mainIndex, subIndex)
	if err != nil {
		return err
	}
	if s.Pricing == nil {
		return nil
	}
	if slot == SlotPrimary {
		s.Pricing = nil
	} else {
		next := *s.Pricing
		next.SecondaryAdjustment = ""
		if err := e.derive(&next); err != nil {
			return err
		}
		s.Pricing = &next
	}
	e.inv.refreshItem(mainIndex, subIndex)
	e.touch()
	return nil
}

func (e *Editor) derive(p *Pricing) error {
	chain, err := e.calc.ApplyChain(p.BaseAmount, p.PrimaryAdjustment, p.SecondaryAdjustment)
	if err != nil {
		return err
	}
	p.AdjustmentAmount = chain.Primary.AdjustmentAmount
	p.SecondaryAmount = decimal.Zero
	if chain.Secondary != nil {
		p.SecondaryAmount = chain.Secondary.AdjustmentAmount
	}
	p.FinalAmount = chain.FinalAmount
	return nil
}

// ToggleRowVisibility flips the print flag of the addressed row and reports
// whether it is now hidden. Amounts are not touched.
func (e *Editor) ToggleRowVisibility(ref Ref) (bool, error) {
	var id uuid.UUID
	if ref.Sub < 0 {
		m, err := e.mainAt(ref.Main)
		if err != nil {
			return false, err
		}
		id = m.ID
	} else {
		_, s, err := e.subAt(ref.Main, ref.Sub)
		if err != nil {
			return false, err
		}
		id = s.ID
	}
	return e.toggle(id), nil
}

// ToggleVisibility flips the print flag of the row with id.
func (e *Editor) ToggleVisibility(id uuid.UUID) (bool, error) {
	if !e.hasRow(id) {
		return false, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return e.toggle(id), nil
}

func (e *Editor) toggle(id uuid.UUID) bool {
	if e.inv.Hidden[id] {
		delete(e.inv.Hidden, id)
	} else {
		e.inv.Hidden[id] = true
	}
	e.touch()
	return e.inv.Hidden[id]
}

func (e *Editor) hasRow(id uuid.UUID) bool {
	for _, m := range e.inv.Items {
		if m.ID == id {
			return true
		}
		for _, s := range m.SubItems {
			if s.ID == id {
				return true
			}
		}
	}
	return false
}

// AddSection places a header before the main item at index, or retitles the
// header already there.
func (e *Editor) AddSection(index int, title, dateRangeLabel string) (*Section, error) {
	m, err := e.mainAt(index)
	if err != nil {
		return nil, err
	}
	if s := e.inv.SectionAt(m.ID); s != nil {
		s.Title = title
		s.DateRangeLabel = dateRangeLabel
		e.touch()
		return s, nil
	}
	s := &Section{ID: uuid.New(), Title: title, DateRangeLabel: dateRangeLabel, StartsAt: m.ID}
	e.inv.Sections = append(e.inv.Sections, s)
	e.touch()
	return s, nil
}

func (e *Editor) RemoveSection(id uuid.UUID) error {
	if !e.removeSection(id) {
		return fmt.Errorf("%w: section %s", ErrRowNotFound, id)
	}
	e.touch()
	return nil
}

func (e *Editor) removeSection(id uuid.UUID) bool {
	for i, s := range e.inv.Sections {
		if s.ID == id {
			e.inv.Sections = append(e.inv.Sections[:i], e.inv.Sections[i+1:]...)
			return true
		}
	}
	return false
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// RomanNumeral renders n (n >= 1) as a lowercase roman numeral.
func RomanNumeral(n int) string {
	var b strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			b.WriteString(r.symbol)
			n -= r.value
		}
	}
	return b.String()
}
