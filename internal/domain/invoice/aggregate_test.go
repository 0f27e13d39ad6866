package invoice

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func product(label, rate, qty string) *MainItem {
	return &MainItem{ID: uuid.New(), Label: label, Kind: KindProduct, Rate: decPtr(dec(rate)), Quantity: decPtr(dec(qty))}
}

func group(label string, subs ...*SubItem) *MainItem {
	return &MainItem{ID: uuid.New(), Label: label, Kind: KindGroup, SubItems: subs}
}

func sub(rate, qty string) *SubItem {
	return &SubItem{ID: uuid.New(), Rate: decPtr(dec(rate)), Quantity: decPtr(dec(qty))}
}

func TestSubItemComputeAmount(t *testing.T) {
	tests := []struct {
		name string
		item *SubItem
		want string
	}{
		{"rate times quantity", sub("250", "3"), "750"},
		{"rounded to two places", sub("33.333", "1"), "33.33"},
		{"nil rate is zero", &SubItem{Quantity: decPtr(dec("4"))}, "0"},
		{"nil quantity is one", &SubItem{Rate: decPtr(dec("99.5"))}, "99.5"},
		{"pricing overrides rate", &SubItem{
			Rate:     decPtr(dec("10000")),
			Quantity: decPtr(dec("3")),
			Pricing:  &Pricing{BaseAmount: dec("10000"), FinalAmount: dec("9000")},
		}, "9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.ComputeAmount(); !got.Equal(dec(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMainItemComputeAmount(t *testing.T) {
	t.Run("product", func(t *testing.T) {
		m := product("Registration", "100", "2")
		if got := m.ComputeAmount(); !got.Equal(dec("200")) {
			t.Errorf("expected 200, got %s", got)
		}
	})
	t.Run("group ignores own rate", func(t *testing.T) {
		m := group("Ward", sub("1500", "3"), sub("200", "1"))
		m.Rate = decPtr(dec("999"))
		if got := m.ComputeAmount(); !got.Equal(dec("4700")) {
			t.Errorf("expected 4700, got %s", got)
		}
	})
	t.Run("empty group is zero", func(t *testing.T) {
		m := group("Surgery")
		m.Rate = decPtr(dec("500"))
		if got := m.ComputeAmount(); !got.IsZero() {
			t.Errorf("expected 0, got %s", got)
		}
	})
}

func TestComputeGrandTotal(t *testing.T) {
	items := []*MainItem{
		product("Registration", "100", "1"),
		group("Ward", sub("1500", "2")),
		product("Pharmacy", "420.75", "1"),
	}
	if got := ComputeGrandTotal(items); !got.Equal(dec("3520.75")) {
		t.Errorf("expected 3520.75, got %s", got)
	}
	if got := ComputeGrandTotal(nil); !got.IsZero() {
		t.Errorf("expected 0 for no items, got %s", got)
	}
}

func TestInvoiceRecompute(t *testing.T) {
	inv := New("P1", "V1")
	s := sub("10000", "1")
	s.Pricing = &Pricing{BaseAmount: dec("10000"), PrimaryAdjustment: "discount10", FinalAmount: dec("9000")}
	inv.Items = []*MainItem{product("Registration", "100", "1"), group("Surgery", s)}

	inv.Recompute()

	if !s.Amount.Equal(dec("9000")) {
		t.Errorf("expected sub amount 9000, got %s", s.Amount)
	}
	if !inv.Items[1].Amount.Equal(dec("9000")) {
		t.Errorf("expected group amount 9000, got %s", inv.Items[1].Amount)
	}
	if !inv.Total.Equal(dec("9100")) {
		t.Errorf("expected total 9100, got %s", inv.Total)
	}
}

func TestHiddenRowsStayInTotal(t *testing.T) {
	inv := New("P1", "V1")
	inv.Items = []*MainItem{product("Registration", "100", "1"), product("Pharmacy", "50", "1")}
	inv.Hidden[inv.Items[1].ID] = true
	inv.Recompute()
	if !inv.Total.Equal(dec("150")) {
		t.Errorf("expected 150, got %s", inv.Total)
	}
}

func TestSectionSubtotals(t *testing.T) {
	inv := New("P1", "V1")
	loose := product("Loose", "10", "1")
	a := product("Registration", "100", "1")
	b := group("Ward", sub("1500", "2"))
	c := product("Implant", "2500", "1")
	inv.Items = []*MainItem{loose, a, b, c}
	inv.Sections = []*Section{
		{ID: uuid.New(), Title: "Conservative", StartsAt: a.ID},
		{ID: uuid.New(), Title: "Surgical", StartsAt: c.ID},
	}

	got := inv.SectionSubtotals()
	if len(got) != 3 {
		t.Fatalf("expected 3 subtotals, got %d", len(got))
	}
	want := []string{"10", "3100", "2500"}
	for i, w := range want {
		if !got[i].Subtotal.Equal(dec(w)) {
			t.Errorf("subtotal %d: expected %s, got %s", i, w, got[i].Subtotal)
		}
	}
	if got[0].SectionID != uuid.Nil {
		t.Errorf("expected leading items under nil section, got %s", got[0].SectionID)
	}
	sum := decimal.Zero
	for _, s := range got {
		sum = sum.Add(s.Subtotal)
	}
	if !sum.Equal(ComputeGrandTotal(inv.Items)) {
		t.Errorf("subtotals %s do not add up to grand total", sum)
	}
}

func TestRecomputeIsDeterministic(t *testing.T) {
	calc := pricing.NewCalculator(nil, pricing.DefaultRounding())
	inv := New("P1", "V1")
	e := NewEditor(inv, calc)
	if _, err := e.InsertMainItem(KindGroup, "Surgery"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.InsertSubItem(0); err != nil {
		t.Fatal(err)
	}
	if err := e.SetRate(SubRef(0, 0), dec("33.335")); err != nil {
		t.Fatal(err)
	}
	if err := e.SetAdjustment(0, 0, SlotPrimary, "discount10"); err != nil {
		t.Fatal(err)
	}
	first := inv.Total
	for i := 0; i < 50; i++ {
		inv.Recompute()
		if !inv.Total.Equal(first) {
			t.Fatalf("iteration %d: total drifted from %s to %s", i, first, inv.Total)
		}
	}
}
