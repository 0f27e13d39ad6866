package invoice

import (
	"context"
	"errors"
	"testing"
	"time"
)

func visit(days int) *VisitContext {
	adm := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	dis := adm.AddDate(0, 0, days)
	return &VisitContext{
		PatientID:     "P-100",
		PatientName:   "Asha Rao",
		VisitID:       "V-200",
		VisitType:     "ipd",
		DoctorName:    "Dr. Mehta",
		WardType:      "general",
		AdmissionDate: &adm,
		DischargeDate: &dis,
	}
}

func TestBuild_DefaultTemplate(t *testing.T) {
	inv := Build(visit(3), DefaultTemplate())

	if inv.PatientID != "P-100" || inv.VisitID != "V-200" {
		t.Errorf("unexpected identifiers %s/%s", inv.PatientID, inv.VisitID)
	}
	if len(inv.Items) != 8 {
		t.Fatalf("expected 8 main items, got %d", len(inv.Items))
	}
	if len(inv.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(inv.Sections))
	}
	if inv.Sections[0].StartsAt != inv.Items[0].ID || inv.Sections[1].StartsAt != inv.Items[6].ID {
		t.Error("expected sections anchored to the first item of each block")
	}
	if inv.Sections[0].DateRangeLabel != "Dt. 01/03/2024 to 04/03/2024" {
		t.Errorf("unexpected date range label %q", inv.Sections[0].DateRangeLabel)
	}
	for i, m := range inv.Items {
		if m.Serial != string(rune('1'+i)) {
			t.Errorf("item %d: expected serial %d, got %s", i, i+1, m.Serial)
		}
	}

	ward := inv.Items[1]
	if len(ward.SubItems) != 1 {
		t.Fatalf("expected one ward sub-item, got %d", len(ward.SubItems))
	}
	ws := ward.SubItems[0]
	if ws.Serial != "i" || !ws.quantityOrOne().Equal(dec("3")) || !ws.rateOrZero().Equal(dec("1500")) {
		t.Errorf("unexpected ward line %s %s x %s", ws.Serial, ws.rateOrZero(), ws.quantityOrOne())
	}
	if ws.DateRange == nil {
		t.Error("expected ward date range")
	}
	if got := inv.Items[2].SubItems; len(got) != 1 || got[0].Label != "Dr. Mehta" {
		t.Error("expected consultation line for the doctor")
	}

	// Registration 100 + 3 days general ward at 1500.
	if !inv.Total.Equal(dec("4600")) {
		t.Errorf("expected total 4600, got %s", inv.Total)
	}
}

func TestBuild_NoWardOrDates(t *testing.T) {
	inv := Build(&VisitContext{PatientID: "P", VisitID: "V"}, DefaultTemplate())
	if len(inv.Items[1].SubItems) != 0 || len(inv.Items[2].SubItems) != 0 {
		t.Error("expected no seeded sub-items without ward or doctor")
	}
	if inv.Sections[0].DateRangeLabel != "" {
		t.Errorf("expected empty date label, got %q", inv.Sections[0].DateRangeLabel)
	}
	if !inv.Total.Equal(dec("100")) {
		t.Errorf("expected total 100, got %s", inv.Total)
	}
}

func TestStayDays(t *testing.T) {
	day := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	later := day.Add(6 * time.Hour)
	tests := []struct {
		name     string
		from, to *time.Time
		want     int
	}{
		{"missing dates", nil, nil, 1},
		{"same day", &day, &later, 1},
		{"five nights", &day, ptrTime(day.AddDate(0, 0, 5)), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stayDays(tt.from, tt.to); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestStaticVisitProvider(t *testing.T) {
	p := NewStaticVisitProvider(visit(2))
	vc, err := p.GetVisitContext(context.Background(), "P-100", "V-200")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vc.DoctorName != "Dr. Mehta" {
		t.Errorf("expected Dr. Mehta, got %s", vc.DoctorName)
	}
	if _, err := p.GetVisitContext(context.Background(), "P-100", "V-999"); !errors.Is(err, ErrVisitNotFound) {
		t.Errorf("expected ErrVisitNotFound, got %v", err)
	}
}
