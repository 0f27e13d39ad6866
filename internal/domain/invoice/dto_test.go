package invoice

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateDraftRequest_Validate(t *testing.T) {
	adm := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	before := adm.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		req     CreateDraftRequest
		wantErr bool
	}{
		{"ids only", CreateDraftRequest{PatientID: "P1", VisitID: "V1"}, false},
		{"missing patient", CreateDraftRequest{VisitID: "V1"}, true},
		{"bad ward", CreateDraftRequest{PatientID: "P1", VisitID: "V1", WardType: "suite"}, true},
		{"bad currency", CreateDraftRequest{PatientID: "P1", VisitID: "V1", Currency: "RUPEE"}, true},
		{"discharge before admission", CreateDraftRequest{PatientID: "P1", VisitID: "V1", AdmissionDate: &adm, DischargeDate: &before}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(&InsertItemRequest{Kind: "bundle"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "kind failed on oneof") {
		t.Errorf("expected json field name in %q", err.Error())
	}
}

func TestValidate_NegativeDecimal(t *testing.T) {
	neg := dec("-5")
	if err := Validate(&UpdateItemRequest{Rate: &neg}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	pos := dec("12.50")
	if err := Validate(&UpdateItemRequest{Quantity: &pos}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_MoveDirection(t *testing.T) {
	if err := Validate(&MoveRequest{Direction: "sideways"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if err := Validate(&MoveRequest{Direction: "up"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
