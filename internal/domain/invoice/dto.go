package invoice

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hms/hms/internal/domain/pricing"
)

// ErrValidation wraps every rejected request body.
var ErrValidation = errors.New("validation failed")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals validate as float64 so gte/lte tags apply to them.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks a request DTO against its struct tags.
func Validate(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// CreateDraftRequest starts an editing session. When only the identifiers are
// given the visit context is fetched from the VisitProvider.
type CreateDraftRequest struct {
	PatientID     string     `json:"patient_id" validate:"required,max=64"`
	VisitID       string     `json:"visit_id" validate:"required,max=64"`
	PatientName   string     `json:"patient_name" validate:"max=200"`
	VisitType     string     `json:"visit_type" validate:"omitempty,oneof=ipd opd daycare"`
	DoctorName    string     `json:"doctor_name" validate:"max=200"`
	WardType      string     `json:"ward_type" validate:"omitempty,oneof=general semi_private private icu"`
	AdmissionDate *time.Time `json:"admission_date"`
	DischargeDate *time.Time `json:"discharge_date"`
	Currency      string     `json:"currency" validate:"omitempty,len=3"`
}

func (r *CreateDraftRequest) Validate() error {
	if err := Validate(r); err != nil {
		return err
	}
	if r.AdmissionDate != nil && r.DischargeDate != nil && r.DischargeDate.Before(*r.AdmissionDate) {
		return fmt.Errorf("%w: discharge_date is before admission_date", ErrValidation)
	}
	return nil
}

// hasContext reports whether the request carries more than identifiers.
func (r *CreateDraftRequest) hasContext() bool {
	return r.PatientName != "" || r.DoctorName != "" || r.WardType != "" || r.AdmissionDate != nil
}

func (r *CreateDraftRequest) visitContext() *VisitContext {
	return &VisitContext{
		PatientID:     r.PatientID,
		PatientName:   r.PatientName,
		VisitID:       r.VisitID,
		VisitType:     r.VisitType,
		DoctorName:    r.DoctorName,
		WardType:      r.WardType,
		AdmissionDate: r.AdmissionDate,
		DischargeDate: r.DischargeDate,
	}
}

type InsertItemRequest struct {
	Kind     LineKind         `json:"kind" validate:"required,oneof=product group"`
	Label    string           `json:"label" validate:"max=200"`
	Code     string           `json:"code" validate:"max=32"`
	Rate     *decimal.Decimal `json:"rate" validate:"omitempty,gte=0"`
	Quantity *decimal.Decimal `json:"quantity" validate:"omitempty,gte=0"`
}

// UpdateItemRequest patches the fields that are present.
type UpdateItemRequest struct {
	Label    *string          `json:"label" validate:"omitempty,max=200"`
	Code     *string          `json:"code" validate:"omitempty,max=32"`
	Rate     *decimal.Decimal `json:"rate" validate:"omitempty,gte=0"`
	Quantity *decimal.Decimal `json:"quantity" validate:"omitempty,gte=0"`
}

type MoveRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

type SetAdjustmentRequest struct {
	Code pricing.Code `json:"code" validate:"required,max=64"`
}

type AddSectionRequest struct {
	Index          int    `json:"index" validate:"gte=0"`
	Title          string `json:"title" validate:"required,max=200"`
	DateRangeLabel string `json:"date_range_label" validate:"max=100"`
}

type SubmitRequest struct {
	BillNumber string `json:"bill_number" validate:"omitempty,max=32"`
	Status     string `json:"status" validate:"omitempty,oneof=draft submitted paid cancelled"`
	Notes      string `json:"notes" validate:"max=2000"`
}

type QuoteRequest struct {
	BaseAmount decimal.Decimal `json:"base_amount"`
	Primary    pricing.Code    `json:"primary" validate:"required"`
	Secondary  pricing.Code    `json:"secondary"`
}
