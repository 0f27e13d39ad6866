package invoice

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/pricing"
)

type Service struct {
	drafts   DraftStore
	bills    BillRepository
	visits   VisitProvider
	calc     *pricing.Calculator
	tmpl     Template
	currency string
	logger   zerolog.Logger
	now      func() time.Time

	// locks serializes edits to the same draft within this process. Drafts
	// share a fixed set of stripes so the set never grows.
	locks [draftLockStripes]sync.Mutex
}

const (
	draftLockStripes = 64

	// billNumberAttempts bounds retries when a generated number collides.
	billNumberAttempts = 3
)

func NewService(drafts DraftStore, bills BillRepository, calc *pricing.Calculator, logger zerolog.Logger) *Service {
	return &Service{
		drafts:   drafts,
		bills:    bills,
		calc:     calc,
		tmpl:     DefaultTemplate(),
		currency: "INR",
		logger:   logger.With().Str("component", "invoice").Logger(),
		now:      time.Now,
	}
}

// SetVisitProvider attaches the source used when a draft request carries only
// patient and visit identifiers.
func (s *Service) SetVisitProvider(p VisitProvider) { s.visits = p }

// SetTemplate replaces the layout new drafts are built from.
func (s *Service) SetTemplate(t Template) { s.tmpl = t }

// SetCurrency sets the default currency of new drafts.
func (s *Service) SetCurrency(c string) {
	if c != "" {
		s.currency = strings.ToUpper(c)
	}
}

// Calculator returns the pricing calculator drafts are edited with.
func (s *Service) Calculator() *pricing.Calculator { return s.calc }

func (s *Service) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &s.locks[h.Sum32()%draftLockStripes]
}

// -- Drafts --

func (s *Service) CreateDraft(ctx context.Context, req *CreateDraftRequest) (*Invoice, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	vc := req.visitContext()
	if !req.hasContext() {
		if s.visits == nil {
			return nil, fmt.Errorf("%w: patient_name, doctor_name, ward_type or admission_date is required", ErrValidation)
		}
		found, err := s.visits.GetVisitContext(ctx, req.PatientID, req.VisitID)
		if err != nil {
			return nil, err
		}
		vc = found
	}

	inv := Build(vc, s.tmpl)
	inv.Currency = s.currency
	if req.Currency != "" {
		inv.Currency = strings.ToUpper(req.Currency)
	}
	if err := s.drafts.Save(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("patient_id", inv.PatientID).
		Str("visit_id", inv.VisitID).
		Int("items", len(inv.Items)).
		Msg("draft created")
	return inv, nil
}

func (s *Service) GetDraft(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.drafts.Get(ctx, id)
}

func (s *Service) DiscardDraft(ctx context.Context, id uuid.UUID) error {
	return s.drafts.Delete(ctx, id)
}

// Edit loads a draft, applies fn through an Editor and stores the result. When
// fn fails nothing is stored.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, fn func(*Editor) error) (*Invoice, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	inv, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(NewEditor(inv, s.calc)); err != nil {
		s.logger.Debug().Err(err).Str("invoice_id", id.String()).Msg("edit rejected")
		return nil, err
	}
	if err := s.drafts.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateItem applies the present fields of req to one row.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, ref Ref, req *UpdateItemRequest) (*Invoice, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return s.Edit(ctx, id, func(e *Editor) error {
		// Validate the reference before touching any field.
		if ref.Sub < 0 {
			if _, err := e.mainAt(ref.Main); err != nil {
				return err
			}
		} else if _, _, err := e.subAt(ref.Main, ref.Sub); err != nil {
			return err
		}
		if req.Rate != nil {
			if err := e.SetRate(ref, *req.Rate); err != nil {
				return err
			}
		}
		if req.Quantity != nil {
			if err := e.SetQuantity(ref, *req.Quantity); err != nil {
				return err
			}
		}
		if req.Label != nil {
			if err := e.RenameItem(ref, *req.Label); err != nil {
				return err
			}
		}
		if req.Code != nil {
			if err := e.SetCode(ref, *req.Code); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) InsertItem(ctx context.Context, id uuid.UUID, req *InsertItemRequest) (*Invoice, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return s.Edit(ctx, id, func(e *Editor) error {
		m, err := e.InsertMainItem(req.Kind, req.Label)
		if err != nil {
			return err
		}
		ref := MainRef(len(e.inv.Items) - 1)
		if req.Code != "" {
			m.Code = strPtr(req.Code)
		}
		if req.Rate != nil {
			if err := e.SetRate(ref, *req.Rate); err != nil {
				return err
			}
		}
		if req.Quantity != nil {
			return e.SetQuantity(ref, *req.Quantity)
		}
		return nil
	})
}

func (s *Service) Move(ctx context.Context, id uuid.UUID, ref Ref, req *MoveRequest) (*Invoice, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	up := req.Direction == "up"
	return s.Edit(ctx, id, func(e *Editor) error {
		switch {
		case ref.Sub < 0 && up:
			return e.MoveMainItemUp(ref.Main)
		case ref.Sub < 0:
			return e.MoveMainItemDown(ref.Main)
		case up:
			return e.MoveSubItemUp(ref.Main, ref.Sub)
		default:
			return e.MoveSubItemDown(ref.Main, ref.Sub)
		}
	})
}

func (s *Service) AddSection(ctx context.Context, id uuid.UUID, req *AddSectionRequest) (*Invoice, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return s.Edit(ctx, id, func(e *Editor) error {
		_, err := e.AddSection(req.Index, req.Title, req.DateRangeLabel)
		return err
	})
}

func (s *Service) PrintView(ctx context.Context, id uuid.UUID) (*PrintView, error) {
	inv, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return inv.PrintView(), nil
}

// -- Bills --

var validBillStatuses = map[string]bool{
	BillDraft: true, BillSubmitted: true, BillPaid: true, BillCancelled: true,
}

// Submit snapshots the draft's computed total as a Bill.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, req *SubmitRequest) (*Bill, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	inv, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = BillSubmitted
	}
	if !validBillStatuses[status] {
		return nil, fmt.Errorf("%w: invalid bill status: %s", ErrValidation, status)
	}

	bill := &Bill{
		BillNumber:  req.BillNumber,
		InvoiceID:   inv.ID,
		PatientID:   inv.PatientID,
		VisitID:     inv.VisitID,
		TotalAmount: ComputeGrandTotal(inv.Items).Round(2),
		Currency:    inv.Currency,
		Status:      status,
		Notes:       strPtr(strings.TrimSpace(req.Notes)),
	}
	if err := s.createBill(ctx, bill); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("invoice_id", inv.ID.String()).
		Str("bill_number", bill.BillNumber).
		Str("total", bill.TotalAmount.StringFixed(2)).
		Msg("bill submitted")
	return bill, nil
}

// createBill stores bill. A caller-supplied number must be unused; a generated
// one is drawn again when it collides.
func (s *Service) createBill(ctx context.Context, bill *Bill) error {
	if bill.BillNumber != "" {
		if _, err := s.bills.GetByNumber(ctx, bill.BillNumber); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateBillNumber, bill.BillNumber)
		} else if !errors.Is(err, ErrBillNotFound) {
			return fmt.Errorf("look up bill number: %w", err)
		}
		if err := s.bills.Create(ctx, bill); err != nil {
			return fmt.Errorf("create bill: %w", err)
		}
		return nil
	}

	var err error
	for attempt := 0; attempt < billNumberAttempts; attempt++ {
		bill.BillNumber = s.nextBillNumber()
		if err = s.bills.Create(ctx, bill); !errors.Is(err, ErrDuplicateBillNumber) {
			break
		}
		s.logger.Warn().Str("bill_number", bill.BillNumber).Msg("generated bill number taken, retrying")
	}
	if err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	return nil
}

func (s *Service) nextBillNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("BL-%s-%s", s.now().Format("20060102"), suffix)
}

func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.bills.GetByID(ctx, id)
}

func (s *Service) ListBillsByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error) {
	return s.bills.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) SearchBills(ctx context.Context, params map[string]string, limit, offset int) ([]*Bill, int, error) {
	return s.bills.Search(ctx, params, limit, offset)
}

// -- Adjustments --

func (s *Service) Catalog() []pricing.Rule {
	return s.calc.Catalog().Rules()
}

func (s *Service) Quote(req *QuoteRequest) (pricing.Chain, error) {
	if err := Validate(req); err != nil {
		return pricing.Chain{}, err
	}
	return s.calc.ApplyChain(req.BaseAmount, req.Primary, req.Secondary)
}
