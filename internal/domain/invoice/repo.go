package invoice

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrBillNotFound  = errors.New("bill not found")

	ErrDuplicateBillNumber = errors.New("bill number already exists")
)

// DraftStore keeps invoices while they are being edited.
type DraftStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetByNumber(ctx context.Context, billNumber string) (*Bill, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Bill, int, error)
}
