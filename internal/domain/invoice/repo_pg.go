package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository { return &billRepoPG{pool: pool} }

func (r *billRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const billCols = `id, bill_number, invoice_id, patient_id, visit_id,
	total_amount, currency, status, notes, created_at`

func (r *billRepoPG) scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.BillNumber, &b.InvoiceID, &b.PatientID, &b.VisitID,
		&b.TotalAmount, &b.Currency, &b.Status, &b.Notes, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bills (id, bill_number, invoice_id, patient_id, visit_id,
			total_amount, currency, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		b.ID, b.BillNumber, b.InvoiceID, b.PatientID, b.VisitID,
		b.TotalAmount, b.Currency, b.Status, b.Notes).Scan(&b.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "bills_bill_number_key" {
		return ErrDuplicateBillNumber
	}
	return err
}

const uniqueViolation = "23505"

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return r.scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bills WHERE id = $1`, id))
}

func (r *billRepoPG) GetByNumber(ctx context.Context, billNumber string) (*Bill, error) {
	return r.scanBill(r.conn(ctx).QueryRow(ctx, `SELECT `+billCols+` FROM bills WHERE bill_number = $1`, billNumber))
}

func (r *billRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error) {
	return r.Search(ctx, map[string]string{"patient_id": patientID}, limit, offset)
}

// billSearchColumns whitelists filterable columns.
var billSearchColumns = map[string]string{
	"patient_id": "patient_id",
	"visit_id":   "visit_id",
	"status":     "status",
	"invoice_id": "invoice_id",
}

func (r *billRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Bill, int, error) {
	var where []string
	var args []interface{}
	for key, col := range billSearchColumns {
		if v, ok := params[key]; ok && v != "" {
			args = append(args, v)
			where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bills`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataArgs := append(append([]interface{}{}, args...), limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM bills%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		billCols, clause, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := r.scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
