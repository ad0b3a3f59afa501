package repositories

import (
	"context"
	"fmt"
	"time"

	"otomart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error)
	// GetForUpdate re-reads the invoice row with a row lock. Only
	// meaningful on a repository rebound to a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error)
	// FindOpen returns the tenant's newest invoice that still awaits
	// payment, or nil when every invoice is settled.
	FindOpen(ctx context.Context, tenantID uuid.UUID) (*models.Invoice, error)
	// MarkOverdue flips the tenant's PENDING invoices whose due date has
	// passed to OVERDUE and reports how many rows changed.
	MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error)
	GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, issuedDate time.Time) (string, error)
	WithTx(tx pgx.Tx) InvoiceRepository
}

type invoiceRepo struct {
	db DB
}

func NewInvoiceRepo(db DB) InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) WithTx(tx pgx.Tx) InvoiceRepository {
	return &invoiceRepo{db: tx}
}

const invoiceColumns = `id, tenant_id, invoice_number, plan_tier, period, amount, status, due_date, paid_at, payment_proof_url, verified_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	err := row.Scan(&invoice.ID, &invoice.TenantID, &invoice.InvoiceNumber, &invoice.PlanTier, &invoice.Period, &invoice.Amount, &invoice.Status, &invoice.DueDate, &invoice.PaidAt, &invoice.PaymentProofURL, &invoice.VerifiedBy, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (id, tenant_id, invoice_number, plan_tier, period, amount, status, due_date, paid_at, payment_proof_url, verified_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, invoice.ID, invoice.TenantID, invoice.InvoiceNumber, invoice.PlanTier, invoice.Period, invoice.Amount, invoice.Status, invoice.DueDate, invoice.PaidAt, invoice.PaymentProofURL, invoice.VerifiedBy)
	return err
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1
	`
	return scanInvoice(r.db.QueryRow(ctx, query, id))
}

func (r *invoiceRepo) GetByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND id = $2
	`
	return scanInvoice(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *invoiceRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`
	return scanInvoice(r.db.QueryRow(ctx, query, id))
}

func (r *invoiceRepo) Update(ctx context.Context, invoice *models.Invoice) error {
	query := `
		UPDATE invoices
		SET plan_tier = $1, period = $2, amount = $3, status = $4, due_date = $5, paid_at = $6, payment_proof_url = $7, verified_by = $8, updated_at = NOW()
		WHERE id = $9
	`
	_, err := r.db.Exec(ctx, query, invoice.PlanTier, invoice.Period, invoice.Amount, invoice.Status, invoice.DueDate, invoice.PaidAt, invoice.PaymentProofURL, invoice.VerifiedBy, invoice.ID)
	return err
}

func (r *invoiceRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice := &models.Invoice{}
		if err := rows.Scan(&invoice.ID, &invoice.TenantID, &invoice.InvoiceNumber, &invoice.PlanTier, &invoice.Period, &invoice.Amount, &invoice.Status, &invoice.DueDate, &invoice.PaidAt, &invoice.PaymentProofURL, &invoice.VerifiedBy, &invoice.CreatedAt, &invoice.UpdatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepo) FindOpen(ctx context.Context, tenantID uuid.UUID) (*models.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE tenant_id = $1 AND status IN ('PENDING', 'VERIFYING', 'OVERDUE', 'REJECTED')
		ORDER BY created_at DESC
		LIMIT 1
	`
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, tenantID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return invoice, err
}

func (r *invoiceRepo) MarkOverdue(ctx context.Context, tenantID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE invoices
		SET status = 'OVERDUE', updated_at = NOW()
		WHERE tenant_id = $1 AND status = 'PENDING' AND due_date < $2
	`
	tag, err := r.db.Exec(ctx, query, tenantID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GenerateInvoiceNumber allocates the next per-tenant sequence number
// through an upsert on invoice_sequences, so concurrent allocations for
// the same tenant and month never collide.
func (r *invoiceRepo) GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, issuedDate time.Time) (string, error) {
	yearMonth := issuedDate.Format("2006-01")

	query := `
		WITH upsert AS (
			INSERT INTO invoice_sequences (tenant_id, year_month, last_number)
			VALUES ($1, $2, 1)
			ON CONFLICT (tenant_id, year_month)
			DO UPDATE SET
				last_number = invoice_sequences.last_number + 1,
				updated_at = NOW()
			RETURNING last_number
		)
		SELECT last_number FROM upsert;
	`

	var sequenceNum int
	err := r.db.QueryRow(ctx, query, tenantID, yearMonth).Scan(&sequenceNum)
	if err != nil {
		return "", fmt.Errorf("failed to generate invoice sequence: %w", err)
	}

	tenantSuffix := tenantID.String()[len(tenantID.String())-8:]
	return fmt.Sprintf("INV-%s-%s-%06d", tenantSuffix, yearMonth, sequenceNum), nil
}
