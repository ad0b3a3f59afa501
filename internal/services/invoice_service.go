package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"otomart/internal/common"
	"otomart/internal/config"
	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InvoiceService is the invoice ledger and payment-proof workflow.
// Invoices move PENDING -> VERIFYING -> PAID, with REJECTED -> retry
// and OVERDUE set by the lifecycle scheduler. Invoices are financial
// records and are never hard-deleted.
type InvoiceService interface {
	// Subscribe creates the invoice for a plan subscribe/upgrade, or
	// returns the tenant's existing open invoice so retries never
	// produce a duplicate.
	Subscribe(ctx context.Context, tenantID uuid.UUID, tier string, period models.BillingPeriod) (*models.Invoice, error)
	GetForTenant(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error)
	// Get fetches an invoice across tenants (operator paths only).
	Get(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error)

	// UploadProof records a proof-of-transfer object and moves the
	// invoice to VERIFYING. Legal from PENDING, OVERDUE, and REJECTED;
	// a re-upload while VERIFYING replaces the stored proof.
	UploadProof(ctx context.Context, tenantID, invoiceID uuid.UUID, proofURL string) (*models.Invoice, error)

	// Verify settles a VERIFYING invoice. Approval marks it PAID and
	// activates the subscription in the same transaction; rejection
	// marks it REJECTED so the tenant may retry. Any other starting
	// state fails, which is the guard against double verification.
	Verify(ctx context.Context, invoiceID uuid.UUID, approve bool, verifiedBy uuid.UUID) (*models.Invoice, error)

	// RenewTx creates the next billing period's invoice for a tenant
	// whose paid period has ended (lifecycle scheduler path).
	RenewTx(ctx context.Context, tx pgx.Tx, tenant *models.Tenant) (*models.Invoice, error)

	// ForceMarkPaidTx settles an open invoice without proof inside a
	// caller-owned transaction (approval-queue execution path).
	ForceMarkPaidTx(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, actor uuid.UUID) error
	// ExtendDueDateTx pushes an open invoice's due date out by the
	// given number of days inside a caller-owned transaction.
	ExtendDueDateTx(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, days int) error
}

type invoiceService struct {
	db              repositories.TxDB
	invoiceRepo     repositories.InvoiceRepository
	planSvc         PlanService
	subscriptionSvc SubscriptionService
	policy          config.BillingPolicy
}

func NewInvoiceService(db repositories.TxDB, invoiceRepo repositories.InvoiceRepository, planSvc PlanService, subscriptionSvc SubscriptionService, policy config.BillingPolicy) InvoiceService {
	return &invoiceService{
		db:              db,
		invoiceRepo:     invoiceRepo,
		planSvc:         planSvc,
		subscriptionSvc: subscriptionSvc,
		policy:          policy,
	}
}

// amountFor computes the invoice amount from catalog pricing, applying
// the yearly discount for annual periods.
func amountFor(plan *models.Plan, period models.BillingPeriod) float64 {
	if period == models.PeriodYearly {
		return plan.YearlyPrice()
	}
	return plan.MonthlyPrice
}

func (s *invoiceService) Subscribe(ctx context.Context, tenantID uuid.UUID, tier string, period models.BillingPeriod) (*models.Invoice, error) {
	if err := common.ValidateRequiredString(tier, "plan_tier"); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, common.ValidationError("period", "must be monthly or yearly")
	}

	tenant, err := s.subscriptionSvc.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.SubscriptionStatus == models.SubscriptionCancelled {
		return nil, common.TransitionError(string(models.SubscriptionCancelled), string(models.SubscriptionActive))
	}

	plan, err := s.planSvc.GetPlan(ctx, tier)
	if err != nil {
		return nil, err
	}

	// The find-then-create below is serialized per tenant so two
	// concurrent subscribes cannot both miss the open invoice and
	// insert twice.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockTenant(ctx, tx, tenantID); err != nil {
		return nil, err
	}

	repo := s.invoiceRepo.WithTx(tx)
	open, err := repo.FindOpen(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if open.PlanTier == tier && open.Period == period {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return open, nil
		}
		return nil, common.ValidationError("plan_tier", fmt.Sprintf("invoice %s is still awaiting payment", open.InvoiceNumber))
	}

	invoice, err := s.createInvoice(ctx, repo, tenantID, tier, period, amountFor(plan, period))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return invoice, nil
}

// createInvoice issues the next invoice number and inserts the
// PENDING invoice through the given (possibly tx-bound) repository.
func (s *invoiceService) createInvoice(ctx context.Context, repo repositories.InvoiceRepository, tenantID uuid.UUID, tier string, period models.BillingPeriod, amount float64) (*models.Invoice, error) {
	now := time.Now()
	invoiceNumber, err := repo.GenerateInvoiceNumber(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		TenantID:      tenantID,
		InvoiceNumber: invoiceNumber,
		PlanTier:      tier,
		Period:        period,
		Amount:        amount,
		Status:        models.InvoicePending,
		DueDate:       now.AddDate(0, 0, s.policy.InvoiceDueDays),
	}
	if err := repo.Create(ctx, invoice); err != nil {
		return nil, err
	}
	log.Printf("Invoice %s created for tenant %s: %s %s, amount %.2f", invoice.InvoiceNumber, tenantID, tier, period, invoice.Amount)
	return invoice, nil
}

// RenewTx opens the invoice for a tenant's next billing period inside
// a caller-owned transaction. The caller has already established that
// the tenant has no open invoice.
func (s *invoiceService) RenewTx(ctx context.Context, tx pgx.Tx, tenant *models.Tenant) (*models.Invoice, error) {
	period := tenant.BillingPeriod
	if !period.Valid() {
		period = models.PeriodMonthly
	}
	plan, err := s.planSvc.GetPlan(ctx, tenant.PlanTier)
	if err != nil {
		return nil, err
	}
	return s.createInvoice(ctx, s.invoiceRepo.WithTx(tx), tenant.ID, tenant.PlanTier, period, amountFor(plan, period))
}

func (s *invoiceService) GetForTenant(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByTenantAndID(ctx, tenantID, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("invoice")
	}
	return invoice, err
}

func (s *invoiceService) Get(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("invoice")
	}
	return invoice, err
}

func (s *invoiceService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.invoiceRepo.List(ctx, tenantID, limit, offset)
}

// proofUploadAllowed is the set of states a proof upload may start from.
// VERIFYING is included so a repeated upload before verification
// replaces the proof instead of failing.
func proofUploadAllowed(status models.InvoiceStatus) bool {
	switch status {
	case models.InvoicePending, models.InvoiceOverdue, models.InvoiceRejected, models.InvoiceVerifying:
		return true
	}
	return false
}

func (s *invoiceService) UploadProof(ctx context.Context, tenantID, invoiceID uuid.UUID, proofURL string) (*models.Invoice, error) {
	if err := common.ValidateRequiredString(proofURL, "payment_proof"); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	repo := s.invoiceRepo.WithTx(tx)
	invoice, err := repo.GetForUpdate(ctx, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("invoice")
	}
	if err != nil {
		return nil, err
	}
	if invoice.TenantID != tenantID {
		return nil, common.NotFoundError("invoice")
	}
	if !proofUploadAllowed(invoice.Status) {
		log.Printf("Proof upload rejected for invoice %s: status %s (tenant=%s)", invoice.InvoiceNumber, invoice.Status, tenantID)
		return nil, fmt.Errorf("%w: cannot upload proof while %s", common.ErrInvalidInvoiceState, invoice.Status)
	}

	invoice.Status = models.InvoiceVerifying
	invoice.PaymentProofURL = &proofURL
	if err := repo.Update(ctx, invoice); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("Proof uploaded for invoice %s: now VERIFYING (tenant=%s)", invoice.InvoiceNumber, tenantID)
	return invoice, nil
}

func (s *invoiceService) Verify(ctx context.Context, invoiceID uuid.UUID, approve bool, verifiedBy uuid.UUID) (*models.Invoice, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	repo := s.invoiceRepo.WithTx(tx)
	invoice, err := repo.GetForUpdate(ctx, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("invoice")
	}
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceVerifying {
		log.Printf("Verification rejected for invoice %s: status %s, not VERIFYING (actor=%s)", invoice.InvoiceNumber, invoice.Status, verifiedBy)
		return nil, fmt.Errorf("%w: verify requires VERIFYING, invoice is %s", common.ErrInvalidInvoiceState, invoice.Status)
	}

	if approve {
		now := time.Now()
		invoice.Status = models.InvoicePaid
		invoice.PaidAt = &now
		invoice.VerifiedBy = &verifiedBy
		if err := repo.Update(ctx, invoice); err != nil {
			return nil, err
		}
		if err := s.subscriptionSvc.ActivateTx(ctx, tx, invoice.TenantID, invoice.Period, verifiedBy.String()); err != nil {
			return nil, err
		}
	} else {
		invoice.Status = models.InvoiceRejected
		invoice.VerifiedBy = &verifiedBy
		if err := repo.Update(ctx, invoice); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Printf("Invoice %s verified: %s (actor=%s)", invoice.InvoiceNumber, invoice.Status, verifiedBy)
	return invoice, nil
}

func (s *invoiceService) ForceMarkPaidTx(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, actor uuid.UUID) error {
	repo := s.invoiceRepo.WithTx(tx)
	invoice, err := repo.GetForUpdate(ctx, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFoundError("invoice")
	}
	if err != nil {
		return err
	}
	if !invoice.Open() {
		return fmt.Errorf("%w: cannot force-mark %s invoice paid", common.ErrInvalidInvoiceState, invoice.Status)
	}

	now := time.Now()
	invoice.Status = models.InvoicePaid
	invoice.PaidAt = &now
	invoice.VerifiedBy = &actor
	if err := repo.Update(ctx, invoice); err != nil {
		return err
	}
	log.Printf("Invoice %s force-marked paid (actor=%s)", invoice.InvoiceNumber, actor)
	return s.subscriptionSvc.ActivateTx(ctx, tx, invoice.TenantID, invoice.Period, actor.String())
}

func (s *invoiceService) ExtendDueDateTx(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, days int) error {
	if days <= 0 {
		return common.ValidationError("extend_days", "must be positive")
	}

	repo := s.invoiceRepo.WithTx(tx)
	invoice, err := repo.GetForUpdate(ctx, invoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFoundError("invoice")
	}
	if err != nil {
		return err
	}
	if !invoice.Open() {
		return fmt.Errorf("%w: cannot extend a %s invoice", common.ErrInvalidInvoiceState, invoice.Status)
	}

	invoice.DueDate = invoice.DueDate.AddDate(0, 0, days)
	// A billing extension also un-flags an already overdue invoice.
	if invoice.Status == models.InvoiceOverdue {
		invoice.Status = models.InvoicePending
	}
	if err := repo.Update(ctx, invoice); err != nil {
		return err
	}
	log.Printf("Invoice %s due date extended by %d days", invoice.InvoiceNumber, days)
	return nil
}
