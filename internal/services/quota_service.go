package services

import (
	"context"
	"errors"
	"fmt"

	"otomart/internal/common"
	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// QuotaService validates live resource usage against the tenant's
// active plan before resource creation. Checks fail closed: an
// unresolvable plan rejects the creation.
type QuotaService interface {
	// CheckQuota recounts usage and compares against the plan limit.
	// It is advisory on its own; creators that must not jointly exceed
	// the quota use WithinQuota instead.
	CheckQuota(ctx context.Context, tenantID uuid.UUID, resource models.Resource, proposedCount int) error
	// WithinQuota runs the quota check and the caller's insert in one
	// transaction, serialized per tenant, so concurrent creations
	// cannot jointly exceed the limit.
	WithinQuota(ctx context.Context, tenantID uuid.UUID, resource models.Resource, proposedCount int, insert func(tx pgx.Tx) error) error
}

type quotaService struct {
	db         repositories.TxDB
	tenantRepo repositories.TenantRepository
	planRepo   repositories.PlanRepository
	usageRepo  repositories.UsageRepository
}

func NewQuotaService(db repositories.TxDB, tenantRepo repositories.TenantRepository, planRepo repositories.PlanRepository, usageRepo repositories.UsageRepository) QuotaService {
	return &quotaService{db: db, tenantRepo: tenantRepo, planRepo: planRepo, usageRepo: usageRepo}
}

// lockTenant serializes quota-relevant work per tenant for the
// lifetime of the transaction.
func lockTenant(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, tenantID)
	return err
}

func (s *quotaService) CheckQuota(ctx context.Context, tenantID uuid.UUID, resource models.Resource, proposedCount int) error {
	return s.check(ctx, s.tenantRepo, s.planRepo, s.usageRepo, tenantID, resource, proposedCount)
}

func (s *quotaService) WithinQuota(ctx context.Context, tenantID uuid.UUID, resource models.Resource, proposedCount int, insert func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockTenant(ctx, tx, tenantID); err != nil {
		return err
	}

	if err := s.check(ctx, s.tenantRepo.WithTx(tx), s.planRepo.WithTx(tx), s.usageRepo.WithTx(tx), tenantID, resource, proposedCount); err != nil {
		return err
	}

	if err := insert(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// check recounts usage against the limits of the tenant's current
// plan, resolved fresh from the same repositories (and so the same
// transaction) the caller is using.
func (s *quotaService) check(ctx context.Context, tenantRepo repositories.TenantRepository, planRepo repositories.PlanRepository, usageRepo repositories.UsageRepository, tenantID uuid.UUID, resource models.Resource, proposedCount int) error {
	if proposedCount <= 0 {
		return common.ValidationError("proposed_count", "must be positive")
	}

	tenant, err := tenantRepo.GetByID(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFoundError("tenant")
	}
	if err != nil {
		return err
	}

	plan, err := planRepo.GetByTier(ctx, tenant.PlanTier)
	if errors.Is(err, pgx.ErrNoRows) {
		// Fail closed: an unresolvable tier must block creation.
		return fmt.Errorf("tier %s: %w", tenant.PlanTier, common.ErrPlanNotFound)
	}
	if err != nil {
		return err
	}

	limit, ok := plan.Limits.For(resource)
	if !ok {
		return common.ValidationError("resource_type", "is unknown")
	}
	if limit == models.UnlimitedQuota {
		return nil
	}

	current, err := usageRepo.Count(ctx, tenantID, resource)
	if err != nil {
		return err
	}
	if current+proposedCount > limit {
		return common.QuotaError(string(resource), limit, current, proposedCount)
	}
	return nil
}
