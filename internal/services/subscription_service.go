package services

import (
	"context"
	"errors"
	"log"
	"time"

	"otomart/internal/caching"
	"otomart/internal/common"
	"otomart/internal/config"
	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SubscriptionService drives the tenant subscription lifecycle:
// TRIAL, ACTIVE, PAST_DUE, SUSPENDED, CANCELLED. Every transition runs
// inside a transaction that re-reads the tenant row under a lock, so
// repeated scheduler ticks and concurrent writers cannot double-apply
// an edge.
type SubscriptionService interface {
	Provision(ctx context.Context, name, subdomain string) (*models.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)

	// Tx variants compose into a caller-owned transaction (invoice
	// verification, approval execution, scheduler tick).
	ActivateTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, period models.BillingPeriod, actor string) error
	ExpireTrialTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error
	MarkPastDueTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error
	SuspendTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, actor string) error
	ChangePlanTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, newTier string, actor string) error

	Suspend(ctx context.Context, tenantID uuid.UUID, actor string) error
	Reinstate(ctx context.Context, tenantID uuid.UUID, actor string) error
	Cancel(ctx context.Context, tenantID uuid.UUID, actor string) error

	// Purge irreversibly deletes a SUSPENDED tenant past its scheduled
	// deletion date. Requires explicit confirmation.
	Purge(ctx context.Context, tenantID uuid.UUID, confirmed bool, actor string) error
}

// subscriptionEdges is the allowed transition graph. A transition to
// the current state is a no-op, not an error, to tolerate at-least-once
// scheduler execution.
var subscriptionEdges = map[models.SubscriptionStatus][]models.SubscriptionStatus{
	models.SubscriptionTrial:     {models.SubscriptionActive, models.SubscriptionPastDue, models.SubscriptionCancelled},
	models.SubscriptionActive:    {models.SubscriptionPastDue, models.SubscriptionCancelled},
	models.SubscriptionPastDue:   {models.SubscriptionActive, models.SubscriptionSuspended, models.SubscriptionCancelled},
	models.SubscriptionSuspended: {models.SubscriptionActive},
	models.SubscriptionCancelled: {},
}

// CanTransition reports whether from -> to is an edge of the lifecycle
// graph. Same-state is always allowed (idempotent no-op).
func CanTransition(from, to models.SubscriptionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range subscriptionEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

type subscriptionService struct {
	db         repositories.TxDB
	tenantRepo repositories.TenantRepository
	cacheSvc   caching.CacheService
	policy     config.BillingPolicy
}

func NewSubscriptionService(db repositories.TxDB, tenantRepo repositories.TenantRepository, cacheSvc caching.CacheService, policy config.BillingPolicy) SubscriptionService {
	return &subscriptionService{db: db, tenantRepo: tenantRepo, cacheSvc: cacheSvc, policy: policy}
}

// Provision creates a dealership tenant in TRIAL on the FREE tier with
// the configured trial window.
func (s *subscriptionService) Provision(ctx context.Context, name, subdomain string) (*models.Tenant, error) {
	if err := common.ValidateRequiredString(name, "name"); err != nil {
		return nil, err
	}
	if err := common.ValidateRequiredString(subdomain, "subdomain"); err != nil {
		return nil, err
	}

	trialEndsAt := time.Now().AddDate(0, 0, s.policy.TrialDays)
	tenant := &models.Tenant{
		ID:                 uuid.New(),
		Name:               name,
		Subdomain:          subdomain,
		PlanTier:           "FREE",
		SubscriptionStatus: models.SubscriptionTrial,
		BillingPeriod:      models.PeriodMonthly,
		TrialEndsAt:        &trialEndsAt,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	log.Printf("Tenant %s provisioned: TRIAL until %s", tenant.ID, trialEndsAt.Format(time.RFC3339))
	return tenant, nil
}

func (s *subscriptionService) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFoundError("tenant")
	}
	return tenant, err
}

func (s *subscriptionService) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	limit, offset = common.ValidatePaginationParams(limit, offset)
	return s.tenantRepo.List(ctx, limit, offset)
}

// mutator adjusts tenant fields once an edge has been validated.
type mutator func(tenant *models.Tenant)

// transition re-reads the tenant under a row lock, validates the edge,
// applies the field changes, and writes back. A same-state request
// returns nil without touching the row.
func (s *subscriptionService) transition(ctx context.Context, repo repositories.TenantRepository, tenantID uuid.UUID, to models.SubscriptionStatus, actor string, mutate mutator) error {
	tenant, err := repo.GetForUpdate(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFoundError("tenant")
	}
	if err != nil {
		return err
	}

	from := tenant.SubscriptionStatus
	if from == to {
		log.Printf("Subscription transition no-op for tenant %s: already %s (actor=%s)", tenantID, to, actor)
		return nil
	}
	if !CanTransition(from, to) {
		log.Printf("Subscription transition rejected for tenant %s: %s -> %s (actor=%s)", tenantID, from, to, actor)
		return common.TransitionError(string(from), string(to))
	}

	tenant.SubscriptionStatus = to
	if mutate != nil {
		mutate(tenant)
	}
	if err := repo.UpdateSubscription(ctx, tenant); err != nil {
		return err
	}

	log.Printf("Subscription transition for tenant %s: %s -> %s (actor=%s)", tenantID, from, to, actor)
	s.invalidateProfile(ctx, tenantID)
	return nil
}

// inOwnTx wraps a transition in its own advisory-locked transaction
// for callers that are not already inside one.
func (s *subscriptionService) inOwnTx(ctx context.Context, tenantID uuid.UUID, to models.SubscriptionStatus, actor string, mutate mutator) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockTenant(ctx, tx, tenantID); err != nil {
		return err
	}
	if err := s.transition(ctx, s.tenantRepo.WithTx(tx), tenantID, to, actor, mutate); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *subscriptionService) activateMutator(period models.BillingPeriod) mutator {
	return func(tenant *models.Tenant) {
		endsAt := time.Now()
		if period == models.PeriodYearly {
			endsAt = endsAt.AddDate(1, 0, 0)
		} else {
			endsAt = endsAt.AddDate(0, 1, 0)
		}
		tenant.BillingPeriod = period
		tenant.SubscriptionEndsAt = &endsAt
		tenant.PastDueSince = nil
		tenant.ScheduledDeletionAt = nil
	}
}

func (s *subscriptionService) ActivateTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, period models.BillingPeriod, actor string) error {
	return s.transition(ctx, s.tenantRepo.WithTx(tx), tenantID, models.SubscriptionActive, actor, s.activateMutator(period))
}

func (s *subscriptionService) ExpireTrialTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	now := time.Now()
	return s.transition(ctx, s.tenantRepo.WithTx(tx), tenantID, models.SubscriptionPastDue, "scheduler", func(tenant *models.Tenant) {
		tenant.PastDueSince = &now
	})
}

func (s *subscriptionService) MarkPastDueTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID) error {
	now := time.Now()
	return s.transition(ctx, s.tenantRepo.WithTx(tx), tenantID, models.SubscriptionPastDue, "scheduler", func(tenant *models.Tenant) {
		tenant.PastDueSince = &now
	})
}

func (s *subscriptionService) suspendMutator() mutator {
	return func(tenant *models.Tenant) {
		deletionAt := time.Now().AddDate(0, 0, s.policy.RetentionDays)
		tenant.ScheduledDeletionAt = &deletionAt
	}
}

func (s *subscriptionService) SuspendTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, actor string) error {
	return s.transition(ctx, s.tenantRepo.WithTx(tx), tenantID, models.SubscriptionSuspended, actor, s.suspendMutator())
}

func (s *subscriptionService) ChangePlanTx(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, newTier string, actor string) error {
	repo := s.tenantRepo.WithTx(tx)
	tenant, err := repo.GetForUpdate(ctx, tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFoundError("tenant")
	}
	if err != nil {
		return err
	}

	oldTier := tenant.PlanTier
	tenant.PlanTier = newTier
	if err := repo.UpdateSubscription(ctx, tenant); err != nil {
		return err
	}
	log.Printf("Plan change for tenant %s: %s -> %s (actor=%s)", tenantID, oldTier, newTier, actor)
	s.invalidateProfile(ctx, tenantID)
	return nil
}

func (s *subscriptionService) Suspend(ctx context.Context, tenantID uuid.UUID, actor string) error {
	return s.inOwnTx(ctx, tenantID, models.SubscriptionSuspended, actor, s.suspendMutator())
}

// Reinstate returns a SUSPENDED tenant to ACTIVE after a superadmin
// verifies an out-of-band payment; the deletion clock stops.
func (s *subscriptionService) Reinstate(ctx context.Context, tenantID uuid.UUID, actor string) error {
	return s.inOwnTx(ctx, tenantID, models.SubscriptionActive, actor, s.activateMutator(models.PeriodMonthly))
}

func (s *subscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID, actor string) error {
	return s.inOwnTx(ctx, tenantID, models.SubscriptionCancelled, actor, func(tenant *models.Tenant) {
		tenant.SubscriptionEndsAt = nil
		tenant.ScheduledDeletionAt = nil
	})
}

func (s *subscriptionService) Purge(ctx context.Context, tenantID uuid.UUID, confirmed bool, actor string) error {
	if !confirmed {
		return common.ValidationError("confirm", "is required for tenant purge")
	}

	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.SubscriptionStatus != models.SubscriptionSuspended || tenant.ScheduledDeletionAt == nil {
		return common.TransitionError(string(tenant.SubscriptionStatus), "PURGED")
	}
	if tenant.ScheduledDeletionAt.After(time.Now()) {
		return common.ValidationError("scheduled_deletion_at", "has not passed yet")
	}

	if err := s.tenantRepo.Delete(ctx, tenantID); err != nil {
		return err
	}
	log.Printf("Tenant %s purged after retention window (actor=%s)", tenantID, actor)
	s.invalidateProfile(ctx, tenantID)
	return nil
}

func (s *subscriptionService) invalidateProfile(ctx context.Context, tenantID uuid.UUID) {
	if s.cacheSvc == nil {
		return
	}
	if err := s.cacheSvc.InvalidateTenant(ctx, tenantID); err != nil {
		log.Printf("Failed to invalidate cached profile for tenant %s: %v", tenantID, err)
	}
}
