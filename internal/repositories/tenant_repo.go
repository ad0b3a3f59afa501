package repositories

import (
	"context"
	"time"

	"otomart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	// GetForUpdate re-reads the tenant row with a row lock. Only
	// meaningful on a repository rebound to a transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateSubscription(ctx context.Context, tenant *models.Tenant) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx pgx.Tx) TenantRepository
}

type tenantRepo struct {
	db DB
}

func NewTenantRepo(db DB) TenantRepository {
	return &tenantRepo{db: db}
}

func (r *tenantRepo) WithTx(tx pgx.Tx) TenantRepository {
	return &tenantRepo{db: tx}
}

const tenantColumns = `id, name, subdomain, plan_tier, subscription_status, billing_period, trial_ends_at, subscription_ends_at, past_due_since, scheduled_deletion_at, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Subdomain, &tenant.PlanTier, &tenant.SubscriptionStatus, &tenant.BillingPeriod, &tenant.TrialEndsAt, &tenant.SubscriptionEndsAt, &tenant.PastDueSince, &tenant.ScheduledDeletionAt, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tenant, nil
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, subdomain, plan_tier, subscription_status, billing_period, trial_ends_at, subscription_ends_at, past_due_since, scheduled_deletion_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.Subdomain, tenant.PlanTier, tenant.SubscriptionStatus, tenant.BillingPeriod, tenant.TrialEndsAt, tenant.SubscriptionEndsAt, tenant.PastDueSince, tenant.ScheduledDeletionAt)
	return err
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1
	`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE id = $1
		FOR UPDATE
	`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) UpdateSubscription(ctx context.Context, tenant *models.Tenant) error {
	query := `
		UPDATE tenants
		SET plan_tier = $1, subscription_status = $2, billing_period = $3, trial_ends_at = $4, subscription_ends_at = $5, past_due_since = $6, scheduled_deletion_at = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := r.db.Exec(ctx, query, tenant.PlanTier, tenant.SubscriptionStatus, tenant.BillingPeriod, tenant.TrialEndsAt, tenant.SubscriptionEndsAt, tenant.PastDueSince, tenant.ScheduledDeletionAt, tenant.ID)
	if err == nil {
		tenant.UpdatedAt = time.Now()
	}
	return err
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		if err := rows.Scan(&tenant.ID, &tenant.Name, &tenant.Subdomain, &tenant.PlanTier, &tenant.SubscriptionStatus, &tenant.BillingPeriod, &tenant.TrialEndsAt, &tenant.SubscriptionEndsAt, &tenant.PastDueSince, &tenant.ScheduledDeletionAt, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (r *tenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM tenants WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
