package repositories

import (
	"context"

	"otomart/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PlanRepository interface {
	GetByTier(ctx context.Context, tier string) (*models.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	List(ctx context.Context) ([]*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) error
	// Seed inserts default plans, skipping tiers that already exist.
	Seed(ctx context.Context, plans []*models.Plan) error
	WithTx(tx pgx.Tx) PlanRepository
}

type planRepo struct {
	db DB
}

func NewPlanRepo(db DB) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) WithTx(tx pgx.Tx) PlanRepository {
	return &planRepo{db: tx}
}

const planColumns = `id, tier, name, monthly_price, yearly_discount_pct, max_vehicles, max_users, max_customers, max_branches, created_at, updated_at`

func scanPlan(row pgx.Row) (*models.Plan, error) {
	plan := &models.Plan{}
	err := row.Scan(&plan.ID, &plan.Tier, &plan.Name, &plan.MonthlyPrice, &plan.YearlyDiscountPct, &plan.Limits.MaxVehicles, &plan.Limits.MaxUsers, &plan.Limits.MaxCustomers, &plan.Limits.MaxBranches, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *planRepo) GetByTier(ctx context.Context, tier string) (*models.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE tier = $1
	`
	return scanPlan(r.db.QueryRow(ctx, query, tier))
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = $1
	`
	return scanPlan(r.db.QueryRow(ctx, query, id))
}

func (r *planRepo) List(ctx context.Context) ([]*models.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		ORDER BY monthly_price ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan := &models.Plan{}
		if err := rows.Scan(&plan.ID, &plan.Tier, &plan.Name, &plan.MonthlyPrice, &plan.YearlyDiscountPct, &plan.Limits.MaxVehicles, &plan.Limits.MaxUsers, &plan.Limits.MaxCustomers, &plan.Limits.MaxBranches, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *planRepo) Update(ctx context.Context, plan *models.Plan) error {
	query := `
		UPDATE plans
		SET name = $1, monthly_price = $2, yearly_discount_pct = $3, max_vehicles = $4, max_users = $5, max_customers = $6, max_branches = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := r.db.Exec(ctx, query, plan.Name, plan.MonthlyPrice, plan.YearlyDiscountPct, plan.Limits.MaxVehicles, plan.Limits.MaxUsers, plan.Limits.MaxCustomers, plan.Limits.MaxBranches, plan.ID)
	return err
}

func (r *planRepo) Seed(ctx context.Context, plans []*models.Plan) error {
	query := `
		INSERT INTO plans (id, tier, name, monthly_price, yearly_discount_pct, max_vehicles, max_users, max_customers, max_branches, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (tier) DO NOTHING
	`
	for _, plan := range plans {
		if _, err := r.db.Exec(ctx, query, plan.ID, plan.Tier, plan.Name, plan.MonthlyPrice, plan.YearlyDiscountPct, plan.Limits.MaxVehicles, plan.Limits.MaxUsers, plan.Limits.MaxCustomers, plan.Limits.MaxBranches); err != nil {
			return err
		}
	}
	return nil
}
