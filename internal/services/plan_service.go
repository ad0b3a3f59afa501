package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"otomart/internal/caching"
	"otomart/internal/common"
	"otomart/internal/models"
	"otomart/internal/repositories"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PlanService is the plan catalog: tier pricing and quota limits,
// DB-backed and superadmin-editable.
type PlanService interface {
	GetPlan(ctx context.Context, tier string) (*models.Plan, error)
	GetPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	UpdatePlan(ctx context.Context, plan *models.Plan) error
	SeedDefaults(ctx context.Context) error
}

type planService struct {
	planRepo repositories.PlanRepository
	cacheSvc caching.CacheService
}

const planCacheTTL = 5 * time.Minute

// Default catalog seeded on first boot. Prices in IDR; -1 means
// unlimited.
var defaultPlans = []*models.Plan{
	{
		Tier:              "FREE",
		Name:              "Free",
		MonthlyPrice:      0,
		YearlyDiscountPct: 0,
		Limits:            models.PlanLimits{MaxVehicles: 10, MaxUsers: 2, MaxCustomers: 50, MaxBranches: 1},
	},
	{
		Tier:              "BASIC",
		Name:              "Basic",
		MonthlyPrice:      299000,
		YearlyDiscountPct: 10,
		Limits:            models.PlanLimits{MaxVehicles: 50, MaxUsers: 5, MaxCustomers: 500, MaxBranches: 2},
	},
	{
		Tier:              "PRO",
		Name:              "Pro",
		MonthlyPrice:      599000,
		YearlyDiscountPct: 15,
		Limits:            models.PlanLimits{MaxVehicles: 200, MaxUsers: 15, MaxCustomers: 2000, MaxBranches: 5},
	},
	{
		Tier:              "UNLIMITED",
		Name:              "Unlimited",
		MonthlyPrice:      1499000,
		YearlyDiscountPct: 20,
		Limits: models.PlanLimits{
			MaxVehicles:  models.UnlimitedQuota,
			MaxUsers:     models.UnlimitedQuota,
			MaxCustomers: models.UnlimitedQuota,
			MaxBranches:  models.UnlimitedQuota,
		},
	},
}

func NewPlanService(planRepo repositories.PlanRepository, cacheSvc caching.CacheService) PlanService {
	return &planService{planRepo: planRepo, cacheSvc: cacheSvc}
}

// GetPlan resolves a tier to its plan. Always hits the database so
// quota and invoice paths see superadmin edits immediately; readers
// that tolerate short staleness use ListPlans.
func (s *planService) GetPlan(ctx context.Context, tier string) (*models.Plan, error) {
	plan, err := s.planRepo.GetByTier(ctx, tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tier %s: %w", tier, common.ErrPlanNotFound)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) GetPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.planRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", id, common.ErrPlanNotFound)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	if cached, err := s.cacheSvc.GetPlans(ctx); err == nil && cached != nil {
		return cached, nil
	}

	plans, err := s.planRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cacheSvc.SetPlans(ctx, plans, planCacheTTL); err != nil {
		log.Printf("Failed to cache plan catalog: %v", err)
	}
	return plans, nil
}

func (s *planService) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	if plan.MonthlyPrice < 0 {
		return common.ValidationError("monthly_price", "cannot be negative")
	}
	if plan.YearlyDiscountPct < 0 || plan.YearlyDiscountPct > 100 {
		return common.ValidationError("yearly_discount_pct", "must be between 0 and 100")
	}

	existing, err := s.GetPlanByID(ctx, plan.ID)
	if err != nil {
		return err
	}
	plan.Tier = existing.Tier

	if err := s.planRepo.Update(ctx, plan); err != nil {
		return err
	}

	if err := s.cacheSvc.InvalidatePlans(ctx); err != nil {
		log.Printf("Failed to invalidate plan cache after edit of %s: %v", plan.Tier, err)
	}
	return nil
}

func (s *planService) SeedDefaults(ctx context.Context) error {
	plans := make([]*models.Plan, 0, len(defaultPlans))
	for _, plan := range defaultPlans {
		seeded := *plan
		seeded.ID = uuid.New()
		plans = append(plans, &seeded)
	}
	return s.planRepo.Seed(ctx, plans)
}
