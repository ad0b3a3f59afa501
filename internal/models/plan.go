package models

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a quota-limited resource type.
type Resource string

const (
	ResourceVehicles  Resource = "vehicles"
	ResourceUsers     Resource = "users"
	ResourceCustomers Resource = "customers"
	ResourceBranches  Resource = "branches"
)

// UnlimitedQuota marks a quota limit with no cap.
const UnlimitedQuota = -1

// PlanLimits holds the resource quotas of a plan tier. A value of -1
// means unlimited.
type PlanLimits struct {
	MaxVehicles  int `json:"max_vehicles" db:"max_vehicles"`
	MaxUsers     int `json:"max_users" db:"max_users"`
	MaxCustomers int `json:"max_customers" db:"max_customers"`
	MaxBranches  int `json:"max_branches" db:"max_branches"`
}

// For returns the limit for a given resource type.
func (l PlanLimits) For(resource Resource) (int, bool) {
	switch resource {
	case ResourceVehicles:
		return l.MaxVehicles, true
	case ResourceUsers:
		return l.MaxUsers, true
	case ResourceCustomers:
		return l.MaxCustomers, true
	case ResourceBranches:
		return l.MaxBranches, true
	}
	return 0, false
}

type Plan struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Tier                 string     `json:"tier" db:"tier"`
	Name                 string     `json:"name" db:"name"`
	MonthlyPrice         float64    `json:"monthly_price" db:"monthly_price"`
	YearlyDiscountPct    float64    `json:"yearly_discount_pct" db:"yearly_discount_pct"`
	Limits               PlanLimits `json:"limits"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// YearlyPrice applies the yearly discount to twelve monthly periods.
func (p *Plan) YearlyPrice() float64 {
	return p.MonthlyPrice * 12 * (1 - p.YearlyDiscountPct/100)
}
