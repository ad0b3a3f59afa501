package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the tenant-level subscription lifecycle state.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "TRIAL"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// Valid reports whether s is one of the five defined lifecycle states.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionPastDue,
		SubscriptionSuspended, SubscriptionCancelled:
		return true
	}
	return false
}

type Tenant struct {
	ID                  uuid.UUID          `json:"id" db:"id"`
	Name                string             `json:"name" db:"name"`
	Subdomain           string             `json:"subdomain" db:"subdomain"`
	PlanTier            string             `json:"plan_tier" db:"plan_tier"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	BillingPeriod       BillingPeriod      `json:"billing_period" db:"billing_period"`
	TrialEndsAt         *time.Time         `json:"trial_ends_at" db:"trial_ends_at"`
	SubscriptionEndsAt  *time.Time         `json:"subscription_ends_at" db:"subscription_ends_at"`
	PastDueSince        *time.Time         `json:"past_due_since" db:"past_due_since"`
	ScheduledDeletionAt *time.Time         `json:"scheduled_deletion_at" db:"scheduled_deletion_at"`
	CreatedAt           time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" db:"updated_at"`
}
