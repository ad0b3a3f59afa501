package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is a platform-level bank or e-wallet account shown to
// tenants during manual payment. Admin-managed; not coupled to any
// tenant or invoice lifecycle.
type PaymentMethod struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Provider      string    `json:"provider" db:"provider"`
	AccountName   string    `json:"account_name" db:"account_name"`
	AccountNumber string    `json:"account_number" db:"account_number"`
	Instructions  *string   `json:"instructions" db:"instructions"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
