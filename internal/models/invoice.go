package models

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the payment-verification state of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "PENDING"
	InvoiceVerifying InvoiceStatus = "VERIFYING"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceRejected  InvoiceStatus = "REJECTED"
	InvoiceOverdue   InvoiceStatus = "OVERDUE"
)

// BillingPeriod is the subscription interval an invoice covers.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

func (p BillingPeriod) Valid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

type Invoice struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	TenantID        uuid.UUID     `json:"tenant_id" db:"tenant_id"`
	InvoiceNumber   string        `json:"invoice_number" db:"invoice_number"`
	PlanTier        string        `json:"plan_tier" db:"plan_tier"`
	Period          BillingPeriod `json:"period" db:"period"`
	Amount          float64       `json:"amount" db:"amount"`
	Status          InvoiceStatus `json:"status" db:"status"`
	DueDate         time.Time     `json:"due_date" db:"due_date"`
	PaidAt          *time.Time    `json:"paid_at" db:"paid_at"`
	PaymentProofURL *string       `json:"payment_proof_url" db:"payment_proof_url"`
	VerifiedBy      *uuid.UUID    `json:"verified_by" db:"verified_by"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// Open reports whether the invoice still awaits a successful payment.
func (i *Invoice) Open() bool {
	return i.Status == InvoicePending || i.Status == InvoiceVerifying ||
		i.Status == InvoiceOverdue || i.Status == InvoiceRejected
}
