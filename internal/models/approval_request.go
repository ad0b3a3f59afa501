package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType tags the privileged action an approval request carries.
type ActionType string

const (
	ActionPlanChange    ActionType = "PLAN_CHANGE"
	ActionBillingExtend ActionType = "BILLING_EXTEND"
	ActionInvoiceAction ActionType = "INVOICE_ACTION"
	ActionTenantSuspend ActionType = "TENANT_SUSPEND"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionPlanChange, ActionBillingExtend, ActionInvoiceAction, ActionTenantSuspend:
		return true
	}
	return false
}

// ApprovalStatus is the decision state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// PlanChangePayload requests moving the tenant to another plan tier.
type PlanChangePayload struct {
	NewTier string        `json:"new_tier"`
	Period  BillingPeriod `json:"period"`
}

// BillingExtendPayload requests pushing an invoice's due date out.
type BillingExtendPayload struct {
	InvoiceID  uuid.UUID `json:"invoice_id"`
	ExtendDays int       `json:"extend_days"`
}

// InvoiceActionPayload requests force-marking an invoice paid.
type InvoiceActionPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// TenantSuspendPayload requests suspending the tenant's own account.
type TenantSuspendPayload struct {
	Reason string `json:"reason"`
}

// ApprovalRequest is a staff-initiated privileged action awaiting a
// superadmin decision. Payload holds the raw serialized parameters for
// audit; DecodePayload yields the typed variant for execution.
type ApprovalRequest struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	TenantID    uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Type        ActionType      `json:"type" db:"type"`
	Status      ApprovalStatus  `json:"status" db:"status"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	RequestedBy uuid.UUID       `json:"requested_by" db:"requested_by"`
	RequestedAt time.Time       `json:"requested_at" db:"requested_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
	ProcessedBy *uuid.UUID      `json:"processed_by" db:"processed_by"`
}

// DecodePayload unmarshals the stored payload into the variant matching
// the request type.
func (r *ApprovalRequest) DecodePayload() (interface{}, error) {
	switch r.Type {
	case ActionPlanChange:
		var p PlanChangePayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionBillingExtend:
		var p BillingExtendPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionInvoiceAction:
		var p InvoiceActionPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionTenantSuspend:
		var p TenantSuspendPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown approval action type: %s", r.Type)
}
