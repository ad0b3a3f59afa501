package config

import (
	"os"
	"strconv"
	"time"
)

// BillingPolicy holds the time-based lifecycle constants. The product
// historically scattered these through UI copy; here they are one
// configured policy, overridable per environment.
type BillingPolicy struct {
	// TrialDays is the length of the free trial started on tenant creation.
	TrialDays int
	// InvoiceDueDays is how long a tenant has to pay a fresh invoice.
	InvoiceDueDays int
	// GraceDays is how long a PAST_DUE tenant may self-cure before suspension.
	GraceDays int
	// RetentionDays is how long a SUSPENDED tenant is kept before it
	// becomes eligible for purge.
	RetentionDays int
	// ProofURLTTL bounds presigned proof-of-payment download links.
	ProofURLTTL time.Duration
}

// DefaultBillingPolicy returns the shipped defaults: 14-day trial,
// 7-day invoice due window, 7-day grace period, 30-day retention.
func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		TrialDays:      14,
		InvoiceDueDays: 7,
		GraceDays:      7,
		RetentionDays:  30,
		ProofURLTTL:    15 * time.Minute,
	}
}

// LoadBillingPolicy reads the policy from the environment, falling back
// to the defaults for anything unset.
func LoadBillingPolicy() BillingPolicy {
	p := DefaultBillingPolicy()
	p.TrialDays = envInt("BILLING_TRIAL_DAYS", p.TrialDays)
	p.InvoiceDueDays = envInt("BILLING_INVOICE_DUE_DAYS", p.InvoiceDueDays)
	p.GraceDays = envInt("BILLING_GRACE_DAYS", p.GraceDays)
	p.RetentionDays = envInt("BILLING_RETENTION_DAYS", p.RetentionDays)
	p.ProofURLTTL = time.Duration(envInt("BILLING_PROOF_URL_TTL_MINUTES", int(p.ProofURLTTL/time.Minute))) * time.Minute
	return p
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
