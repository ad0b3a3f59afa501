package models

// BillingProfile aggregates what a tenant sees on its billing page:
// its subscription state, the active plan, and live usage counts.
type BillingProfile struct {
	Tenant *Tenant          `json:"tenant"`
	Plan   *Plan            `json:"plan"`
	Usage  map[Resource]int `json:"usage"`
}
