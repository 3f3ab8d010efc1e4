// Package models defines the account record shared by the quota and billing paths.
package models

import "time"

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

// Account is the per-user document keyed by the identity-provider subject.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email,omitempty"`
	Name              string    `json:"name,omitempty"`
	Picture           string    `json:"picture,omitempty"`
	UsageCount        int       `json:"usage_count"`
	IsPro             bool      `json:"is_pro"`
	BillingCustomerID string    `json:"billing_customer_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	LastLogin         time.Time `json:"last_login"`
}

// Plan derives the display plan from the pro flag.
func (a Account) Plan() Plan {
	if a.IsPro {
		return PlanPro
	}
	return PlanFree
}

// Profile carries the identity-provider claims merged into an account on login.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// UsageStatus is what the status endpoint reports back to the frontend.
// Limit and Remaining are nil for pro accounts.
type UsageStatus struct {
	IsPro      bool `json:"is_pro"`
	Plan       Plan `json:"plan"`
	UsageCount int  `json:"usage_count"`
	Limit      *int `json:"limit"`
	Remaining  *int `json:"remaining"`
}
