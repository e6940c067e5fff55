package domain

import "time"

// Installation is one tenant's installation of the dashboard app. The tenant
// ID is the Whop company ID and is unique across installations.
type Installation struct {
	ID           string
	TenantID     string // Whop company ID, "biz_" prefixed
	ExperienceID string // "exp_" prefixed, empty when the platform never sent one
	UserID       string // platform user who installed the app
	PlanTier     string
	// AccessCredential is the platform access token, sealed at rest.
	AccessCredential string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InstallationFields carries the updatable attributes of an installation.
// Empty strings mean "leave the stored value alone".
type InstallationFields struct {
	ExperienceID     string
	UserID           string
	PlanTier         string
	AccessCredential string
}
