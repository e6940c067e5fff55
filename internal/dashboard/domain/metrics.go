package domain

import "time"

// DailyMetric is one day's activity snapshot for a tenant.
type DailyMetric struct {
	ID            string
	TenantID      string
	Day           string // "2006-01-02", UTC
	ActiveMembers int
	RevenueCents  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
