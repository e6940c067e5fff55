package service

import (
	"context"
	"fmt"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/slogx"
	"github.com/parlourtech/whopdash/pkg/whopapi"
)

// DefaultMetricsWindow is how many daily snapshots a dashboard fetch returns.
const DefaultMetricsWindow = 30

// MetricsPlatform is the slice of the Whop API the metrics sync needs.
type MetricsPlatform interface {
	CompanyMetrics(ctx context.Context, accessToken, companyID string) (*whopapi.CompanyMetrics, error)
}

// MetricsService stores daily activity snapshots per tenant and pulls fresh
// ones from the platform on demand.
type MetricsService struct {
	Store         store.Store
	Installations *InstallationService
	Platform      MetricsPlatform
}

// ListForTenant returns up to limit snapshots, newest first. A non-positive
// limit gets the default window.
func (s *MetricsService) ListForTenant(ctx context.Context, tenantID string, limit int) ([]domain.DailyMetric, error) {
	if limit <= 0 {
		limit = DefaultMetricsWindow
	}
	return s.Store.Metrics().ListByTenant(ctx, tenantID, limit)
}

// SyncToday pulls the tenant's current snapshot from the platform and writes
// it as today's metric, replacing any earlier pull from the same day.
func (s *MetricsService) SyncToday(ctx context.Context, tenantID string) (domain.DailyMetric, error) {
	l := slogx.FromContext(ctx)

	token, err := s.Installations.CredentialFor(ctx, tenantID)
	if err != nil {
		return domain.DailyMetric{}, err
	}

	snapshot, err := s.Platform.CompanyMetrics(ctx, token, tenantID)
	if err != nil {
		return domain.DailyMetric{}, fmt.Errorf("fetch company metrics: %w", err)
	}

	metric, err := s.Store.Metrics().UpsertDaily(ctx, domain.DailyMetric{
		TenantID:      tenantID,
		Day:           time.Now().UTC().Format(time.DateOnly),
		ActiveMembers: snapshot.ActiveMembers,
		RevenueCents:  snapshot.RevenueCents,
	})
	if err != nil {
		return domain.DailyMetric{}, err
	}

	l.Info("metrics synced",
		"tenant_id", tenantID,
		"day", metric.Day,
		"active_members", metric.ActiveMembers,
	)

	return metric, nil
}
