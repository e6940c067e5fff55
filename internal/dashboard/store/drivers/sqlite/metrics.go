package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/pkg/idx"
)

type metricsRepo struct {
	db *sql.DB
}

func (r *metricsRepo) UpsertDaily(ctx context.Context, m domain.DailyMetric) (domain.DailyMetric, error) {
	now := time.Now().UTC().Unix()
	id := idx.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_metrics (id, tenant_id, day, active_members, revenue_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, day) DO UPDATE SET
			active_members = excluded.active_members,
			revenue_cents  = excluded.revenue_cents,
			updated_at     = excluded.updated_at`,
		id, m.TenantID, m.Day, m.ActiveMembers, m.RevenueCents, now, now,
	)
	if err != nil {
		return domain.DailyMetric{}, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, day, active_members, revenue_cents, created_at, updated_at
		FROM daily_metrics WHERE tenant_id = ? AND day = ?`, m.TenantID, m.Day)
	return scanDailyMetric(row)
}

func (r *metricsRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DailyMetric, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, day, active_members, revenue_cents, created_at, updated_at
		FROM daily_metrics WHERE tenant_id = ?
		ORDER BY day DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyMetric
	for rows.Next() {
		m, err := scanDailyMetric(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanDailyMetric(row rowScanner) (domain.DailyMetric, error) {
	var (
		m         domain.DailyMetric
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.Day,
		&m.ActiveMembers,
		&m.RevenueCents,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.DailyMetric{}, mapNotFound(err)
	}

	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return m, nil
}
