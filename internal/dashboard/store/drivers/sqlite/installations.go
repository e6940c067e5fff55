package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/pkg/idx"
)

type installationsRepo struct {
	db *sql.DB
}

const installationColumns = `id, tenant_id, experience_id, user_id, plan_tier, access_credential, created_at, updated_at`

func (r *installationsRepo) GetByTenantID(ctx context.Context, tenantID string) (domain.Installation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+installationColumns+` FROM installations WHERE tenant_id = ?`, tenantID)
	return scanInstallation(row)
}

func (r *installationsRepo) GetByExperienceID(ctx context.Context, experienceID string) (domain.Installation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+installationColumns+` FROM installations WHERE experience_id = ?`, experienceID)
	return scanInstallation(row)
}

// Upsert is atomic per tenant: concurrent callbacks for the same company race
// safely on the tenant_id unique index. Empty incoming fields preserve what
// is already stored. An experience id maps to at most one tenant at a time,
// so an incoming binding is released from any previous owner first; both
// statements run in one transaction.
func (r *installationsRepo) Upsert(ctx context.Context, tenantID string, fields domain.InstallationFields) (domain.Installation, error) {
	now := time.Now().UTC().Unix()
	id := idx.New().String()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Installation{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if fields.ExperienceID != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE installations SET experience_id = NULL, updated_at = ?
			WHERE experience_id = ? AND tenant_id != ?`,
			now, fields.ExperienceID, tenantID,
		)
		if err != nil {
			return domain.Installation{}, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO installations (id, tenant_id, experience_id, user_id, plan_tier, access_credential, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			experience_id     = COALESCE(NULLIF(excluded.experience_id, ''), installations.experience_id),
			user_id           = COALESCE(NULLIF(excluded.user_id, ''), installations.user_id),
			plan_tier         = COALESCE(NULLIF(excluded.plan_tier, ''), installations.plan_tier),
			access_credential = COALESCE(NULLIF(excluded.access_credential, ''), installations.access_credential),
			updated_at        = excluded.updated_at`,
		id, tenantID,
		mapStringNull(fields.ExperienceID),
		fields.UserID, fields.PlanTier, fields.AccessCredential,
		now, now,
	)
	if err != nil {
		return domain.Installation{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Installation{}, err
	}

	return r.GetByTenantID(ctx, tenantID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstallation(row rowScanner) (domain.Installation, error) {
	var (
		inst         domain.Installation
		experienceID sql.NullString
		createdAt    int64
		updatedAt    int64
	)

	err := row.Scan(
		&inst.ID,
		&inst.TenantID,
		&experienceID,
		&inst.UserID,
		&inst.PlanTier,
		&inst.AccessCredential,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Installation{}, mapNotFound(err)
	}

	inst.ExperienceID = mapNullString(experienceID)
	inst.CreatedAt = time.Unix(createdAt, 0).UTC()
	inst.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return inst, nil
}
