package store

import (
	"context"
	"errors"
	"time"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Installations() Installations
	HandshakeNonces() HandshakeNonces
	Metrics() Metrics

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Installations interface {
	// GetByTenantID returns the installation for a tenant.
	GetByTenantID(ctx context.Context, tenantID string) (domain.Installation, error)

	// GetByExperienceID looks an installation up by its experience binding.
	GetByExperienceID(ctx context.Context, experienceID string) (domain.Installation, error)

	// Upsert creates the installation for tenantID or updates it in place.
	// Empty strings in fields leave the stored values untouched. The row ID
	// is assigned on first insert (ULID) and returned either way.
	Upsert(ctx context.Context, tenantID string, fields domain.InstallationFields) (domain.Installation, error)
}

type HandshakeNonces interface {
	// Consume marks a handshake nonce as used. Returns ErrAlreadyExists if
	// it was consumed before, which callers treat as a replay.
	Consume(ctx context.Context, nonce string, issuedAt time.Time) error

	// DeleteOlderThan prunes consumed nonces issued before cutoff and
	// reports how many rows were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Metrics interface {
	// UpsertDaily writes a tenant's snapshot for one day, replacing any
	// earlier snapshot for the same day.
	UpsertDaily(ctx context.Context, m domain.DailyMetric) (domain.DailyMetric, error)

	// ListByTenant returns up to limit daily metrics, newest day first.
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DailyMetric, error)
}
