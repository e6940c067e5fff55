package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/parlourtech/whopdash/internal/dashboard/domain"
	"github.com/parlourtech/whopdash/internal/dashboard/store"
	"github.com/parlourtech/whopdash/pkg/cryptox"
	"github.com/parlourtech/whopdash/pkg/whopapi"
)

var ErrInstallationNotFound = errors.New("installation_not_found")

// InstallationService records which companies have the app installed and
// keeps each installation's platform access token sealed at rest.
type InstallationService struct {
	Store store.Store
	// SealKey encrypts access credentials before they hit the database.
	SealKey []byte
}

// Link records (or refreshes) a company's installation from a completed
// platform handshake. Repeating a handshake for the same company updates the
// existing row rather than creating a duplicate.
func (s *InstallationService) Link(ctx context.Context, ident *whopapi.Identity) (domain.Installation, error) {
	sealed, err := cryptox.SealSecret(ident.AccessToken, s.SealKey)
	if err != nil {
		return domain.Installation{}, fmt.Errorf("seal access credential: %w", err)
	}

	return s.Store.Installations().Upsert(ctx, ident.CompanyID, domain.InstallationFields{
		ExperienceID:     ident.ExperienceID,
		UserID:           ident.UserID,
		PlanTier:         ident.PlanTier,
		AccessCredential: sealed,
	})
}

// Get returns a tenant's installation.
func (s *InstallationService) Get(ctx context.Context, tenantID string) (domain.Installation, error) {
	inst, err := s.Store.Installations().GetByTenantID(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Installation{}, ErrInstallationNotFound
	}
	return inst, err
}

// CredentialFor unseals and returns the platform access token for a tenant.
func (s *InstallationService) CredentialFor(ctx context.Context, tenantID string) (string, error) {
	inst, err := s.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if inst.AccessCredential == "" {
		return "", ErrInstallationNotFound
	}

	token, err := cryptox.OpenSecret(inst.AccessCredential, s.SealKey)
	if err != nil {
		return "", fmt.Errorf("open access credential: %w", err)
	}
	return token, nil
}
