package oidc

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// Provisioner looks up or creates local users for federated identities.
type Provisioner struct {
	db *gorm.DB
}

// NewProvisioner creates a provisioner backed by the user store.
func NewProvisioner(db *gorm.DB) *Provisioner {
	return &Provisioner{db: db}
}

// ResolveUser returns the local user for a mapped identity.
//
// Lookup is by (provider, username) with the provider's username prefix
// applied. A missing user is created only when the provider allows
// auto-provisioning; otherwise the call fails with ErrProvisioningDisabled
// and no record is written. Existing users keep their permissions, claims
// never escalate privileges.
func (p *Provisioner) ResolveUser(provider *Provider, identity *MappedIdentity) (*models.User, error) {
	username := provider.UsernamePrefix + identity.Username

	var user models.User

	err := p.db.Where("provider = ? AND username = ?", provider.ID, username).
		First(&user).Error

	if err == nil {
		if !user.Active {
			return nil, fmt.Errorf("user %q is disabled", username)
		}

		// Refresh identity-owned fields on every login
		user.Email = identity.Email
		user.RealName = identity.DisplayName
		user.UpdatedAt = time.Now()

		if err := p.db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}

		return &user, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if !provider.AutoProvision {
		return nil, fmt.Errorf("%w: provider %q", ErrProvisioningDisabled, provider.ID)
	}

	user = models.User{
		Active:      true,
		Username:    username,
		Email:       identity.Email,
		RealName:    identity.DisplayName,
		Permissions: models.PresetFlags(provider.DefaultRole),
		AuthSource:  models.AuthSourceOIDC,
		Provider:    provider.ID,
		ExternalID:  identity.Username,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}
