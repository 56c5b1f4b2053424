package oidc

import (
	"fmt"
)

// MappedIdentity is the local identity derived from a provider's verified
// identity token claims.
type MappedIdentity struct {
	Provider    string
	Username    string
	Email       string
	DisplayName string
}

// MapIdentity applies a provider's claim mapping to a raw claim set.
//
// The username claim is mandatory; its absence fails with
// ErrClaimMappingFailed naming the missing claim. Email is optional and the
// display name falls back to the username.
func MapIdentity(provider *Provider, claims map[string]interface{}) (*MappedIdentity, error) {
	username := stringClaim(claims, provider.ClaimMappings.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: provider %q: claim %q is absent",
			ErrClaimMappingFailed, provider.ID, provider.ClaimMappings.Username)
	}

	identity := &MappedIdentity{
		Provider:    provider.ID,
		Username:    username,
		Email:       stringClaim(claims, provider.ClaimMappings.Email),
		DisplayName: stringClaim(claims, provider.ClaimMappings.DisplayName),
	}

	if identity.DisplayName == "" {
		identity.DisplayName = username
	}

	return identity, nil
}

func stringClaim(claims map[string]interface{}, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}

	return ""
}
