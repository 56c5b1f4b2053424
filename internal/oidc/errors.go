package oidc

import "errors"

var (
	// ErrConfig is returned when a provider's configuration is invalid,
	// such as a missing mandatory field or an unreadable CA certificate.
	ErrConfig = errors.New("invalid provider configuration")

	// ErrProviderNotFound is returned when the requested provider is not declared.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderDisabled is returned when the requested provider is declared but not enabled.
	ErrProviderDisabled = errors.New("provider is disabled")

	// ErrMalformedState is returned when a state token cannot be decoded or
	// is not known to the server (expired, never issued or already used).
	ErrMalformedState = errors.New("malformed state token")

	// ErrProviderMismatch is returned when the provider embedded in the state
	// token differs from the provider of the callback route.
	ErrProviderMismatch = errors.New("state token does not match provider")

	// ErrUpstreamUnavailable is returned when the provider's discovery document
	// or key set cannot be fetched.
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")

	// ErrTokenExchangeFailed is returned when the authorization code cannot be
	// exchanged at the provider's token endpoint.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrIdentityVerificationFailed is returned when the identity token is
	// missing or fails signature, issuer, audience or expiry checks.
	ErrIdentityVerificationFailed = errors.New("identity token verification failed")

	// ErrClaimMappingFailed is returned when the configured username claim is
	// absent from the verified identity token.
	ErrClaimMappingFailed = errors.New("claim mapping failed")

	// ErrProvisioningDisabled is returned when no local user exists and the
	// provider does not allow auto-provisioning.
	ErrProvisioningDisabled = errors.New("user provisioning is disabled for this provider")
)
