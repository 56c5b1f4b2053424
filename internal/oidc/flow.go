package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// stateTTL is how long an issued state token stays valid.
const stateTTL = 10 * time.Minute

// CredentialIssuer issues the local session credential after a successful
// federated login.
type CredentialIssuer interface {
	Issue(user *models.User) (string, error)
}

// LoginRedirect is the result of a login initiation.
type LoginRedirect struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// CallbackResult is the outcome of a successful callback: the resolved local
// user and the issued session credential.
type CallbackResult struct {
	User  *models.User
	Token string
}

// Flow orchestrates the authorization code round trip for all providers.
type Flow struct {
	registry    *Registry
	cache       *Cache
	provisioner *Provisioner
	credentials CredentialIssuer
	states      *stateStore
}

// NewFlow creates a flow controller.
func NewFlow(registry *Registry, cache *Cache, provisioner *Provisioner, credentials CredentialIssuer) *Flow {
	return &Flow{
		registry:    registry,
		cache:       cache,
		provisioner: provisioner,
		credentials: credentials,
		states:      newStateStore(stateTTL),
	}
}

// Registry exposes the loaded provider registry.
func (f *Flow) Registry() *Registry {
	return f.registry
}

// InitiateLogin builds the provider's authorization URL and issues a state
// token for the round trip.
func (f *Flow) InitiateLogin(ctx context.Context, providerID string) (*LoginRedirect, error) {
	provider, err := f.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	conn, err := f.cache.Connect(ctx, provider)
	if err != nil {
		return nil, err
	}

	state := IssueState(providerID)
	f.states.add(state)

	return &LoginRedirect{
		AuthorizationURL: conn.OAuth2.AuthCodeURL(state),
		State:            state,
	}, nil
}

// EndSessionURL returns the provider's RP-initiated logout endpoint for use
// after a local logout. Empty when the provider does not advertise one.
func (f *Flow) EndSessionURL(ctx context.Context, providerID string) (string, error) {
	provider, err := f.registry.Get(providerID)
	if err != nil {
		return "", err
	}

	conn, err := f.cache.Connect(ctx, provider)
	if err != nil {
		return "", err
	}

	return conn.EndSessionURL(), nil
}

// HandleCallback completes a login attempt.
//
// The state is validated against the route's provider and consumed, the code
// is exchanged, the identity token verified, claims mapped and the user
// resolved. Any failure aborts the attempt; no partial session is issued.
func (f *Flow) HandleCallback(ctx context.Context, providerID, code, state string) (*CallbackResult, error) {
	stateProvider, _, err := ParseState(state)
	if err != nil {
		return nil, err
	}

	if stateProvider != providerID {
		return nil, fmt.Errorf("%w: state names %q, route names %q",
			ErrProviderMismatch, stateProvider, providerID)
	}

	if !f.states.consume(state) {
		return nil, fmt.Errorf("%w: state is unknown, expired or already used", ErrMalformedState)
	}

	provider, err := f.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	conn, err := f.cache.Connect(ctx, provider)
	if err != nil {
		return nil, err
	}

	cctx, cancel := conn.Context(ctx)
	defer cancel()

	oauth2Token, err := conn.OAuth2.Exchange(cctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %q: %v", ErrTokenExchangeFailed, providerID, err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: provider %q: no identity token in response",
			ErrIdentityVerificationFailed, providerID)
	}

	idToken, err := conn.Verifier.Verify(cctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %q: %v",
			ErrIdentityVerificationFailed, providerID, err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: provider %q: %v",
			ErrIdentityVerificationFailed, providerID, err)
	}

	identity, err := MapIdentity(provider, claims)
	if err != nil {
		return nil, err
	}

	user, err := f.provisioner.ResolveUser(provider, identity)
	if err != nil {
		return nil, err
	}

	credential, err := f.credentials.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session credential: %w", err)
	}

	log.Info().Str("provider", providerID).Str("username", user.Username).
		Msg("Federated login completed")

	return &CallbackResult{
		User:  user,
		Token: credential,
	}, nil
}
