// Package oidc exposes the federated login HTTP endpoints: the public
// provider listing, per-provider login initiation and the authorization
// code callback.
package oidc
