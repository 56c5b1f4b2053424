// Package oidc implements multi-provider OpenID Connect authentication.
//
// Providers are declared in a YAML registry file and validated at load time.
// Each provider gets its own lazily built, immutable discovery and key cache
// with an isolated TLS trust root. The Flow type orchestrates the
// authorization code round trip: login initiation, state validation, code
// exchange, identity token verification, claim mapping and user provisioning.
package oidc
