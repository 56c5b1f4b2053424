// Package auth provides authentication for the application.
//
// Three authentication sources are supported:
//   - Local database authentication with Argon2id password hashing
//   - LDAP/Active Directory authentication
//   - OpenID Connect federation (see the oidc package)
//
// Successful authentication from any source produces a signed bearer token
// issued by TokenIssuer, plus a server-side session. Authorization decisions
// are delegated to the rbac package; the Guard type wires both into Fiber
// middleware:
//
//	guard := auth.NewGuard(rbacService, issuer)
//	app.Get("/api/v1/users",
//	    guard.RequirePermission(auth.ResourceUsers, auth.ActionRead),
//	    handler,
//	)
package auth
