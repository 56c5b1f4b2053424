// Package rbac implements the role-based access control system.
//
// Authorization is resolved in three steps: per-user permission overrides
// have the highest priority, then role grants, then default deny.
package rbac
