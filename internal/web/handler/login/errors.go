package login

import "errors"

// ErrNilDependency is returned when Init receives a nil dependency.
var ErrNilDependency = errors.New("app, cfg, db or issuer is nil")
