package config

import (
	"time"

	"github.com/go-admin-template/go-admin-template/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode bool   // enable dev mode for development
	Root    string // configuration directory, set by ReadConfig
	DB      DB
	Log     logger.Log
	Title   string
	Auth    Auth
	Webserver Webserver
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

// JWTAuth holds settings for the locally issued bearer tokens.
type JWTAuth struct {
	Secret     string        // signing secret for HS256 tokens
	ExpiryTime time.Duration // access token lifetime
}

// LocalDBAuth holds settings for username/password authentication.
type LocalDBAuth struct {
	Enabled bool
}

// LDAPAuth holds settings for directory authentication.
type LDAPAuth struct {
	Enabled      bool
	Host         string
	Port         int
	UseSSL       bool
	UseTLS       bool
	SkipVerify   bool
	BindDN       string
	BindPassword string
	BaseDN       string
	UserFilter   string
	UsernameAttr string
	EmailAttr    string
	RealNameAttr string
	Timeout      int
}

// OIDCAuth holds settings for OpenID Connect federation.
type OIDCAuth struct {
	Enabled       bool
	ProvidersFile string // provider registry file, resolved against Root when relative
}

// Auth groups the authentication settings.
type Auth struct {
	InitialUsername string // username for the seeded admin account
	InitialPassword string // password for the seeded admin account
	JWT             JWTAuth
	LocalDB         LocalDBAuth
	LDAP            LDAPAuth
	OIDC            OIDCAuth
}
