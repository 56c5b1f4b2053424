package auth

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"gorm.io/gorm"

	"github.com/go-admin-template/go-admin-template/internal/config"
	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// ErrLDAPDisabled is returned when LDAP authentication is disabled via configuration.
var ErrLDAPDisabled = errors.New("ldap authentication is disabled")

// LDAPProvider handles LDAP/Active Directory authentication.
type LDAPProvider struct {
	config *config.LDAPAuth
	db     *gorm.DB
}

// NewLDAPProvider creates a new LDAP provider.
func NewLDAPProvider(cfg *config.LDAPAuth, db *gorm.DB) (*LDAPProvider, error) {
	if !cfg.Enabled {
		return nil, ErrLDAPDisabled
	}

	// Attribute defaults
	if cfg.UsernameAttr == "" {
		cfg.UsernameAttr = "uid"
	}

	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}

	if cfg.RealNameAttr == "" {
		cfg.RealNameAttr = "cn"
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10
	}

	return &LDAPProvider{
		config: cfg,
		db:     db,
	}, nil
}

// Connect establishes a connection to the LDAP server.
func (p *LDAPProvider) Connect() (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port))

	var ldapURL string
	if p.config.UseSSL {
		ldapURL = "ldaps://" + hostPort
	} else {
		ldapURL = "ldap://" + hostPort
	}

	var tlsConfig *tls.Config
	if p.config.UseSSL || p.config.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: p.config.SkipVerify, //nolint:gosec // skipping verifying tls is ok
			ServerName:         p.config.Host,
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}

	// Upgrade to TLS if requested (for non-SSL connections)
	if !p.config.UseSSL && p.config.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close LDAP connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	if p.config.Timeout > 0 {
		conn.SetTimeout(time.Duration(p.config.Timeout) * time.Second)
	}

	return conn, nil
}

// Authenticate authenticates a user against LDAP and upserts the local record.
func (p *LDAPProvider) Authenticate(username, password string) (*models.User, error) {
	conn, err := p.Connect()
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if errBindService := p.bindServiceForSearch(conn); errBindService != nil {
		return nil, errBindService
	}

	userEntry, errSearch := p.searchUserEntry(conn, username)
	if errSearch != nil {
		return nil, errSearch
	}

	userDN := userEntry.DN

	if errAuthAsUser := p.authenticateAsUser(conn, userDN, password); errAuthAsUser != nil {
		return nil, errAuthAsUser
	}

	email := userEntry.GetAttributeValue(p.config.EmailAttr)
	realName := userEntry.GetAttributeValue(p.config.RealNameAttr)

	user, errUpsert := p.upsertLDAPUser(username, userDN, email, realName)
	if errUpsert != nil {
		return nil, errUpsert
	}

	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	return user, nil
}

// bindServiceForSearch binds with the configured service account (if provided)
// to perform user search. Returns a wrapped error on failure.
func (p *LDAPProvider) bindServiceForSearch(conn *ldap.Conn) error {
	if p.config.BindDN == "" {
		return nil
	}

	if err := conn.Bind(p.config.BindDN, p.config.BindPassword); err != nil {
		return fmt.Errorf("failed to bind with service account: %w", err)
	}

	return nil
}

// searchUserEntry searches LDAP for the given username and returns a single entry.
func (p *LDAPProvider) searchUserEntry(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	userFilter := strings.ReplaceAll(p.config.UserFilter, "{username}", ldap.EscapeFilter(username))
	searchRequest := ldap.NewSearchRequest(
		p.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // Size limit
		p.config.Timeout,
		false,
		userFilter,
		[]string{
			p.config.UsernameAttr,
			p.config.EmailAttr,
			p.config.RealNameAttr,
			"dn",
		},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search for user: %w", err)
	}

	switch len(searchResult.Entries) {
	case 0:
		return nil, ErrUserNotFound
	case 1:
		return searchResult.Entries[0], nil
	default:
		return nil, ErrMultipleUsersFound
	}
}

// authenticateAsUser binds to LDAP using the user's DN and password.
func (p *LDAPProvider) authenticateAsUser(conn *ldap.Conn, userDN, password string) error {
	if err := conn.Bind(userDN, password); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	return nil
}

// upsertLDAPUser creates or updates a user record based on LDAP attributes.
func (p *LDAPProvider) upsertLDAPUser(username, userDN, email, realName string) (*models.User, error) {
	var user models.User

	err := p.db.Where("external_id = ? AND auth_source = ?", userDN, models.AuthSourceLDAP).
		First(&user).Error

	notFound := errors.Is(err, gorm.ErrRecordNotFound)

	if notFound {
		user = models.User{
			Active:      true,
			Username:    username,
			Email:       email,
			RealName:    realName,
			Permissions: models.PermissionsViewer,
			AuthSource:  models.AuthSourceLDAP,
			ExternalID:  userDN,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		if err = p.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		return &user, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	// Refresh directory-owned fields on every login
	user.Email = email
	user.RealName = realName
	user.UpdatedAt = time.Now()

	if err = p.db.Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &user, nil
}

// SearchUsers searches for users in LDAP using a custom filter.
// This is useful for administrative purposes such as user lookup or synchronization.
// The filter should be a valid LDAP search filter, and limit restricts the number of results.
func (p *LDAPProvider) SearchUsers(filter string, limit int) ([]*ldap.Entry, error) {
	conn, err := p.Connect()
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if p.config.BindDN != "" {
		if err = conn.Bind(p.config.BindDN, p.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		p.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		limit,
		p.config.Timeout,
		false,
		filter,
		[]string{
			p.config.UsernameAttr,
			p.config.EmailAttr,
			p.config.RealNameAttr,
			"dn",
		},
		nil,
	)

	searchResult, errSearch := conn.Search(searchRequest)
	if errSearch != nil {
		return nil, fmt.Errorf("failed to search: %w", errSearch)
	}

	return searchResult.Entries, nil
}

// TestConnection tests the LDAP server connection and bind credentials.
// It establishes a connection and attempts to bind with the configured service account.
// Returns nil if the connection and bind are successful, otherwise returns an error.
func (p *LDAPProvider) TestConnection() error {
	conn, err := p.Connect()
	if err != nil {
		return err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Err(errClose).Msg("failed to close LDAP connection")
		}
	}()

	if p.config.BindDN != "" {
		if err := conn.Bind(p.config.BindDN, p.config.BindPassword); err != nil {
			return fmt.Errorf("bind failed: %w", err)
		}
	}

	return nil
}
