package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// fetchTimeout bounds every outbound call to a provider.
const fetchTimeout = 15 * time.Second

// Connection is the cached, immutable per-provider handle: the discovered
// endpoints, the identity token verifier backed by the provider's key set
// and the OAuth2 client configuration.
type Connection struct {
	Provider *Provider
	OIDC     *gooidc.Provider
	Verifier *gooidc.IDTokenVerifier
	OAuth2   oauth2.Config

	client *http.Client
}

// EndSessionURL returns the provider's RP-initiated logout endpoint, or an
// empty string when the discovery document does not advertise one.
func (c *Connection) EndSessionURL() string {
	var claims struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}

	if err := c.OIDC.Claims(&claims); err != nil {
		return ""
	}

	return claims.EndSessionEndpoint
}

// Context returns a derived context carrying the provider's HTTP client so
// outbound calls use the provider's trust roots, plus a bounded timeout.
// The returned cancel func must be called.
func (c *Connection) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	ctx = gooidc.ClientContext(ctx, c.client)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	return ctx, cancel
}

// Cache lazily builds and caches one Connection per provider.
//
// Entries are immutable once stored, so concurrent first requests may race
// on the insert; LoadOrStore makes them converge on a single entry. Fetch
// failures are never cached, the next call retries.
type Cache struct {
	root string // configuration root for relative ca_cert_path

	connections sync.Map // provider id -> *Connection
	clients     sync.Map // provider id -> *http.Client
}

// NewCache creates a cache. Relative CA certificate paths are resolved
// against root.
func NewCache(root string) *Cache {
	return &Cache{root: root}
}

// Connect returns the cached Connection for the provider, performing
// discovery on first use. Discovery failures surface as
// ErrUpstreamUnavailable and are not cached.
func (c *Cache) Connect(ctx context.Context, provider *Provider) (*Connection, error) {
	if cached, ok := c.connections.Load(provider.ID); ok {
		return cached.(*Connection), nil
	}

	client, err := c.httpClient(provider)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	discovered, err := gooidc.NewProvider(gooidc.ClientContext(ctx, client), provider.DiscoveryURL)
	if err != nil {
		return nil, fmt.Errorf("%w: provider %q: discovery failed: %v",
			ErrUpstreamUnavailable, provider.ID, err)
	}

	conn := &Connection{
		Provider: provider,
		OIDC:     discovered,
		Verifier: discovered.Verifier(&gooidc.Config{ClientID: provider.ClientID}),
		OAuth2: oauth2.Config{
			ClientID:     provider.ClientID,
			ClientSecret: provider.ClientSecret,
			RedirectURL:  provider.RedirectURI,
			Endpoint:     discovered.Endpoint(),
			Scopes:       provider.Scopes,
		},
		client: client,
	}

	actual, _ := c.connections.LoadOrStore(provider.ID, conn)

	return actual.(*Connection), nil
}

// httpClient returns the cached per-provider HTTP client, building the
// custom trust root on first use. A configured but unreadable CA
// certificate fails with ErrConfig.
func (c *Cache) httpClient(provider *Provider) (*http.Client, error) {
	if cached, ok := c.clients.Load(provider.ID); ok {
		return cached.(*http.Client), nil
	}

	client := &http.Client{Timeout: fetchTimeout}

	if provider.CACertPath != "" {
		certPath := provider.CACertPath
		if !filepath.IsAbs(certPath) {
			certPath = filepath.Join(c.root, certPath)
		}

		pem, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("%w: provider %q: ca certificate %q: %v",
				ErrConfig, provider.ID, provider.CACertPath, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: provider %q: ca certificate %q contains no certificates",
				ErrConfig, provider.ID, provider.CACertPath)
		}

		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    pool,
				MinVersion: tls.VersionTLS12,
			},
		}
	}

	actual, _ := c.clients.LoadOrStore(provider.ID, client)

	return actual.(*http.Client), nil
}
