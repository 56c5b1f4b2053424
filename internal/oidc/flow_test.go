package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/go-admin-template/go-admin-template/internal/db/models"
)

// mockIdentityProvider serves OIDC discovery, JWKS and token endpoints,
// signing identity tokens with a throwaway RSA key.
type mockIdentityProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	// claims returned in the next identity token
	claims map[string]interface{}
	// audience of the next identity token
	audience string
	// when true the token endpoint returns a server error
	failExchange bool
}

func newMockIdentityProvider(t *testing.T) *mockIdentityProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &mockIdentityProvider{
		key:      key,
		audience: "test-client",
		claims: map[string]interface{}{
			"preferred_username": "jdoe",
			"email":              "jdoe@example.com",
			"name":               "John Doe",
		},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 idp.server.URL,
			"authorization_endpoint": idp.server.URL + "/authorize",
			"token_endpoint":         idp.server.URL + "/token",
			"jwks_uri":               idp.server.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
			"subject_types_supported":               []string{"public"},
			"response_types_supported":              []string{"code"},
		})
	})

	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{{
				Key:       &key.PublicKey,
				KeyID:     "test-key",
				Algorithm: string(jose.RS256),
				Use:       "sig",
			}},
		})
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
		if idp.failExchange {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		signer, err := jose.NewSigner(
			jose.SigningKey{Algorithm: jose.RS256, Key: key},
			(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key"),
		)
		require.NoError(t, err)

		now := time.Now()
		registered := josejwt.Claims{
			Issuer:   idp.server.URL,
			Subject:  "user-1",
			Audience: josejwt.Audience{idp.audience},
			IssuedAt: josejwt.NewNumericDate(now),
			Expiry:   josejwt.NewNumericDate(now.Add(time.Hour)),
		}

		rawJWT, err := josejwt.Signed(signer).Claims(registered).Claims(idp.claims).Serialize()
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "mock-access-token",
			"token_type":   "Bearer",
			"id_token":     rawJWT,
			"expires_in":   3600,
		})
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)

	return idp
}

type staticIssuer struct{}

func (staticIssuer) Issue(*models.User) (string, error) {
	return "session-token", nil
}

func testFlow(t *testing.T, idp *mockIdentityProvider) *Flow {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	registry, err := ParseRegistry([]byte(`
providers:
  corp:
    enabled: true
    discovery_url: "` + idp.server.URL + `"
    client_id: "test-client"
    client_secret: "test-secret"
    redirect_uri: "http://localhost:8000/auth/oidc/corp/callback"
    auto_provision: true
    default_role: user
  other:
    enabled: true
    discovery_url: "` + idp.server.URL + `"
    client_id: "test-client"
    client_secret: "test-secret"
    redirect_uri: "http://localhost:8000/auth/oidc/other/callback"
`))
	require.NoError(t, err)

	return NewFlow(registry, NewCache(t.TempDir()), NewProvisioner(db), staticIssuer{})
}

func TestInitiateLogin(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "corp")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(redirect.State, "corp:"))
	assert.Contains(t, redirect.AuthorizationURL, idp.server.URL+"/authorize")
	assert.Contains(t, redirect.AuthorizationURL, "client_id=test-client")
	assert.Contains(t, redirect.AuthorizationURL, "response_type=code")
	assert.Contains(t, redirect.AuthorizationURL, "state=corp%3A")
}

func TestInitiateLoginUnknownProvider(t *testing.T) {
	flow := testFlow(t, newMockIdentityProvider(t))

	_, err := flow.InitiateLogin(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestInitiateLoginUpstreamDown(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	idp.server.Close()

	_, err := flow.InitiateLogin(context.Background(), "corp")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestHandleCallback(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "corp")
	require.NoError(t, err)

	result, err := flow.HandleCallback(context.Background(), "corp", "mock-code", redirect.State)
	require.NoError(t, err)

	assert.Equal(t, "session-token", result.Token)
	assert.Equal(t, "jdoe", result.User.Username)
	assert.Equal(t, "corp", result.User.Provider)
	assert.Equal(t, models.AuthSourceOIDC, result.User.AuthSource)
}

func TestHandleCallbackProviderMismatch(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "other")
	require.NoError(t, err)

	_, err = flow.HandleCallback(context.Background(), "corp", "mock-code", redirect.State)
	assert.ErrorIs(t, err, ErrProviderMismatch)
}

func TestHandleCallbackStateSingleUse(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "corp")
	require.NoError(t, err)

	_, err = flow.HandleCallback(context.Background(), "corp", "mock-code", redirect.State)
	require.NoError(t, err)

	_, err = flow.HandleCallback(context.Background(), "corp", "mock-code", redirect.State)
	assert.ErrorIs(t, err, ErrMalformedState)
}

func TestHandleCallbackMalformedState(t *testing.T) {
	flow := testFlow(t, newMockIdentityProvider(t))

	_, err := flow.HandleCallback(context.Background(), "corp", "mock-code", "garbage")
	assert.ErrorIs(t, err, ErrMalformedState)
}

func TestHandleCallbackForgedState(t *testing.T) {
	flow := testFlow(t, newMockIdentityProvider(t))

	// well formed but never issued by the server
	_, err := flow.HandleCallback(context.Background(), "corp", "mock-code", "corp:forgedrandompart123456")
	assert.ErrorIs(t, err, ErrMalformedState)
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "corp")
	require.NoError(t, err)

	idp.failExchange = true

	_, err = flow.HandleCallback(context.Background(), "corp", "bad-code", redirect.State)
	assert.ErrorIs(t, err, ErrTokenExchangeFailed)
}

func TestHandleCallbackWrongAudience(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "corp")
	require.NoError(t, err)

	idp.audience = "someone-else"

	_, err = flow.HandleCallback(context.Background(), "corp", "mock-code", redirect.State)
	assert.ErrorIs(t, err, ErrIdentityVerificationFailed)
}

func TestHandleCallbackMissingUsernameClaim(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "corp")
	require.NoError(t, err)

	idp.claims = map[string]interface{}{"email": "jdoe@example.com"}

	_, err = flow.HandleCallback(context.Background(), "corp", "mock-code", redirect.State)
	assert.ErrorIs(t, err, ErrClaimMappingFailed)
}

func TestHandleCallbackProvisioningDisabled(t *testing.T) {
	idp := newMockIdentityProvider(t)
	flow := testFlow(t, idp)

	redirect, err := flow.InitiateLogin(context.Background(), "other")
	require.NoError(t, err)

	_, err = flow.HandleCallback(context.Background(), "other", "mock-code", redirect.State)
	assert.ErrorIs(t, err, ErrProvisioningDisabled)
}
