package oidc

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ClaimMappings maps the application's identity fields to claim names in the
// provider's identity token.
type ClaimMappings struct {
	Username    string `yaml:"username"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name"`
}

// Provider is the declarative configuration of one identity provider.
type Provider struct {
	ID string `yaml:"-"`

	Enabled      bool   `yaml:"enabled"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Icon         string `yaml:"icon"`
	DisplayOrder int    `yaml:"display_order"`

	DiscoveryURL string `yaml:"discovery_url" validate:"required,url"`
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RedirectURI  string `yaml:"redirect_uri" validate:"required,url"`

	Scopes     []string `yaml:"scopes"`
	CACertPath string   `yaml:"ca_cert_path"`

	ClaimMappings  ClaimMappings `yaml:"claim_mappings"`
	AutoProvision  bool          `yaml:"auto_provision"`
	DefaultRole    string        `yaml:"default_role"`
	UsernamePrefix string        `yaml:"username_prefix"`
}

// GlobalSettings are registry-wide settings.
type GlobalSettings struct {
	AllowTraditionalLogin bool `yaml:"allow_traditional_login"`
}

type registryFile struct {
	Providers      map[string]*Provider `yaml:"providers"`
	GlobalSettings GlobalSettings       `yaml:"global_settings"`
}

// Registry holds the loaded provider configurations.
//
// Invalid providers stay declared so lookups can distinguish a misconfigured
// provider from an unknown one, but they never appear in the enabled set.
type Registry struct {
	providers map[string]*Provider
	invalid   map[string]error
	settings  GlobalSettings
}

// LoadRegistry reads and validates the provider registry file.
//
// A provider failing validation is excluded from the enabled set with a
// logged warning; it does not abort loading of the other providers.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	return ParseRegistry(data)
}

// ParseRegistry parses registry YAML content.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	validate := validator.New()

	reg := &Registry{
		providers: make(map[string]*Provider, len(file.Providers)),
		invalid:   make(map[string]error),
		settings:  file.GlobalSettings,
	}

	for id, provider := range file.Providers {
		provider.ID = id
		provider.applyDefaults()

		if err := validateProvider(validate, provider); err != nil {
			log.Warn().Str("provider", id).Err(err).
				Msg("Excluding misconfigured OIDC provider")

			reg.invalid[id] = err
		}

		reg.providers[id] = provider
	}

	return reg, nil
}

// applyDefaults fills optional fields with their documented defaults.
// Mandatory fields are never defaulted.
func (p *Provider) applyDefaults() {
	if p.Name == "" {
		p.Name = p.ID
	}

	if len(p.Scopes) == 0 {
		p.Scopes = []string{"openid", "profile", "email"}
	}

	if p.ClaimMappings.Username == "" {
		p.ClaimMappings.Username = "preferred_username"
	}

	if p.ClaimMappings.Email == "" {
		p.ClaimMappings.Email = "email"
	}

	if p.ClaimMappings.DisplayName == "" {
		p.ClaimMappings.DisplayName = "name"
	}

	if p.DefaultRole == "" {
		p.DefaultRole = "user"
	}

	// Providers without an explicit display_order sort last.
	if p.DisplayOrder == 0 {
		p.DisplayOrder = 999
	}
}

func validateProvider(validate *validator.Validate, p *Provider) error {
	// The separator is reserved for the state token encoding.
	if strings.Contains(p.ID, StateSeparator) {
		return fmt.Errorf("%w: provider %q: identifier must not contain %q",
			ErrConfig, p.ID, StateSeparator)
	}

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: provider %q: field %s is %s",
				ErrConfig, p.ID, verrs[0].Field(), verrs[0].Tag())
		}

		return fmt.Errorf("%w: provider %q: %v", ErrConfig, p.ID, err)
	}

	return nil
}

// Get returns the provider with the given identifier.
//
// It fails with ErrProviderNotFound for unknown identifiers, with
// ErrProviderDisabled for declared but inactive providers and with the
// recorded validation error for misconfigured ones.
func (r *Registry) Get(id string) (*Provider, error) {
	provider, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}

	if !provider.Enabled {
		return nil, ErrProviderDisabled
	}

	if err, bad := r.invalid[id]; bad {
		return nil, err
	}

	return provider, nil
}

// ListEnabled returns the enabled, valid providers ordered by display order
// then identifier.
func (r *Registry) ListEnabled() []*Provider {
	enabled := make([]*Provider, 0, len(r.providers))

	for id, provider := range r.providers {
		if _, bad := r.invalid[id]; bad {
			continue
		}

		if provider.Enabled {
			enabled = append(enabled, provider)
		}
	}

	sort.Slice(enabled, func(i, j int) bool {
		if enabled[i].DisplayOrder != enabled[j].DisplayOrder {
			return enabled[i].DisplayOrder < enabled[j].DisplayOrder
		}

		return enabled[i].ID < enabled[j].ID
	})

	return enabled
}

// AllowTraditionalLogin reports whether username/password login stays
// available alongside the federated providers.
func (r *Registry) AllowTraditionalLogin() bool {
	return r.settings.AllowTraditionalLogin
}
