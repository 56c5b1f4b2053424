package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testConfigPath(t *testing.T) string {
	t.Helper()

	projectRoot, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	return filepath.Join(projectRoot, "etc") + string(filepath.Separator)
}

func TestReadConfig(t *testing.T) {
	cfg, err := ReadConfig(testConfigPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title == "" {
		t.Error("Config.Title should not be empty")
	}

	if cfg.Webserver.Port == 0 {
		t.Error("Webserver.Port should not be 0")
	}

	if cfg.Webserver.URL == "" {
		t.Error("Webserver.URL should not be empty")
	}

	if cfg.Root == "" {
		t.Error("Config.Root should be set to the config directory")
	}

	if cfg.Auth.JWT.Secret == "" {
		t.Error("Auth.JWT.Secret should not be empty")
	}

	if cfg.Auth.OIDC.ProvidersFile == "" {
		t.Error("Auth.OIDC.ProvidersFile should have a default")
	}

	if !cfg.Log.Console.Enabled {
		t.Error("Log.Console.Enabled should be set from the config file")
	}

	if cfg.Log.File.AccessLog != "access.log" {
		t.Errorf("Log.File.AccessLog = %q, want %q", cfg.Log.File.AccessLog, "access.log")
	}
}

func TestConfigValidation(t *testing.T) {
	base := func() Config {
		return Config{
			Webserver: Webserver{
				Port: 8000,
				URL:  "http://localhost:8000",
			},
			Auth: Auth{
				JWT: JWTAuth{Secret: "secret"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(_ *Config) {}, wantErr: false},
		{name: "missing port", mutate: func(c *Config) { c.Webserver.Port = 0 }, wantErr: true},
		{name: "missing URL", mutate: func(c *Config) { c.Webserver.URL = "" }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Auth.JWT.Secret = "" }, wantErr: true},
		{name: "bad engine", mutate: func(c *Config) { c.DB.GormEngine = "oracle" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Config{
		Webserver: Webserver{Port: 8000, URL: "http://localhost:8000"},
		Auth:      Auth{JWT: JWTAuth{Secret: "secret"}},
	}

	if err := validate(&cfg); err != nil {
		t.Fatalf("validate() error = %v", err)
	}

	if cfg.DB.GormEngine != "sqlite" {
		t.Errorf("GormEngine default = %q, want sqlite", cfg.DB.GormEngine)
	}

	if cfg.Auth.JWT.ExpiryTime != 10*time.Minute {
		t.Errorf("JWT.ExpiryTime default = %v, want 10m", cfg.Auth.JWT.ExpiryTime)
	}

	if cfg.Webserver.Session.ExpiryTime != 24*time.Hour {
		t.Errorf("Session.ExpiryTime default = %v, want 24h", cfg.Webserver.Session.ExpiryTime)
	}

	if cfg.Auth.InitialUsername != "admin" {
		t.Errorf("InitialUsername default = %q, want admin", cfg.Auth.InitialUsername)
	}
}

func TestReadConfigWithJSONOverride(t *testing.T) {
	jsonOverride := `{"Title":"Test Override","Webserver":{"Port":9090}}`
	t.Setenv("GO_ADMIN_TEMPLATE_CONFIG_JSON", jsonOverride)

	cfg, err := ReadConfig(testConfigPath(t))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Title != "Test Override" {
		t.Errorf("Title = %v, want %v", cfg.Title, "Test Override")
	}

	if cfg.Webserver.Port != 9090 {
		t.Errorf("Webserver.Port = %v, want %v", cfg.Webserver.Port, 9090)
	}
}

func TestDumpConfig(t *testing.T) {
	cfg := Config{
		Title:   "Test",
		DevMode: true,
		Webserver: Webserver{
			Port: 8000,
			URL:  "http://localhost:8000",
		},
	}

	tomlStr, err := DumpConfig(&cfg)
	if err != nil {
		t.Fatalf("DumpConfig() error = %v", err)
	}

	if !strings.Contains(tomlStr, "Test") {
		t.Error("DumpConfig() output should contain Title")
	}
}

func TestDumpConfigJSON(t *testing.T) {
	cfg := Config{
		Title: "Test",
		Webserver: Webserver{
			Port: 8000,
			URL:  "http://localhost:8000",
		},
	}

	jsonStr, err := DumpConfigJSON(&cfg)
	if err != nil {
		t.Fatalf("DumpConfigJSON() error = %v", err)
	}

	if !strings.Contains(jsonStr, "Test") {
		t.Error("DumpConfigJSON() output should contain Title")
	}
}
