// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/go-admin-template/go-admin-template/internal/config"
)

// Create builds the Data Source Name from the configuration.
// For the sqlite engine this is the database file path; for mysql it is a
// full tcp DSN including credentials and extras.
func Create(cfg *config.Config) string {
	if cfg.DB.GormEngine == "sqlite" {
		return cfg.DB.Path
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.Extras,
	)
}
