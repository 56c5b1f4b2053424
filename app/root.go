// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "go-admin-template",
	Short: "go-admin-template is a web application template with authentication and RBAC",
	Long: `go-admin-template is a web application template providing local, LDAP and
multi-provider OIDC authentication, user profile management and role-based
access control through a JSON API.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
