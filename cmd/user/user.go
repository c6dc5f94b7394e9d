// Package user implements account management subcommands.
package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obralens/obralens/internal/auth"
	"github.com/obralens/obralens/internal/conf"
	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/model"
)

// Command returns the user subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(addCommand(settings))
	return cmd
}

// addCommand pre-registers an account. The user completes registration with
// a password and security question through the API.
func addCommand(settings *conf.Settings) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Pre-register a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings.Storage.DataFile)
			svc := auth.NewService(store, settings.Security)

			user, err := svc.PreRegister(args[0], model.Role(role))
			if err != nil {
				return err
			}
			fmt.Printf("user %s created with role %s (id %s)\n", user.Email, user.Role, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "Account role (admin or user)")
	return cmd
}
