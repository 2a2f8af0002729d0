package cmd

import (
	"fmt"

	"github.com/nashr-app/nashr/internal/engine"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant admin rights to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAdmin(cmd, args[0], true)
	},
}

var userDemoteCmd = &cobra.Command{
	Use:   "demote <email>",
	Short: "Revoke the admin rights of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAdmin(cmd, args[0], false)
	},
}

func setAdmin(cmd *cobra.Command, email string, isAdmin bool) error {
	return withEngine(func(e *engine.Engine) error {
		user, err := e.SetAdmin(cmd.Context(), email, isAdmin)
		if err != nil {
			return err
		}
		fmt.Printf("User %s admin: %t\n", user.Email, user.IsAdmin)
		return nil
	})
}

func init() {
	userCmd.AddCommand(userPromoteCmd, userDemoteCmd)
	rootCmd.AddCommand(userCmd)
}
