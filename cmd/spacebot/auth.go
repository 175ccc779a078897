package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/antariksh/spacebot/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and scope chat history to your email",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")

		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		mgr, err := session.NewManager(cfg.Storage.DataDir, nil, log)
		if err != nil {
			return err
		}

		id, err := mgr.Login(name, email, phone)
		if err != nil {
			return err
		}

		printSuccess("Logged in as %s", id.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear the stored identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		mgr, err := session.NewManager(cfg.Storage.DataDir, nil, log)
		if err != nil {
			return err
		}

		if _, ok := mgr.Current(); !ok {
			printWarning("not logged in")
			return nil
		}

		if err := mgr.Logout(); err != nil {
			return err
		}

		printSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		mgr, err := session.NewManager(cfg.Storage.DataDir, nil, log)
		if err != nil {
			return err
		}

		id, ok := mgr.Current()
		if !ok {
			return fmt.Errorf("not logged in")
		}

		printStatus("Name", "%s", id.Name)
		printStatus("Email", "%s", id.Email)
		if id.PhoneNumber != "" {
			printStatus("Phone", "%s", id.PhoneNumber)
		}
		printStatus("Since", "%s", id.LoggedInAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	loginCmd.Flags().String("name", "", "display name")
	loginCmd.Flags().String("email", "", "email address (required; scopes chat history)")
	loginCmd.Flags().String("phone", "", "phone number")
	loginCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
