package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"watchlog/internal/auth"
	"watchlog/internal/client"
	"watchlog/internal/logging"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to or out of the API server",
	}

	var email, password, username string

	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and switch to the account's collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client("").Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			return a.storeToken(cmd, resp, "logged in")
		},
	}
	login.Flags().StringVar(&email, "email", "", "email address")
	login.Flags().StringVar(&password, "password", "", "password")
	_ = login.MarkFlagRequired("email")
	_ = login.MarkFlagRequired("password")

	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client("").Register(cmd.Context(), username, email, password)
			if err != nil {
				return fmt.Errorf("register failed: %w", err)
			}
			return a.storeToken(cmd, resp, "registered and logged in")
		},
	}
	register.Flags().StringVar(&username, "username", "", "username")
	register.Flags().StringVar(&email, "email", "", "email address")
	register.Flags().StringVar(&password, "password", "", "password")
	_ = register.MarkFlagRequired("username")
	_ = register.MarkFlagRequired("email")
	_ = register.MarkFlagRequired("password")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and switch back to the device collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := client.LoadToken(a.cfg.Client.TokenPath)
			if err != nil {
				return err
			}
			if token != "" {
				// Revoke server-side too; the local token goes either way.
				if err := a.client(token).Logout(cmd.Context()); err != nil {
					logging.Warn().Err(err).Msg("server logout failed")
				}
			}
			if err := client.RemoveToken(a.cfg.Client.TokenPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ logged out")
			return nil
		},
	}

	cmd.AddCommand(login, register, logout)
	return cmd
}

func (a *app) storeToken(cmd *cobra.Command, resp *auth.TokenResponse, msg string) error {
	if err := client.SaveToken(a.cfg.Client.TokenPath, resp.Token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s as %s\n", msg, resp.User.Username)
	return nil
}
