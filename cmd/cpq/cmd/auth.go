package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/core/api"
)

// passwordEnv lets scripts log in without the password on the command line.
const passwordEnv = "CPQ_PASSWORD"

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and persist the session token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear the persisted session",
	RunE:  runLogout,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the session token with a fresh one",
	RunE:  runRefresh,
}

var profileCmd = &cobra.Command{
	Use:     "profile",
	Aliases: []string{"whoami"},
	Short:   "Show the logged-in user",
	RunE:    runProfile,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, refreshCmd, profileCmd)
	loginCmd.Flags().String("email", "", "account email")
	loginCmd.Flags().String("password", "", "account password (or "+passwordEnv+")")
	_ = loginCmd.MarkFlagRequired("email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return fmt.Errorf("--password or %s required", passwordEnv)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.client.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := a.session.Save(ctx, sess); err != nil {
		return err
	}

	name := email
	if sess.User != nil && sess.User.Name != "" {
		name = sess.User.Name
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// The local session goes regardless of what the server says.
	if err := a.client.Logout(ctx); err != nil {
		a.log.Warn("server logout failed", "error", err)
	}
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.client.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if err := a.session.Save(ctx, sess); err != nil {
		return err
	}
	if sess.ExpiresAt.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Session refreshed, expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), user)
}
