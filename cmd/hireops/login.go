package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/hireops/internal/auth"
	"github.com/jonathan/hireops/internal/types"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the bearer token",
	Long: `Exchange a username and password for a bearer token and store it for later
commands. The password is read from stdin when --password is not given.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored bearer token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (read from stdin if omitted)")

	if err := loginCmd.MarkFlagRequired("username"); err != nil {
		panic(fmt.Sprintf("failed to mark username flag as required: %v", err))
	}

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	password := loginPassword
	if password == "" {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	token, err := a.client.Login(cmd.Context(), types.LoginRequest{Username: loginUsername, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := a.tokens.Save(token.AccessToken); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Logged in as %s\n", loginUsername)
	if exp, err := auth.ExpiresAt(token.AccessToken); err == nil && !exp.IsZero() {
		_, _ = fmt.Fprintf(out, "Token expires %s\n", exp.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.tokens.Clear(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	user, err := a.client.Me(cmd.Context())
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) || errors.Is(err, auth.ErrTokenExpired) {
			return err
		}
		return fmt.Errorf("failed to fetch current user: %w", err)
	}

	out := cmd.OutOrStdout()
	name := user.Username
	if user.FullName != "" {
		name = fmt.Sprintf("%s (%s)", user.FullName, user.Username)
	}
	_, _ = fmt.Fprintln(out, name)
	if user.Role != "" {
		_, _ = fmt.Fprintf(out, "Role: %s\n", user.Role)
	}
	return nil
}
