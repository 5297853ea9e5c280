package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prescrimed/tenant-access-service/internal/adapters/client"
)

// sessionStore keeps the credential pair in a user-only file.
type sessionStore struct {
	path string
}

func (s sessionStore) load() (client.Tokens, error) {
	var t client.Tokens
	if s.path == "" {
		return t, os.ErrNotExist
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return client.Tokens{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return t, nil
}

func (s sessionStore) save(t client.Tokens) error {
	if s.path == "" {
		return errors.New("no session file configured")
	}
	if t == (client.Tokens{}) {
		err := os.Remove(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

var flagEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := flagEmail
		reader := bufio.NewReader(cmd.InOrStdin())
		if email == "" {
			fmt.Fprint(cmd.OutOrStdout(), "Email: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			email = strings.TrimSpace(line)
		}
		password := os.Getenv("TENANTCTL_PASSWORD")
		if password == "" {
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			password = strings.TrimRight(line, "\r\n")
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Login(cmd.Context(), email, password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the stored refresh credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Logout(cmd.Context()); err != nil {
			return explain(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "Account email")
}
