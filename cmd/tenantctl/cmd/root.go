package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/prescrimed/tenant-access-service/internal/adapters/client"
)

var (
	version string

	flagAPIURL      string
	flagSessionFile string
	flagOutput      string
)

var rootCmd = &cobra.Command{
	Use:   "tenantctl",
	Short: "Company lifecycle administration CLI",
	Long: `tenantctl manages companies (empresas) through the tenant access API.

Log in with a superadmin account first:
  tenantctl login --email root@example.com`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(v string) {
	version = v
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "API base URL (env: TENANTCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagSessionFile, "session-file", "", "Where credentials are kept (env: TENANTCTL_SESSION_FILE)")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(tenantsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(trialCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(reactivateCmd)
	rootCmd.AddCommand(deleteCmd)
}

func initConfig() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("TENANTCTL_API_URL")
	}
	if flagAPIURL == "" {
		flagAPIURL = "http://localhost:8080"
	}
	if flagSessionFile == "" {
		flagSessionFile = os.Getenv("TENANTCTL_SESSION_FILE")
	}
	if flagSessionFile == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			flagSessionFile = filepath.Join(home, ".tenantctl", "session.json")
		}
	}
}

// newClient builds an API client seeded with the saved credentials. Refreshed
// credentials are written back so the next invocation reuses them.
func newClient() (*client.Client, error) {
	store := sessionStore{path: flagSessionFile}
	tokens, err := store.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return client.New(flagAPIURL,
		client.WithTokens(tokens),
		client.WithTokenSink(func(t client.Tokens) {
			if err := store.save(t); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not save session: %v\n", err)
			}
		}),
	), nil
}

// explain turns session failures into an actionable message.
func explain(err error) error {
	switch {
	case errors.Is(err, client.ErrSessionEnded):
		return fmt.Errorf("session ended, run 'tenantctl login' again: %w", err)
	case errors.Is(err, client.ErrForbidden):
		return fmt.Errorf("a superadmin account is required: %w", err)
	}
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tenantctl version %s\n", version)
	},
}
