package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/prescrimed/tenant-access-service/internal/adapters/client"
)

var tenantsCmd = &cobra.Command{
	Use:     "tenants",
	Aliases: []string{"empresas"},
	Short:   "List companies with their lifecycle state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		tenants, err := c.ListTenants(cmd.Context())
		if err != nil {
			return explain(err)
		}
		return printTenants(cmd.OutOrStdout(), tenants...)
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		t, err := c.GetTenant(cmd.Context(), args[0])
		if err != nil {
			return explain(err)
		}
		return printTenants(cmd.OutOrStdout(), *t)
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate ID",
	Short: "Block all access to a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantAction(cmd, func(c *client.Client) (*client.Tenant, error) {
			return c.Deactivate(cmd.Context(), args[0])
		})
	},
}

var reactivateCmd = &cobra.Command{
	Use:   "reactivate ID",
	Short: "Restore access to a deactivated company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantAction(cmd, func(c *client.Client) (*client.Tenant, error) {
			return c.Reactivate(cmd.Context(), args[0])
		})
	},
}

var flagConfirm string

var deleteCmd = &cobra.Command{
	Use:   "delete ID --confirm CODE",
	Short: "Permanently delete a deactivated company",
	Long: `Permanently deletes a company and all of its data.

The company must be deactivated first, and --confirm must repeat its display code.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagConfirm == "" {
			return fmt.Errorf("--confirm is required")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.DeleteTenant(cmd.Context(), args[0], flagConfirm); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Company %s deleted.\n", args[0])
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVar(&flagConfirm, "confirm", "", "Display code of the company being deleted")
}

func runTenantAction(cmd *cobra.Command, action func(c *client.Client) (*client.Tenant, error)) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	t, err := action(c)
	if err != nil {
		return explain(err)
	}
	return printTenants(cmd.OutOrStdout(), *t)
}

func printTenants(out io.Writer, tenants ...client.Tenant) error {
	if out == nil {
		out = os.Stdout
	}
	if flagOutput == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tenants)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tSTATE\tPLAN\tTRIAL ENDS\tBLOCKED")
	for _, t := range tenants {
		ends := "-"
		if t.Trial.EndsAt != nil {
			ends = t.Trial.EndsAt.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			t.ID, t.DisplayCode, t.Name, t.State, t.Plan, ends, t.Blocked)
	}
	return w.Flush()
}
