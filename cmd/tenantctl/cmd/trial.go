package cmd

import (
	"github.com/spf13/cobra"

	"github.com/prescrimed/tenant-access-service/internal/adapters/client"
)

var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Manage a company's trial",
}

var (
	flagStartDays  int
	flagExtendDays int
	flagPlan       string
)

var trialStartCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Start a trial of --days days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantAction(cmd, func(c *client.Client) (*client.Tenant, error) {
			return c.StartTrial(cmd.Context(), args[0], flagStartDays)
		})
	},
}

var trialExtendCmd = &cobra.Command{
	Use:   "extend ID",
	Short: "Push the trial end date out by --days days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantAction(cmd, func(c *client.Client) (*client.Tenant, error) {
			return c.ExtendTrial(cmd.Context(), args[0], flagExtendDays)
		})
	},
}

var trialEndCmd = &cobra.Command{
	Use:   "end ID",
	Short: "End the trial without converting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantAction(cmd, func(c *client.Client) (*client.Tenant, error) {
			return c.EndTrial(cmd.Context(), args[0])
		})
	},
}

var trialConvertCmd = &cobra.Command{
	Use:   "convert ID",
	Short: "Convert the trial to a paid --plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTenantAction(cmd, func(c *client.Client) (*client.Tenant, error) {
			return c.ConvertTrial(cmd.Context(), args[0], flagPlan)
		})
	},
}

func init() {
	trialStartCmd.Flags().IntVar(&flagStartDays, "days", 14, "Trial length in days")
	trialExtendCmd.Flags().IntVar(&flagExtendDays, "days", 7, "Days to add to the current end date")
	trialConvertCmd.Flags().StringVar(&flagPlan, "plan", "basic", "Plan: basic, pro, enterprise")

	trialCmd.AddCommand(trialStartCmd)
	trialCmd.AddCommand(trialExtendCmd)
	trialCmd.AddCommand(trialEndCmd)
	trialCmd.AddCommand(trialConvertCmd)
}
