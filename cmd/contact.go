package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/metrics"
)

var contactCmd = &cobra.Command{
	Use:   "contact <lead-id>",
	Short: "Mark a lead as contacted",
	Long:  "Transitions a lead from NEW to CONTACTED and appends the audit event. Running it again on the same lead is a no-op.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, metrics.NopSink{})
		if err != nil {
			return err
		}
		defer env.Close()

		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantFlag(cfg.Tenant, tenant)
		actor, _ := cmd.Flags().GetString("actor")

		lead, changed, err := env.Orchestrator.MarkContacted(ctx, tenant, args[0], actor)
		if err != nil {
			return err
		}

		if !changed {
			fmt.Printf("lead %s already %s\n", lead.ID, lead.Status)
			return nil
		}
		fmt.Printf("lead %s contacted after %s\n", lead.ID, time.Since(lead.CreatedAt).Round(time.Second))
		return nil
	},
}

func init() {
	contactCmd.Flags().String("tenant", "", "tenant ID (default from config)")
	contactCmd.Flags().String("actor", "cli", "who performed the contact")
	rootCmd.AddCommand(contactCmd)
}
