package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
	Long:  "Commands for listing leads, viewing one lead, and printing its event history.",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads for a tenant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantFlag(cfg.Tenant, tenant)
		status, _ := cmd.Flags().GetString("status")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		sinceHours, _ := cmd.Flags().GetInt("since-hours")

		filter := store.LeadFilter{
			Status: model.LeadStatus(status),
			Source: source,
			Limit:  limit,
		}
		if sinceHours > 0 {
			filter.Since = time.Now().Add(-time.Duration(sinceHours) * time.Hour)
		}

		leads, err := st.ListLeads(ctx, tenant, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tSOURCE\tNAME\tCONTACT\tCREATED")
		for _, l := range leads {
			contact := l.Payload.Email
			if contact == "" {
				contact = l.Payload.Phone
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.Status, l.Source, l.Payload.Name, contact,
				l.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show one lead as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantFlag(cfg.Tenant, tenant)

		lead, err := st.GetLead(ctx, tenant, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

// -- leads events --

var leadsEventsCmd = &cobra.Command{
	Use:   "events <lead-id>",
	Short: "Print a lead's status event trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantFlag(cfg.Tenant, tenant)

		events, err := st.LeadEvents(ctx, tenant, args[0])
		if err != nil {
			return eris.Wrap(err, "leads events")
		}
		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No events found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tFROM\tTO\tACTOR")
		for _, e := range events {
			from := string(e.FromStatus)
			if from == "" {
				from = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), from, e.ToStatus, e.Actor)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsShowCmd, leadsEventsCmd} {
		c.Flags().String("tenant", "", "tenant ID (default from config)")
	}
	leadsListCmd.Flags().String("status", "", "filter by status (NEW, CONTACTED)")
	leadsListCmd.Flags().String("source", "", "filter by source")
	leadsListCmd.Flags().Int("limit", 50, "maximum leads to list")
	leadsListCmd.Flags().Int("since-hours", 0, "only leads created in the last N hours")

	leadsCmd.AddCommand(leadsListCmd, leadsShowCmd, leadsEventsCmd)
	rootCmd.AddCommand(leadsCmd)
}
