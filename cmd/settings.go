package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-tenant settings",
}

// -- settings get --

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the tenant's resolved settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, metrics.NopSink{})
		if err != nil {
			return err
		}
		defer env.Close()

		tenant, _ := cmd.Flags().GetString("tenant")
		tenant = tenantFlag(cfg.Tenant, tenant)

		resolved, err := env.Resolver.GetResolved(ctx, tenant)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resolved)
	},
}

// -- settings set --

var settingsSetCmd = &cobra.Command{
	Use:   "set key=value [key=value...]",
	Short: "Update tenant settings",
	Long:  "Validates every value against the settings schema and applies the whole batch atomically; one invalid value rejects the batch.",
	Args:  cobra.MinimumNArgs(1),
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

		changes := make(map[string]any, len(args))
		for _, arg := range args {
			key, raw, ok := strings.Cut(arg, "=")
			if !ok {
				return eris.Errorf("expected key=value, got %q", arg)
			}
			changes[key] = coerceSettingValue(raw)
		}

		resolved, err := env.Resolver.Update(ctx, tenant, changes, actor)
		if err != nil {
			return err
		}

		fmt.Printf("updated %d key(s)\n", len(changes))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resolved)
	},
}

// -- settings history --

var settingsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the tenant's settings audit trail",
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

		events, err := st.SettingsEvents(ctx, tenant)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No settings changes recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tKEY\tOLD\tNEW\tACTOR")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Key, e.OldValue, e.NewValue, e.Actor)
		}
		return w.Flush()
	},
}

// coerceSettingValue turns CLI text into the type the schema expects:
// bools and integers first, everything else stays a string. The schema
// validator has the final say.
func coerceSettingValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && isBoolLiteral(raw) {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

// isBoolLiteral restricts bool coercion to the spellings users mean as
// booleans; ParseBool alone would also eat "1" and "0", which the integer
// keys need.
func isBoolLiteral(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "false":
		return true
	}
	return false
}

func init() {
	for _, c := range []*cobra.Command{settingsGetCmd, settingsSetCmd, settingsHistoryCmd} {
		c.Flags().String("tenant", "", "tenant ID (default from config)")
	}
	settingsSetCmd.Flags().String("actor", "cli", "who made the change")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd, settingsHistoryCmd)
	rootCmd.AddCommand(settingsCmd)

	// Keep the help text honest about what can be set.
	settingsSetCmd.Example = fmt.Sprintf("  leadflow settings set %s=90 %s=true",
		settings.KeySLAResponseMinutes, settings.KeyEnableAdvancedParser)
}
