package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadflow/internal/model"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate price and hours for a cleaning job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sqm, _ := cmd.Flags().GetInt("sqm")
		service, _ := cmd.Flags().GetString("service")

		if sqm <= 0 {
			return eris.New("--sqm must be positive")
		}

		est := model.EstimatePrice(model.LeadPayload{AreaSqm: sqm, ServiceType: service})
		fmt.Printf("%s, %d m²: %s\n", service, sqm, est.Display)
		return nil
	},
}

func init() {
	estimateCmd.Flags().Int("sqm", 0, "area in square meters")
	estimateCmd.Flags().String("service", model.ServiceOneOff, "service type (Fast Rengøring, Flytterengøring, Hovedrengøring, Engangsopgave)")
	rootCmd.AddCommand(estimateCmd)
}
