package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-care/internal/api"
	"github.com/miradorstack/mirador-care/internal/engine"
	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
	"github.com/miradorstack/mirador-care/internal/services"
)

func newVitalsCommand() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "vitals [samples.json|-]",
		Short: "Summarise raw samples into per-channel statistics",
		Long: "Reads a JSON object mapping channel names to arrays of {value, timestamp}\n" +
			"and prints the per-channel statistics.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var series map[string][]carev1.Sample
			if err := decodeInput(cmd.InOrStdin(), inputPath(args), &series); err != nil {
				return err
			}

			service := services.NewCareService(nil, nil, nil, nil, 0)
			resp, err := service.ComputeVitals(cmd.Context(), &carev1.ComputeVitalsRequest{Series: series})
			if err != nil {
				return err
			}
			if !summary {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			stats, err := api.FromWireStatistics(resp.Statistics)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), engine.FormatVitals(stats))
			return err
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "Print the human-readable vitals summary instead of JSON")
	return cmd
}
