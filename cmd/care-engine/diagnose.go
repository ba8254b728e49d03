package main

import (
	"github.com/spf13/cobra"

	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
	"github.com/miradorstack/mirador-care/internal/services"
)

func newDiagnoseCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose [statistics.json|-]",
		Short: "Classify per-channel vitals statistics into condition codes",
		Long: "Reads a JSON object mapping channel names (hr, rr, spo2, temp, sbp, dbp, glucose)\n" +
			"to statistics {min, max, mean, median, stdDev, count, latest} and prints the\n" +
			"condition codes, derived indices and guidance.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			guidance, err := loadGuidance(cfg, logger)
			if err != nil {
				return err
			}

			var stats map[string]*carev1.Statistic
			if err := decodeInput(cmd.InOrStdin(), inputPath(args), &stats); err != nil {
				return err
			}

			service := services.NewCareService(logger, nil, nil, guidance, cfg.RAG.ScoreThreshold)
			resp, err := service.Diagnose(cmd.Context(), &carev1.DiagnoseRequest{Statistics: stats})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}
