package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-care/internal/config"
	"github.com/miradorstack/mirador-care/internal/utils"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "care-engine",
		Short:         "Vitals diagnosis and document retrieval engine",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (defaults to $MIRADOR_CARE_CONFIG)")

	cmd.AddCommand(
		newServeCommand(opts),
		newAnalyzeCommand(),
		newDiagnoseCommand(opts),
		newVitalsCommand(),
		newRankCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// load reads configuration and builds the process logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	return cfg, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
