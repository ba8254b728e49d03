package main

import (
	"strings"

	"github.com/spf13/cobra"

	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
	"github.com/miradorstack/mirador-care/internal/services"
)

type rankOptions struct {
	sources   []string
	limit     int
	threshold float64
}

func newRankCommand(root *rootOptions) *cobra.Command {
	opts := &rankOptions{}
	cmd := &cobra.Command{
		Use:   "rank <query>",
		Short: "Retrieve and rank document passages for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			cacheProvider := newCacheProvider(cfg.Cache, logger)
			defer cacheProvider.Close()

			ranker := newRanker(cfg, cacheProvider, logger)
			service := services.NewCareService(logger, nil, ranker, nil, cfg.RAG.ScoreThreshold)

			req := &carev1.RankRequest{
				Query:   strings.Join(args, " "),
				Sources: opts.sources,
				Limit:   opts.limit,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &opts.threshold
			}
			resp, err := service.Rank(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&opts.sources, "source", nil, "Restrict retrieval to these documents (repeatable)")
	flags.IntVarP(&opts.limit, "limit", "n", 0, "Maximum passages to return (defaults to rag.nChunks)")
	flags.Float64Var(&opts.threshold, "threshold", 0, "Minimum relevance score (defaults to rag.scoreThreshold)")
	return cmd
}
