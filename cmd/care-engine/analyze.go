package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	carev1 "github.com/miradorstack/mirador-care/internal/grpc/carev1"
)

type analyzeOptions struct {
	addr         string
	deviceID     string
	sessionID    string
	question     string
	dataAnalysis bool
	sources      []string
	timeout      time.Duration
}

func newAnalyzeCommand() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Send one interaction to a running CareEngine service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", opts.addr, err)
			}
			defer conn.Close()

			resp, err := carev1.NewCareEngineClient(conn).Analyze(ctx, &carev1.AnalyzeRequest{
				DeviceId:     opts.deviceID,
				SessionId:    opts.sessionID,
				Question:     opts.question,
				DataAnalysis: opts.dataAnalysis,
				Sources:      opts.sources,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "localhost:50051", "CareEngine gRPC address")
	flags.StringVar(&opts.deviceID, "device", "", "Device whose vitals are analysed")
	flags.StringVar(&opts.sessionID, "session", "", "Chat session identifier")
	flags.StringVarP(&opts.question, "question", "q", "", "Question to answer")
	flags.BoolVar(&opts.dataAnalysis, "data-analysis", false, "Fetch and diagnose the device's recent vitals")
	flags.StringSliceVar(&opts.sources, "source", nil, "Restrict retrieval to these documents (repeatable)")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "Overall call timeout")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}
