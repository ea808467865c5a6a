package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rights-monitor/backend/internal/analysis"
	"github.com/rights-monitor/backend/pkg/config"
	appLogger "github.com/rights-monitor/backend/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "rights-monitor",
		Short:         "Classifies news articles against human-rights categories",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	})
	root.AddCommand(newProcessCmd(&configPath))

	return root
}

func newProcessCmd(configPath *string) *cobra.Command {
	var req analysis.Request

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one classification batch and print the report as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcess(*configPath, req)
		},
	}
	cmd.Flags().StringSliceVar(&req.Dates, "date", nil, "date to process (YYYY-MM-DD), repeatable")
	cmd.Flags().StringSliceVar(&req.Rights, "right", nil, "right label to classify, repeatable")
	cmd.Flags().StringVar(&req.StartDate, "start-date", "", "first date of an inclusive range")
	cmd.Flags().StringVar(&req.EndDate, "end-date", "", "last date of an inclusive range")

	return cmd
}

func setup(configPath string) (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return nil, err
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return nil, err
	}

	return cfg, nil
}

func runProcess(configPath string, req analysis.Request) error {
	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	deps, err := build(cfg)
	if err != nil {
		appLogger.Error("Failed to initialize", zap.Error(err))
		return err
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := deps.orchestrator.Run(ctx, req, analysis.LogSink{})
	if err != nil {
		appLogger.Error("Batch failed", zap.Error(err))
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	fmt.Println(string(out))

	return nil
}
