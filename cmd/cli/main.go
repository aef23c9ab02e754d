// Package main provides the crm-cli tool: the same reports the HTTP service
// produces, from the terminal.
// Uses Cobra for command parsing.
//
// Run with: go run ./cmd/cli estimate --device "Iphone 8"
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/crm-service/internal/app"
	"github.com/fleveque/crm-service/internal/config"
	"github.com/fleveque/crm-service/internal/materials"
	"github.com/fleveque/crm-service/internal/model"
	"github.com/fleveque/crm-service/internal/storage"
)

func main() {
	if err := rootCmd(buildServices).Execute(); err != nil {
		os.Exit(1)
	}
}

// services is the part of the application the LLM-backed commands use.
// *service.ReportService and *service.Detector satisfy these.
type services struct {
	reports interface {
		BuildReport(ctx context.Context, deviceID string) *model.DeviceReport
	}
	detector interface {
		DetectDevice(ctx context.Context, encoded string) (string, error)
	}
}

// servicesBuilder returns the services and a cleanup func.
type servicesBuilder func(configPath string) (*services, func(), error)

// rootCmd creates the root command. Cobra builds a tree of commands:
// crm-cli estimate --device "Iphone 8"
// crm-cli detect --image photo.jpg --report
func rootCmd(build servicesBuilder) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "crm-cli",
		Short:        "Critical raw material estimates for electronic devices",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CRM_CONFIG_PATH"), "Path to a YAML config file")

	root.AddCommand(estimateCmd(&configPath, build))
	root.AddCommand(detectCmd(&configPath, build))
	root.AddCommand(materialsCmd(&configPath))
	root.AddCommand(usageCmd(&configPath))
	return root
}

func estimateCmd(configPath *string, build servicesBuilder) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the raw materials, CO2 and commercial info of a device",
		// RunE returns an error (vs Run which doesn't). Cobra prints the error automatically.
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(*configPath, build, func(ctx context.Context, svc *services) error {
				return printJSON(cmd.OutOrStdout(), svc.reports.BuildReport(ctx, device))
			})
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Device name, e.g. \"Iphone 8\"")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func detectCmd(configPath *string, build servicesBuilder) *cobra.Command {
	var imagePath string
	var withReport bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the device shown in a photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}

			return withServices(*configPath, build, func(ctx context.Context, svc *services) error {
				device, err := svc.detector.DetectDevice(ctx, base64.StdEncoding.EncodeToString(data))
				if err != nil {
					return fmt.Errorf("detecting device: %w", err)
				}
				if !withReport {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), device)
					return err
				}
				return printJSON(cmd.OutOrStdout(), svc.reports.BuildReport(ctx, device))
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a photo of the device")
	cmd.Flags().BoolVar(&withReport, "report", false, "Also print the material report of the detected device")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func materialsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "materials",
		Short: "List the materials every report covers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			list, err := materials.Load(cfg.Materials.ListPath)
			if err != nil {
				return fmt.Errorf("loading material list: %w", err)
			}
			for _, id := range list.IDs() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func usageCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Print LLM call accounting per prompt and provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cfg.Usage.DatabasePath == "" {
				return fmt.Errorf("call accounting is disabled (usage.database_path is empty)")
			}

			db, err := storage.NewDatabase(cfg.Usage.DatabasePath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			stats, err := storage.NewLLMCallRepository(db).Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROMPT\tPROVIDER\tTOTAL\tOK\tAVG MS")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f\n", s.Prompt, s.Provider, s.Total, s.Succeeded, s.AvgDurationMs)
			}
			return w.Flush()
		},
	}
}

// withServices builds the services and runs fn with a context that is
// cancelled on Ctrl+C.
func withServices(configPath string, build servicesBuilder, fn func(ctx context.Context, svc *services) error) error {
	svc, cleanup, err := build(configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, svc)
}

// buildServices loads config and wires the real application.
func buildServices(configPath string) (*services, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// Always use development mode for the CLI: logs go to stderr, results to stdout.
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	// The CLI is short-lived; scraping metrics makes no sense.
	cfg.Metrics.Enabled = false

	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		_ = a.Close(context.Background())
		_ = logger.Sync()
	}
	return &services{reports: a.Reports, detector: a.Detector}, cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
