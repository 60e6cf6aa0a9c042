package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"starlift/internal/config"
	"starlift/internal/report"
	"starlift/internal/warehouse"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an analytics summary of the warehouse",
	Long: `Query the star schema and print key figures, monthly trend, segment
breakdown, top products and customers, low stock alerts and table volumes.`,
	Run: executeReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func executeReport(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	service := warehouse.NewService(warehouse.Config{
		Host:     cfg.Warehouse.Host,
		Port:     cfg.Warehouse.Port,
		Database: cfg.Warehouse.Database,
		Username: cfg.Warehouse.Username,
		Password: cfg.Warehouse.Password,
		SSLMode:  cfg.Warehouse.SSLMode,
		Timeout:  parseTimeout(cfg.Warehouse.Timeout),
	})
	if err := service.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer service.Close()

	summary, err := report.NewService(service.DB(), cfg.Pipeline.LowStock).Summarize(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	useColor := isatty.IsTerminal(os.Stdout.Fd())
	fmt.Print(report.NewRenderer(useColor).Render(summary))
}
