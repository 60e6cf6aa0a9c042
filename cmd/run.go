package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"starlift/internal/checksum"
	"starlift/internal/config"
	"starlift/internal/gateway"
	"starlift/internal/pipeline"
	"starlift/internal/warehouse"
)

var (
	runForce      bool
	runInitSchema bool
	runDryRun     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the ELT pipeline once",
	Long: `Extract a full snapshot from the ERP gateway, compare entity checksums
against the previous run, and when anything changed stage, transform and load
it into the warehouse star schema.`,
	Run: executeRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "load even when no entity checksum changed")
	runCmd.Flags().BoolVar(&runInitSchema, "init-schema", false, "apply the warehouse schema before loading")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract and compare checksums without writing anything")
	rootCmd.AddCommand(runCmd)
}

func executeRun(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Gateway.BaseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: gateway base URL is not configured. Run 'starlift setup' first.")
		os.Exit(1)
	}

	client := gateway.NewClient(gateway.Config{
		BaseURL:  cfg.Gateway.BaseURL,
		Username: cfg.Gateway.Username,
		Password: resolveGatewayPassword(cfg),
		PageSize: cfg.Gateway.PageSize,
		Timeout:  parseTimeout(cfg.Gateway.Timeout),
	})

	service := warehouse.NewService(warehouse.Config{
		Host:     cfg.Warehouse.Host,
		Port:     cfg.Warehouse.Port,
		Database: cfg.Warehouse.Database,
		Username: cfg.Warehouse.Username,
		Password: cfg.Warehouse.Password,
		SSLMode:  cfg.Warehouse.SSLMode,
		Timeout:  parseTimeout(cfg.Warehouse.Timeout),
	})

	if !runDryRun {
		if err := service.Connect(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer service.Close()
	}

	store := checksum.NewFileStore(cfg.Pipeline.ChecksumFile)
	runner := pipeline.NewRunner(client, service, store, newLogger())

	result, err := runner.Run(context.Background(), pipeline.Options{
		Force:      runForce,
		InitSchema: runInitSchema,
		DryRun:     runDryRun,
	})
	printRunSummary(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printRunSummary(result *pipeline.Result) {
	if result == nil {
		return
	}

	status := result.Status
	switch status {
	case pipeline.StatusSuccess:
		status = color.GreenString(status)
	case pipeline.StatusNoChange:
		status = color.YellowString(status)
	case pipeline.StatusFailed:
		status = color.RedString(status)
	}

	fmt.Printf("\nRun %s finished: %s (%s)\n", result.RunID, status,
		result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))

	if len(result.ChangedEntities) > 0 {
		fmt.Printf("Changed entities: %v\n", result.ChangedEntities)
	}
	printCounts("Extracted", result.ExtractCounts)
	printCounts("Staged", result.StageCounts)
	printCounts("Normalized", result.NormalizeCounts)

	if result.Quality != nil {
		fmt.Printf("Quality: %d customer duplicate group(s), %d product duplicate group(s), %d invalid order(s) removed\n",
			len(result.Quality.CustomerDuplicates),
			len(result.Quality.ProductDuplicates),
			result.Quality.InvalidOrderDatesRemoved)
	}
	if result.Dimensions != nil {
		d := result.Dimensions
		fmt.Printf("Dimensions: customers +%d/~%d, suppliers +%d/~%d, products +%d/~%d, statuses +%d, ship modes +%d\n",
			d.CustomersInserted, d.CustomersUpdated,
			d.SuppliersInserted, d.SuppliersUpdated,
			d.ProductsInserted, d.ProductsUpdated,
			d.StatusesInserted, d.ShipModesInserted)
	}
	if result.GeneratedDims != nil {
		fmt.Printf("Generated dimensions: %d date(s), %d geography(ies)\n",
			result.GeneratedDims.DatesInserted, result.GeneratedDims.GeographiesInserted)
	}
	if result.ChecksumSaveError != nil {
		fmt.Printf("%s checksums were not persisted, the next run will reload everything: %v\n",
			color.YellowString("Warning:"), result.ChecksumSaveError)
	}
	if result.Facts != nil {
		fmt.Printf("Facts: %d sales line(s), %d status transition(s), %d inventory snapshot(s)\n",
			result.Facts.SalesOrderLines, result.Facts.StatusTransitions, result.Facts.InventorySnapshots)
	}
}

func printCounts(label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%s:", label)
	for _, name := range names {
		fmt.Printf(" %s=%d", name, counts[name])
	}
	fmt.Println()
}
