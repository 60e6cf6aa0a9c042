package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"starlift/internal/observability"
	"starlift/internal/secrets"
	"starlift/pkg/models"
)

var (
	verbose bool
	quiet   bool

	rootCmd = &cobra.Command{
		Use:   "starlift",
		Short: "Load ERP data into the analytics warehouse",
		Long:  "Starlift - A batch ELT pipeline that extracts distribution ERP data through its REST gateway and loads it into a Postgres star schema.",
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home + "/.starlift")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is okay for now
	}
}

// newLogger builds the run logger from the persistent verbosity flags.
func newLogger() *observability.Logger {
	level := observability.InfoLevel
	if verbose {
		level = observability.DebugLevel
	}
	if quiet {
		level = observability.ErrorLevel
	}
	return observability.NewLogger(level, os.Stderr)
}

// resolveGatewayPassword falls back to the system keyring when the config
// file carries no password.
func resolveGatewayPassword(cfg *models.Config) string {
	if cfg.Gateway.Password != "" {
		return cfg.Gateway.Password
	}
	password, err := secrets.GetPassword(cfg.Gateway.Username)
	if err != nil {
		return ""
	}
	return password
}

func parseTimeout(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
