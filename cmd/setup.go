package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"starlift/internal/config"
	"starlift/internal/secrets"
	"starlift/internal/warehouse"
	"starlift/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	Run:   runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("Setting up starlift...")
	fmt.Println()

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	cfg := &models.Config{}

	fmt.Println("ERP Gateway")
	fmt.Println("-----------")

	gatewayQs := []*survey.Question{
		{
			Name: "baseurl",
			Prompt: &survey.Input{
				Message: "Gateway base URL (e.g. http://erp.internal:8000):",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Gateway username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Gateway password:",
			},
			Validate: survey.Required,
		},
	}
	if err := survey.Ask(gatewayQs, &cfg.Gateway); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Warehouse (Postgres)")
	fmt.Println("--------------------")

	warehouseQs := []*survey.Question{
		{
			Name: "host",
			Prompt: &survey.Input{
				Message: "Host:",
				Default: "localhost",
			},
			Validate: survey.Required,
		},
		{
			Name: "port",
			Prompt: &survey.Input{
				Message: "Port:",
				Default: "5432",
			},
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Database:",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
			},
		},
		{
			Name: "sslmode",
			Prompt: &survey.Select{
				Message: "SSL mode:",
				Options: []string{"disable", "require", "verify-ca", "verify-full"},
				Default: "disable",
			},
		},
	}
	if err := survey.Ask(warehouseQs, &cfg.Warehouse); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Offer to keep the gateway password out of the config file.
	if secrets.Available() {
		var useKeyring bool
		prompt := &survey.Confirm{
			Message: "Store the gateway password in the system keyring instead of the config file?",
			Default: true,
		}
		survey.AskOne(prompt, &useKeyring)
		if useKeyring {
			if err := secrets.StorePassword(cfg.Gateway.Username, cfg.Gateway.Password); err != nil {
				fmt.Printf("Warning: %v\n", err)
			} else {
				cfg.Gateway.Password = ""
			}
		}
	}

	var applySchema bool
	schemaPrompt := &survey.Confirm{
		Message: "Apply the warehouse schema now?",
		Default: true,
	}
	survey.AskOne(schemaPrompt, &applySchema)

	if applySchema {
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
			fmt.Printf("Warning: could not connect to warehouse: %v\n", err)
		} else {
			if err := service.EnsureSchema(context.Background()); err != nil {
				fmt.Printf("Warning: could not apply schema: %v\n", err)
			} else {
				fmt.Println("Warehouse schema applied.")
			}
			service.Close()
		}
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error: failed to save configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", config.GetConfigFile())
	fmt.Println("Run 'starlift run --init-schema' to execute your first pipeline run.")
}
