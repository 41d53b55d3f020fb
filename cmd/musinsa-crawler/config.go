package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage Musinsa Crawler configuration files.

Configuration is merged from:
  - Command line flags (highest priority)
  - Environment variables (MUSINSA_CRAWLER_*)
  - A .env file in the working directory
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the defaults",
	Long: `Create a configuration file holding every option at its default value.

The file is written as 'crawler_config.yaml' in the current directory
unless a different path is given with --config.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration a crawl would run with, after merging flags,
environment, .env, the configuration file and the defaults.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges
  - Output and log directory accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = config.DefaultFile
	}

	created, err := config.EnsureFile(configPath)
	if err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}
	if !created {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Review the limits and delays in the configuration file")
	fmt.Println("2. Store your account with 'musinsa-crawler auth login'")
	fmt.Println("3. Start crawling with 'musinsa-crawler crawl'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	path := config.ResolvePath(configFile)
	if _, err := os.Stat(path); err != nil {
		path = ""
	}

	cfg, err := config.Load(path, nil)
	if cfg == nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if err != nil {
		ui.PrintWarning("Configuration file could not be read, showing defaults", err.Error())
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (MUSINSA_CRAWLER_*)")
	fmt.Println("3. .env file")
	if path != "" {
		fmt.Printf("4. Configuration file: %s\n", path)
	} else {
		fmt.Println("4. Configuration file: (none found)")
	}
	fmt.Println("5. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	path := config.ResolvePath(configFile)
	if _, err := os.Stat(path); err != nil {
		ui.PrintError("No configuration file found", "Create one with 'musinsa-crawler config init' or pass --config")
		os.Exit(1)
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var problems []string
	if err := os.MkdirAll(filepath.Dir(cfg.Output.BaseDirectory), 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}

	if cfg.DownloadDelay == 0 {
		ui.PrintWarning("download_delay is 0, images will be requested back to back")
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s_<timestamp>\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Max images: %d\n", cfg.MaxImages)
	fmt.Printf("  Max pages: %d\n", cfg.MaxPages)
	fmt.Printf("  Download delay: %s\n", cfg.DownloadDelayDuration())
	fmt.Printf("  Login attempts: %d\n", cfg.RetryAttempts)
	fmt.Printf("  Headless: %t\n", cfg.HeadlessMode)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
