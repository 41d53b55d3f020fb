package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"musinsacrawler/pkg/ui"
)

var (
	// set with -ldflags at release time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "musinsa-crawler",
	Short: "Download product images from your Musinsa order history",
	Long: `Musinsa Crawler signs in to your Musinsa account, walks the order history
and saves every product image it finds.

Features:
  - Login with stored credentials (system keychain or encrypted file)
  - Full order history expansion across "load more" and numbered pages
  - Thumbnail to full-resolution URL upgrades with duplicate removal
  - Paced sequential downloads with quality filtering
  - Resume into the previous run's directory
  - download_info.json and session_log.json written for every run

Running without a subcommand is the same as 'musinsa-crawler crawl'.`,
	Version:          fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: applyGlobalFlags,
	Args:             cobra.NoArgs,
	Run:              runCrawl,
}

// applyGlobalFlags configures console output before any subcommand runs
func applyGlobalFlags(cmd *cobra.Command, args []string) {
	ui.SetNoColor(noColor)
	ui.SetQuietMode(quiet || logLevel == "error")
	if verbose && logLevel == "info" {
		logLevel = "debug"
	}

	switch cmd.Name() {
	case "version", "help", "list", "show":
	default:
		ui.PrintLogo()
	}
}

// Execute runs the command tree; cobra has already printed usage errors
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./crawler_config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and one line per download")

	rootCmd.SetVersionTemplate(`Musinsa Crawler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
