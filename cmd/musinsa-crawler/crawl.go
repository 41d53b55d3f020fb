package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"musinsacrawler/pkg/auth"
	"musinsacrawler/pkg/checkpoint"
	"musinsacrawler/pkg/config"
	"musinsacrawler/pkg/crawler"
	"musinsacrawler/pkg/logger"
	"musinsacrawler/pkg/metadata"
	"musinsacrawler/pkg/ui"
	"musinsacrawler/pkg/ui/tui"
)

var (
	// Crawl command flags
	outputDir     string
	accountName   string
	maxImages     int
	maxPages      int
	downloadDelay float64
	headless      bool
	qualityFilter bool
	notifications bool
	resumeRun     bool
	useTUI        bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Download product images from your order history",
	Long: `Sign in to Musinsa, expand the whole order history and download every
product image into a new timestamped directory.

Credentials are taken from, in order:
  - the account named with --account
  - MUSINSA_ID and MUSINSA_PASSWORD (environment or .env)
  - the most recently stored account ('musinsa-crawler auth login')
  - an interactive prompt

When no configuration file exists yet, one is written with the defaults and
the command exits without crawling so it can be reviewed first.`,
	Example: `  # Crawl with the settings from crawler_config.yaml
  musinsa-crawler crawl

  # Headless, at most 200 images from the first 10 pages
  musinsa-crawler crawl --headless --max-images 200 --max-pages 10

  # Continue in the previous run's directory, skipping what is there
  musinsa-crawler crawl --resume

  # Live terminal dashboard
  musinsa-crawler crawl --tui`,
	Args: cobra.NoArgs,
	Run:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	addCrawlFlags(crawlCmd)
	// bare invocation crawls too
	addCrawlFlags(rootCmd)
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "write into this directory instead of a new timestamped one")
	cmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	cmd.Flags().IntVar(&maxImages, "max-images", 0, "maximum number of images to download")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum number of order pages to expand")
	cmd.Flags().Float64Var(&downloadDelay, "download-delay", 0, "seconds to wait between downloads")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	cmd.Flags().BoolVar(&qualityFilter, "quality-filter", true, "discard files below min_file_size")
	cmd.Flags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the run ends")
	cmd.Flags().BoolVar(&resumeRun, "resume", false, "continue in the previous run's output directory")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

// changedFlags collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("max-images") {
		flags["max-images"] = maxImages
	}
	if changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if changed("download-delay") {
		flags["download-delay"] = downloadDelay
	}
	if changed("headless") {
		flags["headless"] = headless
	}
	if changed("quality-filter") {
		flags["quality-filter"] = qualityFilter
	}
	if changed("notifications") {
		flags["notifications"] = notifications
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) {
	path := config.ResolvePath(configFile)
	created, err := config.EnsureFile(path)
	if err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}
	if created {
		ui.PrintSuccess("Configuration file created: " + path)
		fmt.Println("\nReview the settings, then run the crawler again:")
		fmt.Println("  musinsa-crawler crawl")
		return
	}

	cfg, err := config.Load(path, changedFlags(cmd))
	if cfg == nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if err != nil {
		ui.PrintWarning("Configuration file could not be read, using defaults", err.Error())
	}
	if useTUI && cfg.Logging.File == "" {
		// console log lines would tear the dashboard
		cfg.Logging.Level = "error"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("Musinsa Crawler starting")

	account, err := resolveAccount()
	if err != nil {
		ui.PrintError("No Musinsa credentials available", err.Error())
		fmt.Println("\nStore an account with:")
		fmt.Println("  musinsa-crawler auth login")
		fmt.Println("\nor set MUSINSA_ID and MUSINSA_PASSWORD.")
		os.Exit(1)
	}
	ui.PrintInfo("Account", logger.MaskUsername(account.Username))

	opts := []crawler.Option{crawler.WithLogger(log)}

	checkpoints, err := checkpoint.NewManager(log)
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
	} else {
		opts = append(opts, crawler.WithCheckpoint(checkpoints))
	}

	dir, err := runDirectory(checkpoints)
	if err != nil {
		ui.PrintError("Cannot resume", err.Error())
		os.Exit(1)
	}
	if dir != "" {
		opts = append(opts, crawler.WithOutputDir(dir))
		ui.PrintInfo("Output", dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *crawler.Result
	if useTUI {
		result, err = crawlWithTUI(ctx, cfg, opts, account)
	} else {
		display := ui.NewProgressDisplay(os.Stdout, verbose)
		opts = append(opts, crawler.WithReporter(display))

		ui.PrintHighlight("[STARTING CRAWL]")
		result, err = crawler.New(cfg, opts...).Run(ctx, account.Credentials())
		if err == nil {
			display.Complete(result.Manifest, result.OutputDir)
		}
	}
	if err != nil {
		log.WithError(err).Error("Crawl could not start")
		ui.PrintError("CRAWL FAILED", err.Error())
		os.Exit(1)
	}

	report(result, ui.NewNotifier(cfg.Notifications.Enabled))
}

// resolveAccount picks credentials from the flag, the environment, the
// stores and finally the terminal
func resolveAccount() (*auth.Account, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if accountName != "" {
		account, err := manager.Retrieve(accountName)
		if err == nil {
			return account, nil
		}
		ui.PrintWarning("Stored account not found", accountName)
		return auth.NewTerminalPrompter().Account(accountName)
	}

	if account, err := manager.RetrieveDefault(); err == nil {
		return account, nil
	}
	return auth.NewTerminalPrompter().Account("")
}

// runDirectory is the explicit output directory, the resumed one, or empty
// for a fresh timestamped directory
func runDirectory(checkpoints *checkpoint.Manager) (string, error) {
	if outputDir != "" {
		return outputDir, nil
	}
	if !resumeRun {
		return "", nil
	}
	if checkpoints == nil {
		return "", errors.New("checkpoints are unavailable")
	}

	dir, ok, err := checkpoints.ResumeDir()
	if err != nil {
		return "", err
	}
	if !ok {
		ui.PrintWarning("Nothing to resume, starting a new run")
		return "", nil
	}
	return dir, nil
}

// crawlWithTUI runs the crawl behind the dashboard. Quitting the dashboard
// cancels the crawl, which still writes its logs before returning.
func crawlWithTUI(ctx context.Context, cfg *config.Config, opts []crawler.Option, account *auth.Account) (*crawler.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(crawler.Stages...)
	opts = append(opts, crawler.WithReporter(terminal))

	type outcome struct {
		result *crawler.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := crawler.New(cfg, opts...).Run(ctx, account.Credentials())
		if err == nil {
			terminal.Finish(finishMessage(result))
		} else {
			terminal.Stop()
		}
		done <- outcome{result, err}
	}()

	if err := terminal.Start(); err != nil {
		cancel()
		if !errors.Is(err, tui.ErrQuit) {
			logger.WithError(err).Error("TUI failed")
		}
	}

	o := <-done
	return o.result, o.err
}

func finishMessage(r *crawler.Result) string {
	if r.Succeeded() {
		return "Crawl finished. Press q to exit."
	}
	return fmt.Sprintf("Crawl ended: %s. Press q to exit.", r.Outcome)
}

// report prints the outcome and sends the end-of-run notification
func report(r *crawler.Result, notifier *ui.Notifier) {
	if r.Succeeded() {
		saved := 0
		if r.Manifest != nil {
			saved = r.Manifest.Count(metadata.StatusSuccess)
		}
		ui.PrintInfo("Run log", r.OutputDir)
		notifier.SendSuccess("Crawl complete", fmt.Sprintf("%d new images in %s", saved, r.OutputDir))
		return
	}

	detail := string(r.Outcome)
	if r.Err != nil {
		detail = fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	}
	notifier.SendError("Crawl did not complete", detail)
	ui.PrintInfo("Run log", r.OutputDir)
}
