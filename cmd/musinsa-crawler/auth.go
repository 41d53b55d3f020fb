package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"musinsacrawler/pkg/auth"
	"musinsacrawler/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Musinsa credentials",
	Long: `Manage stored Musinsa credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - MUSINSA_ID / MUSINSA_PASSWORD environment variables (read only)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [id]",
	Short: "Store Musinsa credentials securely",
	Long: `Store a Musinsa ID and password in the system keychain or encrypted file.

You will be prompted for the ID (if not given) and the password. The password
is not echoed.`,
	Example: `  # Interactive login
  musinsa-crawler auth login

  # Login with an ID
  musinsa-crawler auth login shopper01`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [id]",
	Short: "Remove stored credentials",
	Long: `Remove stored Musinsa credentials.

Without an ID every stored account is listed and you choose which one to
remove, or remove them all.`,
	Example: `  # Interactive logout
  musinsa-crawler auth logout

  # Logout specific account
  musinsa-crawler auth logout shopper01`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Musinsa accounts with masked passwords.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func newCredentialManager() *auth.Manager {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}
	return manager
}

func runLogin(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()
	prompter := auth.NewTerminalPrompter()

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}

	if username != "" {
		if existing, _ := manager.Retrieve(username); existing != nil {
			if !prompter.Confirm(fmt.Sprintf("Account '%s' already exists. Update the password?", username)) {
				return
			}
		}
	}

	account, err := prompter.Account(username)
	if err != nil {
		ui.PrintError("Failed to read credentials", err.Error())
		os.Exit(1)
	}

	fmt.Println("\nStoring credentials securely...")
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", account.Username))

	fmt.Println("\nStart crawling with:")
	fmt.Println("  musinsa-crawler crawl")
	fmt.Println("\nOr pick this account explicitly:")
	fmt.Printf("  musinsa-crawler crawl --account %s\n", account.Username)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()

	if len(args) > 0 {
		username := args[0]
		if err := manager.Delete(username); err != nil {
			ui.PrintError("Failed to remove account", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + username)
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found", "")
		return
	}

	prompter := auth.NewTerminalPrompter()
	if len(accounts) == 1 {
		account := accounts[0]
		if !prompter.Confirm(fmt.Sprintf("Remove account '%s'?", account.Username)) {
			return
		}
		if err := manager.Delete(account.Username); err != nil {
			ui.PrintError("Failed to remove account", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + account.Username)
		return
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	choice, err := prompter.Choice("Choice: ")
	if err != nil {
		ui.PrintError("Invalid choice", err.Error())
		os.Exit(1)
	}

	switch {
	case choice == 0:
		return
	case choice == len(accounts)+1:
		if answer, _ := prompter.Ask("Remove ALL accounts? This cannot be undone! (yes/N): "); answer != "yes" {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove all accounts", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("All accounts removed")
	case choice > 0 && choice <= len(accounts):
		account := accounts[choice-1]
		if err := manager.Delete(account.Username); err != nil {
			ui.PrintError("Failed to remove account", err.Error())
			os.Exit(1)
		}
		ui.PrintSuccess("Account removed: " + account.Username)
	default:
		ui.PrintError("Invalid choice", "")
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'musinsa-crawler auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. ID: %s\n", i+1, sanitized.Username)
		fmt.Printf("   Password: %s\n", sanitized.Password)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}
