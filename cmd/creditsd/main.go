// Command creditsd serves the credit ledger over HTTP and talks to a running
// instance from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var Version = "dev"

var (
	configPath string
	serverAddr string
)

var rootCmd = &cobra.Command{
	Use:           "creditsd",
	Short:         "creditsd - usage-credit ledger service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "base URL of a running creditsd for client commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(spendCmd)
	rootCmd.AddCommand(purchaseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
