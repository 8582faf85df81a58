package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor bool
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:     "gridchat",
	Short:   "Chat with a spreadsheet-aware assistant",
	Version: version,
	Long: `gridchat is a chat server whose assistant reads and mutates a spreadsheet
through confirmation-gated tools. Mutations proposed by the assistant are
held as pending actions until you approve them.`,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(sheetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
