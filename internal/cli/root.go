package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the offerd release, overridden at link time
var Version = "0.1.0-dev"

var (
	// Global flags
	configFile string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "offerd",
	Short: "offerd - escrowed offer marketplace",
	Long: `offerd keeps a book of escrowed purchase offers on registry items.
Offerers lock value when they bid; owners accept a bid to settle it, paying
the marketplace fee to the fee recipient, and offerers may cancel for a full
refund. The market is served over JSON-RPC and a websocket event stream.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
}
