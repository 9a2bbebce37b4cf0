package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trafficdump",
	Short: "Trafficdump - capturing reverse proxy for replay traffic",
	Long: `Trafficdump sits in front of an HTTP origin and records a sample of client
sessions as replay files for Proxy Verifier.

  - HTTP/1.1 and cleartext HTTP/2 clients
  - one replay file per sampled connection
  - sensitive header values redacted before anything is written
  - a global disk budget across all replay files`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns its error after printing it.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
