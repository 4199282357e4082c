// Command pcsd is the high-availability cluster daemon: a single
// binary that boots the async task subsystem (spec.md §4) behind a
// small HTTP surface (spec.md §6), plus a hidden worker mode the
// daemon re-execs itself into once per worker pool slot; each worker
// process then runs dispatched tasks one at a time.
package main

import (
	"fmt"
	"os"

	"github.com/hacluster/pcsd/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pcsd",
	Short: "pcsd - high-availability cluster control-plane daemon",
	Long: `pcsd runs the asynchronous task subsystem that fronts cluster
management commands: every request is handed to a dedicated worker
subprocess and tracked through Created, Queued, Executed, and Finished
until a caller collects its result.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to pcsd.yaml (defaults apply if unset or missing)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(execWorkerCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
