package main

import (
	"fmt"
	"os"

	"github.com/hacluster/pcsd/pkg/library"
	"github.com/hacluster/pcsd/pkg/worker"
	"github.com/spf13/cobra"
)

// execWorkerCmd is the re-exec target worker.NewSelfExecLauncher spawns:
// it never runs interactively, has no flags of its own, and talks to its
// parent over stdin/stdout rather than a terminal. Hidden so it doesn't
// clutter `pcsd --help`.
var execWorkerCmd = &cobra.Command{
	Use:    "exec-worker",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := worker.RunEntrypoint(library.NewRegistry()); err != nil {
			fmt.Fprintf(os.Stderr, "worker exited: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}
