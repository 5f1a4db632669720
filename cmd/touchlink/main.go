// Package main starts the touchlink bridge.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// main is the entrypoint for the touchlink bridge.
func main() {
	if err := rootCmd().Execute(); err != nil {
		logFatal(err)
	}
}

// rootCmd builds the command tree.
func rootCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:           "touchlink",
		Short:         "Drive a PC's mouse and keyboard from a touch surface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(debug)
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable verbose debug logging")
	cmd.AddCommand(runCmd(), echoCmd())
	return cmd
}

// setupLogging installs the default slog handler.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
		log.Printf("debug: enabled")
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// logFatal prints and exits for startup failures.
func logFatal(err error) {
	log.Printf("fatal: %v", err)
	os.Exit(1)
}
