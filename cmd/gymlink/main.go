// Copyright (C) 2024-2026, Gymlink Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Command gymlink runs a standalone exchange server hosting a small
// built-in environment, used for trainer integration and connectivity
// checks.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gymlink/gymlink/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gymlink",
	Short: "gymlink - asynchronous RPC exchange server for RL training",
	Long:  `Serves observation/action exchanges between a simulation and an external trainer over gRPC.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := config.Initialize(); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("config: %v", err))
		}
		// Flags beat config file and environment when set explicitly.
		bindFlag(cmd, "port")
		bindFlag(cmd, "address")
		bindFlag(cmd, "transport")
		bindFlag(cmd, "monitor-addr")
		bindFlag(cmd, "script")
		bindFlag(cmd, "min-trainer-version")
		bindFlag(cmd, "log-file")
	},
}

func bindFlag(cmd *cobra.Command, name string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		config.Set(name, f.Value.String())
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gymlink version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gymlink %s\n", Version)
	},
}

func main() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(1)
	}
}
