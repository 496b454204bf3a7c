// Soumetsu - osu! bancho server.
//
// Soumetsu speaks the bancho binary protocol over HTTP: clients log in with
// a plain-text body, then poll with packet streams and receive queued
// packets in the response. It exposes an admin REST API, Prometheus metrics,
// and publishes session events via MQTT.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soumetsu-project/soumetsu/internal/api"
)

const (
	AppName = "Soumetsu"
	Banner  = `
  ____                              _
 / ___|  ___  _   _ _ __ ___   ___| |_ ___ _   _
 \___ \ / _ \| | | | '_ ' _ \ / _ \ __/ __| | | |
  ___) | (_) | |_| | | | | | |  __/ |_\__ \ |_| |
 |____/ \___/ \__,_|_| |_| |_|\___|\__|___/\__,_|
                                      v%s
 osu! bancho server
`
)

// Version information set at build time.
var version = "dev"

var configDir string

func main() {
	api.Version = version

	rootCmd := &cobra.Command{
		Use:           "soumetsu",
		Short:         "osu! bancho server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{console: true})
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory holding config.json")

	rootCmd.AddCommand(
		serveCmd(),
		configCmd(),
		userCmd(),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", AppName, version)
		},
	}
}
