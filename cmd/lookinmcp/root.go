// Package main implements the lookinmcp CLI: an MCP stdio server exposing
// a connected iOS Simulator app's live UI hierarchy, plus debug subcommands
// for working with the LookinServer protocol directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/isnine/lookinmcp/pkg/config"
	"github.com/isnine/lookinmcp/pkg/logger"
)

var viperInstance = viper.New()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "lookinmcp",
		Short: "Bridge a live iOS Simulator view hierarchy to AI assistants over MCP",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(viperInstance)
			logger.Initialize(cfg.LogDebug)
			return nil
		},
	}

	config.BindFlags(root.PersistentFlags(), viperInstance)

	root.AddCommand(newServeCommand())
	root.AddCommand(newProbeCommand())
	root.AddCommand(newAttrsCommand())

	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
