package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/isnine/lookinmcp/pkg/config"
	"github.com/isnine/lookinmcp/pkg/discovery"
)

func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Probe the LookinServer loopback port range and list which ports have a listening agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd)
		},
	}
}

func runProbe(cmd *cobra.Command) error {
	cfg := config.Load(viperInstance)
	prober := discovery.New()
	open := prober.FindAll(cmd.Context(), cfg.PortRange(), cfg.ConnectTimeout)

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(tablewriter.WithHeader([]string{"Port", "Status"}))

	for _, p := range cfg.PortRange() {
		status := "closed"
		if contains(open, p) {
			status = "open"
		}
		if err := table.Append([]string{fmt.Sprintf("%d", p), status}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func contains(ports []int, p int) bool {
	for _, v := range ports {
		if v == p {
			return true
		}
	}
	return false
}
