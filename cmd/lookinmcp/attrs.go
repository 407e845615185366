package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/isnine/lookinmcp/pkg/attributes"
)

func newAttrsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attrs [name]",
		Short: "List the registered attribute names, or describe one by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return renderAttrsTable()
			}
			return describeAttr(args[0])
		},
	}
	return cmd
}

func renderAttrsTable() error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Options(tablewriter.WithHeader([]string{"Name", "Target", "Type Code", "Value Format"}))

	for _, name := range attributes.RegisteredNames() {
		entry, _, ok := attributes.Lookup(name)
		if !ok {
			continue
		}
		target := "view"
		if entry.TargetKind == attributes.TargetLayer {
			target = "layer"
		}
		if err := table.Append([]string{
			entry.FriendlyName,
			target,
			fmt.Sprintf("%d", entry.AttrType),
			entry.ValueHelp,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func describeAttr(name string) error {
	entry, isHelp, ok := attributes.Lookup(name)
	if isHelp {
		fmt.Println(attributes.Help())
		return nil
	}
	if !ok {
		return fmt.Errorf("unknown attribute %q; run \"lookinmcp attrs\" to list registered names", name)
	}
	fmt.Printf("%s\n  setter:   %s\n  type:     %d\n  target:   %v\n  format:   %s\n",
		entry.FriendlyName, entry.SetterSelector, entry.AttrType, entry.TargetKind, entry.ValueHelp)
	return nil
}
