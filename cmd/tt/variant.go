package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/kron12345/coreplanx/internal/partition"
	"github.com/spf13/cobra"
)

func newVariantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variant",
		Short: "Manage per-variant storage",
	}

	cmd.AddCommand(newVariantEnsureCmd())
	cmd.AddCommand(newVariantDropCmd())
	cmd.AddCommand(newVariantPartitionsCmd())
	return cmd
}

func newVariantEnsureCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ensure <variant-id>",
		Short: "Create the variant's partitions if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.EnsureVariant(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Variant %s ready\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newVariantDropCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "drop <variant-id>",
		Short: "Remove all timetable data of a variant",
		Long:  "Drops the variant's partitions (PostgreSQL) or deletes its rows (MySQL, SQLite). Requires --yes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop variant %s without --yes", args[0])
			}
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := svc.DropVariant(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped variant %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the drop")
	return cmd
}

func newVariantPartitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "partitions <variant-id>",
		Short: "Print the partition names a variant maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tPARTITION")
			for _, p := range partition.Plan(args[0]) {
				fmt.Fprintf(w, "%s\t%s\n", p.Parent, p.Name)
			}
			return w.Flush()
		},
	}
}
