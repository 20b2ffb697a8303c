package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage service part continuity links",
	}

	cmd.AddCommand(newLinkUpsertCmd())
	cmd.AddCommand(newLinkListCmd())
	cmd.AddCommand(newLinkPruneCmd())
	return cmd
}

func newLinkUpsertCmd() *cobra.Command {
	var (
		scope scopeFlags
		kind  string
	)

	cmd := &cobra.Command{
		Use:   "upsert <from-part-id> <to-part-id>",
		Short: "Record or replace a link from one part to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			link, err := svc.UpsertServicePartLink(cmd.Context(), scope.variantID, args[0], args[1], kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s (%s)\n", link.FromPartID, link.ToPartID, link.Kind)
			return nil
		},
	}

	addScopeFlags(cmd, &scope, false)
	cmd.Flags().StringVar(&kind, "kind", "", "link kind (default circulation)")
	return cmd
}

func newLinkListCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the variant's links",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			links, err := svc.ListServicePartLinks(cmd.Context(), scope.variantID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(links) == 0 {
				fmt.Fprintln(out, "No links found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tKIND\tTO\tCREATED")
			for _, l := range links {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.FromPartID, l.Kind, l.ToPartID, l.CreatedAt.Format(timeLayout))
			}
			return w.Flush()
		},
	}

	addScopeFlags(cmd, &scope, false)
	return cmd
}

func newLinkPruneCmd() *cobra.Command {
	var (
		configPath  string
		variantID   string
		allVariants bool
		grace       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete links whose source or target part no longer exists",
		Long:  "Deletes dangling links older than --grace (default maintenance.link_grace from config).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("grace") {
				grace = cfg.Maintenance.LinkGrace
			}
			if allVariants {
				variantID = ""
			}
			n, err := svc.PruneServicePartLinks(cmd.Context(), variantID, grace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d dangling links\n", n)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&variantID, "variant", "default", "variant id")
	cmd.Flags().BoolVar(&allVariants, "all", false, "prune every variant")
	cmd.Flags().DurationVar(&grace, "grace", 0, "keep dangling links younger than this")
	return cmd
}
