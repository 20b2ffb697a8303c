package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/kron12345/coreplanx/internal/timetable"
	"github.com/spf13/cobra"
)

func newPartsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parts",
		Short: "Compile and edit train service parts",
	}

	cmd.AddCommand(newPartsListCmd())
	cmd.AddCommand(newPartsRebuildCmd())
	cmd.AddCommand(newPartsSplitCmd())
	cmd.AddCommand(newPartsMergeCmd())
	return cmd
}

func newPartsListCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service parts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			parts, err := svc.ListTrainServiceParts(cmd.Context(), scope.variantID, scope.stageID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(parts) == 0 {
				fmt.Fprintln(out, "No service parts found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRAIN\tFROM\tTO\tSTART\tEND\tSEGMENTS")
			for _, p := range parts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.TrainNumber, p.FromLocationID, p.ToLocationID,
					p.StartTime.Format(timeLayout), p.EndTime.Format(timeLayout),
					strings.Join(p.SegmentIDs, ","))
			}
			return w.Flush()
		},
	}

	addScopeFlags(cmd, &scope, true)
	return cmd
}

func newPartsRebuildCmd() *cobra.Command {
	var (
		scope     scopeFlags
		yearLabel string
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Discard all service parts and derive one per train run",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			res, err := svc.RebuildTrainServiceParts(cmd.Context(), scope.variantID, scope.stageID, optString(yearLabel))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d service parts for %s/%s\n", res.Parts, scope.variantID, scope.stageID)
			return nil
		},
	}

	addScopeFlags(cmd, &scope, true)
	cmd.Flags().StringVar(&yearLabel, "year-label", "", "timetable year label stamped on every part")
	return cmd
}

func newPartsSplitCmd() *cobra.Command {
	var (
		scope        scopeFlags
		afterSegment string
		afterIndex   int
		newID        string
	)

	cmd := &cobra.Command{
		Use:   "split <part-id>",
		Short: "Split a service part after one of its segments",
		Long:  "Splits a part after the member given by --after-segment or --after-index (exactly one).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := timetable.SplitRequest{
				VariantID:           scope.variantID,
				StageID:             scope.stageID,
				PartID:              args[0],
				SplitAfterSegmentID: optString(afterSegment),
				NewPartID:           optString(newID),
			}
			if cmd.Flags().Changed("after-index") {
				req.SplitAfterOrderIndex = &afterIndex
			}

			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			res, err := svc.SplitTrainServicePart(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Split %s: left %s, right %s\n", args[0], res.LeftPartID, res.RightPartID)
			return nil
		},
	}

	addScopeFlags(cmd, &scope, true)
	cmd.Flags().StringVar(&afterSegment, "after-segment", "", "split after this member segment id")
	cmd.Flags().IntVar(&afterIndex, "after-index", 0, "split after the member with this order index")
	cmd.Flags().StringVar(&newID, "new-id", "", "id for the new right-hand part")
	return cmd
}

func newPartsMergeCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "merge <left-part-id> <right-part-id>",
		Short: "Merge two adjacent service parts of the same train run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			res, err := svc.MergeTrainServiceParts(cmd.Context(), scope.variantID, scope.stageID, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %s into %s\n", args[1], res.MergedPartID)
			return nil
		},
	}

	addScopeFlags(cmd, &scope, true)
	return cmd
}
