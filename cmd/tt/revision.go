package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRevisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Manage timetable revisions",
	}

	cmd.AddCommand(newRevisionListCmd())
	cmd.AddCommand(newRevisionCreateCmd())
	cmd.AddCommand(newRevisionShowCmd())
	cmd.AddCommand(newRevisionRestoreCmd())
	return cmd
}

func newRevisionListCmd() *cobra.Command {
	var scope scopeFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List revisions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			revs, err := svc.ListRevisions(cmd.Context(), scope.variantID, scope.stageID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(revs) == 0 {
				fmt.Fprintln(out, "No revisions found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tBY\tRUNS\tSEGMENTS\tMESSAGE")
			for _, r := range revs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Format(timeLayout), deref(r.CreatedBy),
					r.TrainRunCount, r.TrainSegmentCount, deref(r.Message))
			}
			return w.Flush()
		},
	}

	addScopeFlags(cmd, &scope, true)
	return cmd
}

func newRevisionCreateCmd() *cobra.Command {
	var (
		scope     scopeFlags
		message   string
		createdBy string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture the current snapshot as a revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(scope.configPath)
			if err != nil {
				return err
			}
			rev, err := svc.CreateRevision(cmd.Context(), scope.variantID, scope.stageID, optString(message), optString(createdBy))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created revision %s (%d train runs, %d train segments)\n",
				rev.ID, rev.TrainRunCount, rev.TrainSegmentCount)
			return nil
		},
	}

	addScopeFlags(cmd, &scope, true)
	cmd.Flags().StringVarP(&message, "message", "m", "", "revision message")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "author recorded on the revision")
	return cmd
}

func newRevisionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <revision-id>",
		Short: "Print a revision and its captured snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			rev, snap, err := svc.GetRevision(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"revision":      rev,
				"trainRuns":     snap.TrainRuns,
				"trainSegments": snap.TrainSegments,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newRevisionRestoreCmd() *cobra.Command {
	var (
		configPath string
		message    string
		createdBy  string
	)

	cmd := &cobra.Command{
		Use:   "restore <revision-id>",
		Short: "Replay a revision onto the variant and stage it was captured from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := serviceFromConfig(configPath)
			if err != nil {
				return err
			}
			rev, err := svc.RestoreRevision(cmd.Context(), args[0], optString(message), optString(createdBy))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored revision %s\n", args[0])
			if rev != nil {
				fmt.Fprintf(out, "Captured revision %s\n", rev.ID)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&message, "message", "m", "", "message for the restore revision")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "author recorded on the restore revision")
	return cmd
}
