package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	snapshots := &cobra.Command{
		Use:   "snapshots",
		Short: "List retained snapshots",
		Run:   runSnapshots,
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop all but the newest snapshots",
		Long:  "Keep the newest N snapshots. Versions only visible in dropped snapshots are deleted.",
		Run:   runPrune,
	}
	prune.Flags().Int("keep", 0, "Snapshots to keep (required, at least 1)")
	prune.MarkFlagRequired("keep")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  "Counts of records, versions, snapshots and relations, per type and status, plus the database size.",
		Run:   runStats,
	}

	RootCmd.AddCommand(snapshots, prune, stats)
}

func runSnapshots(cmd *cobra.Command, args []string) {
	k := mustOpenKB(cmd)
	defer k.Close()

	rows, err := k.Store().Snapshots(cmd.Context())
	if err != nil {
		exitErr("list snapshots", err)
	}
	printJSON(cmd, rows)
}

func runPrune(cmd *cobra.Command, args []string) {
	keep, _ := cmd.Flags().GetInt("keep")
	k := mustOpenKB(cmd)
	defer k.Close()

	res, err := k.Prune(cmd.Context(), keep)
	if err != nil {
		exitErr("prune", err)
	}
	printJSON(cmd, res)
}

func runStats(cmd *cobra.Command, args []string) {
	k := mustOpenKB(cmd)
	defer k.Close()

	stats, err := k.Store().Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(cmd, stats)
}
