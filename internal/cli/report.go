package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Graph analytics report",
		Long: "Counts by type and status, hubs, orphans, clusters, broken and stale references, " +
			"and conflicting relations for one snapshot.",
		Run: runReport,
	}
	addSnapshotFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runReport(cmd *cobra.Command, args []string) {
	k := mustOpenKB(cmd)
	defer k.Close()

	r, err := k.Report(cmd.Context(), snapshotFlag(cmd))
	if err != nil {
		exitErr("report", err)
	}
	printJSON(cmd, r)
}
