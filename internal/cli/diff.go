package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "diff <id-or-slug>",
		Short: "Show how a record changed between two snapshots",
		Args:  cobra.ExactArgs(1),
		Run:   runDiff,
	}

	cmd.Flags().Int64("from", -1, "Older snapshot (default: the one before --to)")
	cmd.Flags().Int64("to", store.Latest, "Newer snapshot (default: latest)")

	RootCmd.AddCommand(cmd)
}

func runDiff(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetInt64("from")
	to, _ := cmd.Flags().GetInt64("to")

	k := mustOpenKB(cmd)
	defer k.Close()

	if to == store.Latest {
		latest, err := k.Store().LatestSnapshot(cmd.Context())
		if err != nil {
			exitErr("diff", err)
		}
		to = latest
	}
	if from < 0 {
		from = max(to-1, 0)
	}

	d, err := k.Diff(cmd.Context(), args[0], from, to)
	if err != nil {
		exitErr("diff", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), d)
}
