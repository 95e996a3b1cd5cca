package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id-or-slug>",
		Short: "Retrieve a record",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().Bool("history", false, "Return all retained versions (newest first)")
	addSnapshotFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetBool("history")

	k := mustOpenKB(cmd)
	defer k.Close()

	rec, err := k.Get(cmd.Context(), args[0], snapshotFlag(cmd))
	if err != nil {
		exitErr("get", err)
	}
	if !history {
		printJSON(cmd, rec)
		return
	}

	versions, err := k.Store().History(cmd.Context(), rec.ID)
	if err != nil {
		exitErr("history", err)
	}
	printJSON(cmd, versions)
}
