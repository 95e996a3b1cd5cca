package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/model"
)

func init() {
	rm := &cobra.Command{
		Use:   "rm <id-or-slug>",
		Short: "Archive a record",
		Long: "Archive a record. Nothing is deleted: a new version with status archived (or deprecated) " +
			"is written, and earlier snapshots still show the record as it was.",
		Args: cobra.ExactArgs(1),
		Run:  runRm,
	}
	rm.Flags().Bool("deprecate", false, "Mark deprecated instead of archived")
	RootCmd.AddCommand(rm)

	status := &cobra.Command{
		Use:   "status <id-or-slug> <draft|active|archived|deprecated>",
		Short: "Change a record's status",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			setStatus(cmd, args[0], model.Status(args[1]))
		},
	}
	RootCmd.AddCommand(status)
}

func runRm(cmd *cobra.Command, args []string) {
	deprecate, _ := cmd.Flags().GetBool("deprecate")
	status := model.StatusArchived
	if deprecate {
		status = model.StatusDeprecated
	}
	setStatus(cmd, args[0], status)
}

func setStatus(cmd *cobra.Command, ref string, status model.Status) {
	k := mustOpenKB(cmd)
	defer k.Close()

	res, err := k.SetStatus(cmd.Context(), ref, status)
	if err != nil {
		exitErr("status", err)
	}
	printJSON(cmd, res)
}
