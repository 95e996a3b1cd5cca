package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/commit"
	"github.com/rcliao/ontomem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link <from> <to>",
		Short: "Create or remove a relation between records",
		Long:  "Add or remove one relation on the source record, written as a new version of it.",
		Args:  cobra.ExactArgs(2),
		Run:   runLink,
	}

	cmd.Flags().StringP("rel", "r", "", "Relation: part-of, implements, references, contradicts, supersedes, alternative-to")
	cmd.Flags().Bool("rm", false, "Remove the relation (all kinds when --rel is empty)")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	rel, _ := cmd.Flags().GetString("rel")
	rm, _ := cmd.Flags().GetBool("rm")

	k := mustOpenKB(cmd)
	defer k.Close()

	var (
		res *commit.Result
		err error
	)
	if rm {
		res, err = k.Unlink(cmd.Context(), args[0], args[1], model.RelationKind(rel))
	} else {
		res, err = k.Link(cmd.Context(), args[0], args[1], model.RelationKind(rel))
	}
	if err != nil {
		exitErr("link", err)
	}
	printJSON(cmd, res)
}
