package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reembed [id-or-slug]",
		Short: "Retry embedding for records",
		Long: "Compute a missing embedding for one record without re-submitting its content, " +
			"or with --missing for every record that lacks one.",
		Args: cobra.MaximumNArgs(1),
		Run:  runReEmbed,
	}

	cmd.Flags().Bool("force", false, "Re-embed even if an embedding exists")
	cmd.Flags().Bool("missing", false, "Re-embed every record without an embedding")

	RootCmd.AddCommand(cmd)
}

func runReEmbed(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	missing, _ := cmd.Flags().GetBool("missing")
	if missing == (len(args) == 1) {
		exitErr("reembed", fmt.Errorf("give exactly one of a record or --missing"))
	}

	k := mustOpenKB(cmd)
	defer k.Close()

	if missing {
		n, err := k.ReEmbedMissing(cmd.Context())
		if err != nil {
			exitErr("reembed", err)
		}
		printJSON(cmd, map[string]int{"reembedded": n})
		return
	}

	res, err := k.ReEmbed(cmd.Context(), args[0], force)
	if err != nil {
		exitErr("reembed", err)
	}
	printJSON(cmd, res)
}
