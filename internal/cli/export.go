package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as JSON",
		Long:  "Export the records visible at a snapshot as a JSON array. Filter by semantic type with -t.",
		Run:   runExport,
	}

	cmd.Flags().StringP("type", "t", "", "Filter by semantic type")
	addSnapshotFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")

	k := mustOpenKB(cmd)
	defer k.Close()

	recs, err := k.Export(cmd.Context(), snapshotFlag(cmd), model.SemanticType(typ))
	if err != nil {
		exitErr("export", err)
	}
	if recs == nil {
		recs = []model.Record{}
	}
	printJSON(cmd, recs)
}
