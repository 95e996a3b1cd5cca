package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import records from JSON",
		Long: "Import records from JSON (file or stdin). Expects the format produced by export; " +
			"records are committed relation targets first, keeping their ids.",
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var recs []model.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		exitErr("parse json", err)
	}

	k := mustOpenKB(cmd)
	defer k.Close()

	res, err := k.Import(cmd.Context(), recs)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(cmd, res)
}
