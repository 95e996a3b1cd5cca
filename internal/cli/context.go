package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/kb"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [description]",
		Short: "Assemble relevant records for a task",
		Long:  "Search and score records, then greedily pack them into a token budget.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().StringP("type", "t", "", "Filter by semantic types (comma-separated)")
	cmd.Flags().String("tags", "", "Require all tags (comma-separated)")
	cmd.Flags().IntP("budget", "b", 4000, "Max tokens in output")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	f, err := scanFilter(cmd)
	if err != nil {
		exitErr("context", err)
	}

	k := mustOpenKB(cmd)
	defer k.Close()

	result, err := k.Context(cmd.Context(), kb.ContextParams{
		Query:  strings.Join(args, " "),
		Filter: f,
		Budget: budget,
	})
	if err != nil {
		exitErr("context", err)
	}
	printJSON(cmd, result)
}
