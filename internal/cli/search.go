package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/search"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search records",
		Long: "Rank records against a query. lexical matches terms in title, tags and content; " +
			"semantic ranks by embedding similarity; hybrid runs both and needs an explicit --fusion rule.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().StringP("mode", "m", "lexical", "Mode: lexical, semantic, hybrid")
	cmd.Flags().String("fusion", "", "Fusion rule for hybrid mode: rrf")
	cmd.Flags().IntP("limit", "k", 0, "Max results (default: search.default_k)")
	cmd.Flags().StringP("type", "t", "", "Filter by semantic types (comma-separated)")
	cmd.Flags().String("tags", "", "Require all tags (comma-separated)")
	cmd.Flags().StringP("where", "w", "", "CEL predicate")
	cmd.Flags().Bool("include-archived", false, "Also rank archived and deprecated records")
	addSnapshotFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	mode, _ := cmd.Flags().GetString("mode")
	fusion, _ := cmd.Flags().GetString("fusion")
	limit, _ := cmd.Flags().GetInt("limit")
	archived, _ := cmd.Flags().GetBool("include-archived")
	f, err := scanFilter(cmd)
	if err != nil {
		exitErr("search", err)
	}

	k := mustOpenKB(cmd)
	defer k.Close()

	hits, err := k.Search(cmd.Context(), snapshotFlag(cmd), search.Query{
		Text:            strings.Join(args, " "),
		Mode:            search.Mode(mode),
		Fusion:          search.Fusion(fusion),
		K:               limit,
		Filter:          f,
		IncludeArchived: archived,
	})
	if err != nil {
		exitErr("search", err)
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	printJSON(cmd, hits)
}
