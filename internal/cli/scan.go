package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/filter"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List records matching a filter",
		Long: "List records visible at a snapshot. --where takes a CEL expression over id, slug, title, " +
			"content, record_kind, semantic_type, status, tags, meta, version, created_at and modified_at.",
		Run: runScan,
	}

	cmd.Flags().StringP("type", "t", "", "Filter by semantic types (comma-separated)")
	cmd.Flags().String("status", "", "Filter by statuses (comma-separated)")
	cmd.Flags().String("kind", "", "Filter by record kinds (comma-separated)")
	cmd.Flags().String("tags", "", "Require all tags (comma-separated)")
	cmd.Flags().StringToString("meta", nil, "Require custom metadata key=value")
	cmd.Flags().StringP("where", "w", "", "CEL predicate")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")
	cmd.Flags().Bool("ids-only", false, "Only output id and slug pairs")
	addSnapshotFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runScan(cmd *cobra.Command, args []string) {
	f, err := scanFilter(cmd)
	if err != nil {
		exitErr("scan", err)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	k := mustOpenKB(cmd)
	defer k.Close()

	recs := []model.Record{}
	for rec, err := range k.Scan(cmd.Context(), f, snapshotFlag(cmd)) {
		if err != nil {
			exitErr("scan", err)
		}
		recs = append(recs, rec)
		if limit > 0 && len(recs) >= limit {
			break
		}
	}

	if idsOnly {
		type ref struct {
			ID   string `json:"id"`
			Slug string `json:"slug"`
		}
		refs := make([]ref, len(recs))
		for i, r := range recs {
			refs[i] = ref{ID: r.ID, Slug: r.Slug}
		}
		printJSON(cmd, refs)
		return
	}
	printJSON(cmd, recs)
}

func scanFilter(cmd *cobra.Command) (store.Filter, error) {
	var f store.Filter
	types, _ := cmd.Flags().GetString("type")
	for _, t := range splitList(types) {
		f.Types = append(f.Types, model.SemanticType(t))
	}
	if cmd.Flags().Lookup("status") != nil {
		statuses, _ := cmd.Flags().GetString("status")
		for _, s := range splitList(statuses) {
			f.Statuses = append(f.Statuses, model.Status(s))
		}
	}
	if cmd.Flags().Lookup("kind") != nil {
		kinds, _ := cmd.Flags().GetString("kind")
		for _, k := range splitList(kinds) {
			f.Kinds = append(f.Kinds, model.RecordKind(k))
		}
	}
	tags, _ := cmd.Flags().GetString("tags")
	f.Tags = splitList(tags)
	if cmd.Flags().Lookup("meta") != nil {
		f.Meta, _ = cmd.Flags().GetStringToString("meta")
	}
	if cmd.Flags().Lookup("where") != nil {
		where, _ := cmd.Flags().GetString("where")
		if strings.TrimSpace(where) != "" {
			pred, err := filter.Compile(where)
			if err != nil {
				return f, err
			}
			f.Where = pred
		}
	}
	return f, nil
}
