package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/ingest"
	"github.com/rcliao/ontomem/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a record",
		Long: "Store a record as a new snapshot. Content can be a positional arg or piped via stdin; " +
			"--file reads a markdown document with YAML front matter. Flags override front matter fields.",
		Run: runPut,
	}

	cmd.Flags().String("file", "", "Markdown document with front matter ('-' for stdin)")
	cmd.Flags().String("id", "", "Record id (update an existing record)")
	cmd.Flags().StringP("type", "t", "", "Semantic type")
	cmd.Flags().String("kind", "", "Record kind: document, collection_header, dataset_header (default document)")
	cmd.Flags().String("title", "", "Title")
	cmd.Flags().String("slug", "", "Slug (default: derived from title)")
	cmd.Flags().String("tags", "", "Comma-separated tags")
	cmd.Flags().String("status", "", "Status: draft, active, archived, deprecated (default active)")
	cmd.Flags().StringArray("rel", nil, "Relation as kind:target, repeatable")
	cmd.Flags().String("meta", "", "JSON custom metadata")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")

	var cand model.Candidate
	switch {
	case file == "-":
		cand = parseDoc(readStdin())
	case file != "":
		doc, err := ingest.ParseFile(file)
		if err != nil {
			exitErr("read document", err)
		}
		cand = doc.Candidate
	case len(args) > 0:
		cand.Content = strings.Join(args, " ")
	default:
		cand.Content = string(readStdin())
	}
	if err := applyPutFlags(cmd, &cand); err != nil {
		exitErr("put", err)
	}
	cand.Content = strings.TrimSpace(cand.Content)

	k := mustOpenKB(cmd)
	defer k.Close()

	res, err := k.Commit(cmd.Context(), cand)
	if err != nil {
		exitErr("put", err)
	}
	printJSON(cmd, res)
}

func parseDoc(data []byte) model.Candidate {
	c, err := ingest.Parse(data)
	if err != nil {
		exitErr("parse document", err)
	}
	return c
}

func readStdin() []byte {
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	return b
}

func applyPutFlags(cmd *cobra.Command, c *model.Candidate) error {
	str := func(name string, dst *string) {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			*dst = v
		}
	}
	str("id", &c.ID)
	str("type", &c.Type)
	str("kind", &c.Kind)
	str("title", &c.Title)
	str("slug", &c.Slug)
	str("status", &c.Status)
	if c.Kind == "" {
		c.Kind = string(model.KindDocument)
	}

	if tags, _ := cmd.Flags().GetString("tags"); tags != "" {
		c.Tags = splitList(tags)
	}
	rels, _ := cmd.Flags().GetStringArray("rel")
	for _, r := range rels {
		kind, target, ok := strings.Cut(r, ":")
		if !ok {
			return fmt.Errorf("relation %q must be kind:target", r)
		}
		c.Relations = append(c.Relations, model.RelationRef{Target: target, Kind: kind})
	}
	if meta, _ := cmd.Flags().GetString("meta"); meta != "" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return fmt.Errorf("parse --meta: %w", err)
		}
	}
	return nil
}
