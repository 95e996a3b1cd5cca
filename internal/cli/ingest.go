package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/ingest"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest <glob>",
		Short: "Commit markdown documents matching a glob",
		Long: "Parse documents with YAML front matter and commit each as a record. The glob may use ** " +
			"(quote it so the shell leaves it alone). With --watch, keep running and re-commit documents as they change.",
		Args: cobra.ExactArgs(1),
		Run:  runIngest,
	}

	cmd.Flags().Bool("watch", false, "Watch for changes after the initial load")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	watch, _ := cmd.Flags().GetBool("watch")
	pattern := args[0]

	docs, err := ingest.LoadGlob(pattern)
	if err != nil {
		exitErr("ingest", err)
	}

	k, cfg, err := openKB(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	defer k.Close()
	logger := cfg.NewLogger(os.Stderr)

	printJSON(cmd, ingest.CommitAll(cmd.Context(), k, docs, logger))
	if !watch {
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, rel := doublestar.SplitPattern(filepath.ToSlash(pattern))
	w, err := ingest.NewWatcher(filepath.FromSlash(base), func(path string) {
		doc, err := ingest.ParseFile(path)
		if err != nil {
			logger.Warn("skipping document", "path", path, "error", err)
			return
		}
		sum := ingest.CommitAll(ctx, k, []ingest.Document{doc}, logger)
		printJSON(cmd, sum)
	}, ingest.WithPattern(rel), ingest.WithWatchLogger(logger))
	if err != nil {
		exitErr("watch", err)
	}
	if err := w.Run(ctx); err != nil {
		exitErr("watch", err)
	}
}
