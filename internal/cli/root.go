// Package cli implements the ontomem CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/config"
	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/kb"
	"github.com/rcliao/ontomem/internal/store"
)

var (
	dbPath     string
	configPath string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "ontomem",
	Short: "Versioned ontological memory for agents",
	Long: "A knowledge store of typed, linked records. Every write creates a snapshot; " +
		"reads, search and graph analytics can target any retained snapshot. SQLite-backed, single binary.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: db_path from config, $ONTOMEM_DB or ~/.ontomem/knowledge.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ontomem.yaml in ., $XDG_CONFIG_HOME/ontomem or ~/.config/ontomem)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or compact")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func openKB(cmd *cobra.Command) (*kb.KB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.NewLogger(os.Stderr)

	e, err := embedding.NewFromConfig(cfg.EmbeddingProvider())
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.KBOptions(e, logger)
	if err != nil {
		return nil, nil, err
	}
	k, err := kb.Open(cmd.Context(), opts)
	if err != nil {
		return nil, nil, err
	}
	return k, cfg, nil
}

func mustOpenKB(cmd *cobra.Command) *kb.KB {
	k, _, err := openKB(cmd)
	if err != nil {
		exitErr("open store", err)
	}
	return k
}

func addSnapshotFlag(cmd *cobra.Command) {
	cmd.Flags().Int64("at", store.Latest, "Snapshot to read (default: latest)")
}

func snapshotFlag(cmd *cobra.Command) int64 {
	at, _ := cmd.Flags().GetInt64("at")
	return at
}

func splitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printJSON(cmd *cobra.Command, v any) {
	var b []byte
	if formatFlag == "compact" {
		b, _ = json.Marshal(v)
	} else {
		b, _ = json.MarshalIndent(v, "", "  ")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
