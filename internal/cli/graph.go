package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/ontomem/internal/graph"
)

func init() {
	neighbors := &cobra.Command{
		Use:   "neighbors <id-or-slug>",
		Short: "List records directly related to a record",
		Args:  cobra.ExactArgs(1),
		Run:   runNeighbors,
	}
	neighbors.Flags().String("direction", "both", "Edges to follow: outgoing, incoming, both")
	addSnapshotFlag(neighbors)

	traverse := &cobra.Command{
		Use:   "traverse <id-or-slug>",
		Short: "Walk the relation graph breadth-first",
		Args:  cobra.ExactArgs(1),
		Run:   runTraverse,
	}
	traverse.Flags().String("direction", "outgoing", "Edges to follow: outgoing, incoming, both")
	traverse.Flags().Int("depth", 2, "Max hops")
	addSnapshotFlag(traverse)

	path := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Shortest chain of relations between two records",
		Args:  cobra.ExactArgs(2),
		Run:   runPath,
	}
	addSnapshotFlag(path)

	RootCmd.AddCommand(neighbors, traverse, path)
}

func directionFlag(cmd *cobra.Command) graph.Direction {
	s, _ := cmd.Flags().GetString("direction")
	dir, err := graph.ParseDirection(s)
	if err != nil {
		exitErr(cmd.Name(), err)
	}
	return dir
}

func runNeighbors(cmd *cobra.Command, args []string) {
	dir := directionFlag(cmd)
	k := mustOpenKB(cmd)
	defer k.Close()

	nb, err := k.Neighbors(cmd.Context(), args[0], dir, snapshotFlag(cmd))
	if err != nil {
		exitErr("neighbors", err)
	}
	if nb == nil {
		nb = []graph.Neighbor{}
	}
	printJSON(cmd, nb)
}

func runTraverse(cmd *cobra.Command, args []string) {
	dir := directionFlag(cmd)
	depth, _ := cmd.Flags().GetInt("depth")
	k := mustOpenKB(cmd)
	defer k.Close()

	steps, err := k.Traverse(cmd.Context(), args[0], dir, depth, snapshotFlag(cmd))
	if err != nil {
		exitErr("traverse", err)
	}
	printJSON(cmd, steps)
}

func runPath(cmd *cobra.Command, args []string) {
	k := mustOpenKB(cmd)
	defer k.Close()

	path, err := k.Path(cmd.Context(), args[0], args[1], snapshotFlag(cmd))
	if err != nil {
		exitErr("path", err)
	}
	printJSON(cmd, path)
}
