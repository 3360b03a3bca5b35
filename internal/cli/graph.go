package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cortex-index/internal/includegraph"
	"github.com/mvp-joe/cortex-index/internal/storage"
	"github.com/mvp-joe/cortex-index/internal/uri"
)

var (
	graphFormatFlag string
	graphCyclesFlag bool
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <unit>",
	Short: "Print the stored include graph of a unit",
	Long: `Graph prints the include graph recorded for a translation unit by the last
index run.

Formats:
  text  one line per file followed by its direct includes (default)
  json  the graph's nodes with digests, flags and direct includes
  dot   Graphviz source

Examples:
  cortex-index graph src/main.c
  cortex-index graph --format dot src/main.c | dot -Tsvg > main.svg
  cortex-index graph --cycles src/main.c
`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVarP(&graphFormatFlag, "format", "f", "text", "Output format: text, json or dot")
	graphCmd.Flags().BoolVar(&graphCyclesFlag, "cycles", false, "Print include cycles instead of the graph")
}

func runGraph(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadProject()
	if err != nil {
		return err
	}

	dbPath := resolvePath(root, cfg.Storage.DBPath)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no index at %s, run 'cortex-index index' first", dbPath)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	g, err := loadUnitGraph(storage.NewReader(db), resolvePath(root, args[0]))
	if err != nil {
		return err
	}
	if graphCyclesFlag {
		return writeCycles(cmd.OutOrStdout(), g)
	}
	return writeGraph(cmd.OutOrStdout(), g, graphFormatFlag)
}

// loadUnitGraph reads the stored include graph of the unit at path.
func loadUnitGraph(r *storage.Reader, path string) (*includegraph.Graph, error) {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	mainURI, ok := uri.FromPath(path)
	if !ok {
		return nil, fmt.Errorf("no uri for %s", path)
	}
	unit, found, err := r.UnitByURI(mainURI)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("unit %s is not indexed", path)
	}
	return r.IncludeGraph(unit.ID)
}

// writeGraph writes g in format.
func writeGraph(w io.Writer, g *includegraph.Graph, format string) error {
	switch strings.ToLower(format) {
	case "text", "":
		return writeGraphText(w, g)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	case "dot":
		return g.WriteDOT(w)
	}
	return fmt.Errorf("unknown format %q (want text, json or dot)", format)
}

func writeGraphText(w io.Writer, g *includegraph.Graph) error {
	for _, n := range g.Nodes() {
		marker := ""
		switch {
		case n.IsTU():
			marker = " [unit]"
		case !n.Populated:
			marker = " [unresolved]"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", n.URI, marker); err != nil {
			return err
		}
		for _, inc := range n.DirectIncludes {
			if _, err := fmt.Fprintf(w, "  -> %s\n", inc); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d files, %d edges\n", g.Len(), g.EdgeCount())
	return err
}

func writeCycles(w io.Writer, g *includegraph.Graph) error {
	cycles, err := g.Cycles()
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		_, err := fmt.Fprintln(w, "no include cycles")
		return err
	}
	for i, c := range cycles {
		if _, err := fmt.Fprintf(w, "cycle %d: %s\n", i+1, strings.Join(c, ", ")); err != nil {
			return err
		}
	}
	return nil
}
