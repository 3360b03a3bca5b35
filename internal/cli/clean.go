package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the index database to force a full reindex",
	Long: `Clean removes the index database (storage.db_path, .cortex/index.db by
default) together with its SQLite journal files.

The configuration file (.cortex/index.yml) is preserved.

Examples:
  cortex-index clean
  cortex-index clean --quiet
`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

func runClean(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cleanQuietFlag {
		out = io.Discard
	}
	return cleanDatabase(out, resolvePath(root, cfg.Storage.DBPath))
}

// cleanDatabase removes the database at dbPath and its -wal and -shm files.
func cleanDatabase(out io.Writer, dbPath string) error {
	info, err := os.Stat(dbPath)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "No index found for this project")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat index: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}

	fmt.Fprintf(out, "✓ Removed %s (~%.1f MB)\n", dbPath, sizeMB)
	fmt.Fprintln(out, "Next 'cortex-index index' will reindex every unit")
	return nil
}
