package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/cortex-index/internal/config"
	"github.com/mvp-joe/cortex-index/internal/indexer"
	"github.com/mvp-joe/cortex-index/internal/storage"
	"github.com/mvp-joe/cortex-index/internal/watcher"
)

var (
	quietFlag   bool
	watchFlag   bool
	checkedFlag bool
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [units...]",
	Short: "Index the project's translation units",
	Long: `Index parses every translation unit of the project and stores the results
in the index database (.cortex/index.db by default).

Units are discovered with the paths.units patterns unless given as arguments.
Each unit replaces its previous results; a unit that fails to parse is
reported without stopping the others.

Examples:
  # Index every unit of the current directory
  cortex-index index

  # Index two units with invariant checks enabled
  cortex-index index --checked src/main.c src/util.c

  # Watch for changes and reindex the affected units
  cortex-index index --watch
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and reindex affected units")
	indexCmd.Flags().BoolVar(&checkedFlag, "checked", false, "Panic on include graph invariant violations")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := commandLogger()
	root, cfg, err := loadProject()
	if err != nil {
		return err
	}
	if checkedFlag {
		cfg.Index.Checked = true
	}
	if watchFlag {
		// Affected units are found through the retained include graphs.
		cfg.Outputs.IncludeGraph = true
	}

	return indexProject(ctx, root, cfg, args, indexRun{
		logger: logger,
		quiet:  quietFlag,
		watch:  watchFlag,
	})
}

// indexRun carries the command-line settings of one index invocation.
type indexRun struct {
	logger *log.Logger
	quiet  bool
	watch  bool
}

// indexProject indexes the units of the project at root, or the given units,
// into the configured database. In watch mode it keeps re-indexing affected
// units until ctx is done.
func indexProject(ctx context.Context, root string, cfg *config.Config, units []string, run indexRun) error {
	dbPath := resolvePath(root, cfg.Storage.DBPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	writer, err := storage.NewWriter(dbPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	discovery, err := indexer.NewUnitDiscovery(root, cfg.Paths.Units, cfg.Paths.Ignore)
	if err != nil {
		return fmt.Errorf("invalid unit patterns: %w", err)
	}
	if len(units) == 0 {
		if units, err = discovery.Discover(); err != nil {
			return fmt.Errorf("failed to discover units: %w", err)
		}
	} else {
		units = resolveAll(root, units)
	}

	opts, err := indexerOptions(cfg, root, run.logger)
	if err != nil {
		return err
	}
	opts.Sink = writer
	opts.Progress = NewCLIProgressReporter(run.quiet)
	idx, err := indexer.New(opts)
	if err != nil {
		return err
	}
	defer idx.Close()

	run.logger.Debug("indexing", "root", root, "units", len(units), "db", dbPath)
	_, indexErr := idx.IndexUnits(ctx, units)
	if !run.watch {
		return indexErr
	}
	if indexErr != nil {
		run.logger.Warn("some units failed", "err", indexErr)
	}

	uw, err := indexer.NewUnitWatcher(idx, discovery, writer)
	if err != nil {
		return err
	}
	fw, err := watcher.NewFileWatcher([]string{root}, watcher.Options{
		Debounce: cfg.Watch.Debounce(),
		SkipDir:  uw.SkipDir,
		Logger:   run.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	run.logger.Info("watching for changes", "root", root)
	if err := uw.Watch(ctx, fw); err != nil {
		return err
	}
	run.logger.Info("stopped watching")
	return nil
}
