package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/cortex-index/internal/indexer"
)

// CLIProgressReporter implements indexer.ProgressReporter with a progress bar.
type CLIProgressReporter struct {
	quiet    bool
	out      io.Writer
	unitBar  *progressbar.ProgressBar
	failures []string
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to stdout.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return newProgressReporter(os.Stdout, quiet)
}

func newProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{quiet: quiet, out: out}
}

func (c *CLIProgressReporter) OnUnitsStart(totalUnits int) {
	c.failures = nil
	if c.quiet {
		return
	}
	c.unitBar = progressbar.NewOptions(totalUnits,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Indexing units"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("units/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnUnitIndexed(unit string, err error) {
	if err != nil {
		c.failures = append(c.failures, fmt.Sprintf("%s: %v", filepath.Base(unit), err))
	}
	if c.quiet {
		return
	}
	if c.unitBar != nil {
		c.unitBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(stats *indexer.Stats) {
	if c.quiet {
		return
	}
	if c.unitBar != nil {
		c.unitBar.Finish()
		c.unitBar = nil
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "✓ Indexed %s units in %.1fs\n",
		formatNumber(stats.Units-stats.Failed), stats.Duration.Seconds())
	fmt.Fprintf(c.out, "  Symbols:   %s\n", formatNumber(stats.Symbols))
	fmt.Fprintf(c.out, "  Refs:      %s\n", formatNumber(stats.Refs))
	fmt.Fprintf(c.out, "  Relations: %s\n", formatNumber(stats.Relations))
	fmt.Fprintf(c.out, "  Includes:  %s files, %s edges\n",
		formatNumber(stats.IncludeNodes), formatNumber(stats.IncludeEdges))
	if stats.Failed > 0 {
		fmt.Fprintf(c.out, "✗ %d units failed:\n", stats.Failed)
		for _, f := range c.failures {
			fmt.Fprintf(c.out, "  %s\n", f)
		}
	}
}

// formatNumber formats an integer with thousands separators.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
