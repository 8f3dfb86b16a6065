package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/store"
	"docrag/internal/usecase"
)

var reindexForce bool

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index documents for question answering",
	Long: `Load, chunk and embed documents under the given paths (files or directories).
Documents already indexed and unchanged since are skipped; changed ones are replaced.

Examples:
  docrag index .                    # Index the project directory
  docrag index manuals/ faq.md      # Index specific paths`,
	RunE: runIndex,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-ingest every known document",
	Long: `Remove and re-ingest every indexed document whose file still exists.
Use --force after changing chunking or embedding settings: it discards the
vector index first so it can be rebuilt with the new dimension.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "discard the vector index and rebuild it")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	paths := []string{GetRootDir()}
	if len(args) > 0 {
		paths = paths[:0]
		for _, a := range args {
			p, err := filepath.Abs(a)
			if err != nil {
				return fmt.Errorf("invalid path: %w", err)
			}
			paths = append(paths, p)
		}
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	// Check for schema migration or rebuild
	if bs := a.stores.Bolt; bs != nil {
		migration, err := bs.CheckMigration(a.cfg)
		if err != nil {
			return fmt.Errorf("failed to check migration: %w", err)
		}
		if migration.NeedsRebuild {
			return fmt.Errorf("index rebuild required (%s): run 'docrag reindex --force'", migration.Reason)
		}
		if migration.NeedsMigration {
			fmt.Fprintf(out, "Running schema migration: %s\n", migration.Reason)
			if err := bs.Migrate(a.cfg); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
	}

	fmt.Fprintf(out, "Scanning %d path(s)...\n", len(paths))
	result, err := a.indexer.Index(ctx, paths, newProgress(cmd.ErrOrStderr(), "Indexing"))
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printIndexResult(out, result)
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := GetConfig()

	if reindexForce {
		fmt.Fprintln(out, "Discarding vector index...")
		if err := store.ResetIndex(ctx, cfg, GetRootDir()); err != nil {
			return err
		}
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.stores.Documents.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents to reindex.")
		return nil
	}

	result, err := a.indexer.Reindex(ctx, docs, newProgress(cmd.ErrOrStderr(), "Reindexing"))
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	if bs := a.stores.Bolt; bs != nil {
		if err := bs.Migrate(cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	printIndexResult(out, result)
	fmt.Fprintf(out, "\nIndex stored at: %s\n", config.ResolvePath(GetRootDir(), cfg.Index.Dir))
	return nil
}

func printIndexResult(out io.Writer, result *usecase.IndexResult) {
	fmt.Fprintf(out, "\nIndexing complete:\n")
	fmt.Fprintf(out, "  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Fprintf(out, "  Files skipped:  %d (unchanged)\n", result.FilesSkipped)
	fmt.Fprintf(out, "  Chunks created: %d\n", result.ChunksCreated)

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}

// newProgress returns a progress callback that draws a bar with an ETA once
// the total is known.
func newProgress(w io.Writer, label string) func(processed, total int, currentFile string) {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(processed, total int, currentFile string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s ETA: %s", label, filepath.Base(currentFile), formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
