package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	docsJSON  bool
	statsJSON bool
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

var removeCmd = &cobra.Command{
	Use:   "remove <document-id>",
	Short: "Remove a document from the index and the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statsCmd)
	docsCmd.Flags().BoolVar(&docsJSON, "json", false, "output as JSON")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runDocs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.stores.Documents.ListDocuments(ctx)
	if err != nil {
		return err
	}

	if docsJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents indexed.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-40s %6s %10s  %s\n", "ID", "NAME", "PAGES", "SIZE", "UPLOADED")
	for _, d := range docs {
		name := d.Name
		if !d.Processed {
			name += " (incomplete)"
		}
		fmt.Fprintf(out, "%-6d %-40s %6d %10s  %s\n",
			d.ID, name, d.PageCount, formatBytes(d.FileSize), d.UploadedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.indexer.RemoveDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to remove document %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed document %d.\n", id)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.engine.Stats(ctx)
	if err != nil {
		return err
	}
	docs, err := a.stores.Documents.ListDocuments(ctx)
	if err != nil {
		return err
	}
	chunks := 0
	for _, d := range docs {
		records, err := a.stores.Documents.ListChunks(ctx, d.ID)
		if err != nil {
			return err
		}
		chunks += len(records)
	}

	if statsJSON {
		output, _ := json.MarshalIndent(struct {
			TotalVectors int    `json:"total_vectors"`
			Dimension    int    `json:"dimension"`
			Backend      string `json:"backend"`
			Documents    int    `json:"documents"`
			Chunks       int    `json:"chunks"`
		}{stats.TotalVectors, stats.Dimension, stats.Backend, len(docs), chunks}, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	fmt.Fprintf(out, "Backend:       %s\n", stats.Backend)
	fmt.Fprintf(out, "Dimension:     %d\n", stats.Dimension)
	fmt.Fprintf(out, "Total vectors: %d\n", stats.TotalVectors)
	fmt.Fprintf(out, "Documents:     %d\n", len(docs))
	fmt.Fprintf(out, "Chunks:        %d\n", chunks)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
