package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var (
	exportFormat string
	exportOutput string
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List stored conversations",
	Args:  cobra.NoArgs,
	RunE:  runConversations,
}

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation",
	Long: `Write a conversation with its citations as JSON, Markdown or HTML.

Examples:
  docrag export 3 --format markdown
  docrag export 3 --format html -o chat.html`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", usecase.FormatMarkdown, "json, markdown or html")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	convs, err := a.convs.List(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-40s %-8s %s\n", "ID", "TITLE", "DOC", "UPDATED")
	for _, c := range convs {
		doc := "-"
		if c.DocumentID != nil {
			doc = strconv.FormatInt(*c.DocumentID, 10)
		}
		fmt.Fprintf(out, "%-6d %-40s %-8s %s\n", c.ID, c.Title, doc, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", args[0])
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := a.exports.Export(ctx, id, exportFormat, w); err != nil {
		return err
	}
	if exportOutput != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Conversation %d written to %s\n", id, exportOutput)
	}
	return nil
}
