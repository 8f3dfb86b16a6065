package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"docrag/internal/adapter/llm"
	"docrag/internal/usecase"
)

var (
	askQuestion     string
	askDoc          int64
	askStream       bool
	askConversation int64
	askJSON         bool

	promptQuestion string
	promptDoc      int64
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer one question from the indexed documents",
	Long: `Retrieve the most relevant chunks, assemble a cited context and ask the
configured model for an answer.

Examples:
  docrag ask -q "What is the refund window?"
  docrag ask -q "What about sale items?" --conversation 3
  docrag ask -q "Who signs off on budgets?" --doc 2 --stream`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Show the prompt a question would send to the model",
	Long: `Run retrieval and context assembly for a question and print the resulting
generation prompt with a token estimate, without calling the model.`,
	Args: cobra.NoArgs,
	RunE: runPromptPreview,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "question (required)")
	askCmd.Flags().Int64Var(&askDoc, "doc", 0, "restrict retrieval to one document id")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
	askCmd.Flags().Int64Var(&askConversation, "conversation", 0, "answer within a stored conversation")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuestion, "query", "q", "", "question (required)")
	promptCmd.Flags().Int64Var(&promptDoc, "doc", 0, "restrict retrieval to one document id")
	promptCmd.MarkFlagRequired("query")
}

// optionalID turns an int64 flag into an option that is set only when the
// flag was given; 0 is a valid id.
func optionalID(cmd *cobra.Command, name string, value int64) mo.Option[int64] {
	if cmd.Flags().Changed(name) {
		return mo.Some(value)
	}
	return mo.None[int64]()
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	docID := optionalID(cmd, "doc", askDoc)

	var result *usecase.QueryResult
	if convID, ok := optionalID(cmd, "conversation", askConversation).Get(); ok {
		result, err = a.convs.QueryWithHistory(ctx, convID, askQuestion, docID)
	} else {
		result, err = a.engine.Query(ctx, usecase.QueryParams{
			Question:   askQuestion,
			DocumentID: docID,
			Stream:     askStream && !askJSON,
		})
	}
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(struct {
			Answer    string `json:"answer"`
			Citations []int  `json:"citations"`
			Chunks    int    `json:"chunks"`
		}{result.Answer, result.Citations, len(result.Chunks)}, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	if result.Stream != nil {
		defer result.Stream.Close()
		for result.Stream.Next() {
			fmt.Fprint(out, result.Stream.Text())
		}
		fmt.Fprintln(out)
		if err := result.Stream.Err(); err != nil {
			return fmt.Errorf("stream interrupted: %w", err)
		}
	} else {
		fmt.Fprintln(out, result.Answer)
	}
	printSources(out, result.Citations)
	return nil
}

var sourcesStyle = lipgloss.NewStyle().Faint(true)

func printSources(out io.Writer, pages []int) {
	if len(pages) == 0 {
		return
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("Page %d", p)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, sourcesStyle.Render("Sources: "+strings.Join(parts, ", ")))
}

func runPromptPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	prompt, result, ok, err := a.engine.Prepare(ctx, usecase.QueryParams{
		Question:   promptQuestion,
		DocumentID: optionalID(cmd, "doc", promptDoc),
	})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, result.Answer)
		return nil
	}

	fmt.Fprintln(out, prompt)
	fmt.Fprintln(out, strings.Repeat("-", 70))

	counter, err := llm.NewTokenCounter(a.cfg.Generation.Model)
	if err != nil {
		fmt.Fprintf(out, "Chunks: %d  Citations: %v  Tokens: ~%d (estimated)\n",
			len(result.Chunks), result.Citations, llm.EstimateTokens(prompt))
		return nil
	}
	fmt.Fprintf(out, "Chunks: %d  Citations: %v  Tokens: %d (%s)\n",
		len(result.Chunks), result.Citations, counter.CountTokens(prompt), counter.Encoding())
	return nil
}
