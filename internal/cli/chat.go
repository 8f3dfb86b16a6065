package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"docrag/internal/domain"
	"docrag/internal/tui"
	"docrag/internal/usecase"
)

var (
	chatDoc          int64
	chatConversation int64
	chatPlain        bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents",
	Long: `Start or resume a conversation. Follow-up questions are answered with the
last turns of the conversation taken into account.

Examples:
  docrag chat                     # New conversation over all documents
  docrag chat --doc 2             # New conversation about one document
  docrag chat --conversation 5    # Resume a conversation
  docrag chat --plain             # Line-based prompt instead of the full-screen UI`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Int64Var(&chatDoc, "doc", 0, "restrict retrieval to one document id")
	chatCmd.Flags().Int64Var(&chatConversation, "conversation", 0, "resume a stored conversation")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "line-based prompt")
}

// conversationAsker routes chat questions through one stored conversation.
type conversationAsker struct {
	convs *usecase.ConversationUseCase
	id    int64
	doc   mo.Option[int64]
}

func (c conversationAsker) Ask(ctx context.Context, question string) (*usecase.QueryResult, error) {
	return c.convs.QueryWithHistory(ctx, c.id, question, c.doc)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	doc := optionalID(cmd, "doc", chatDoc)

	var (
		conv    domain.Conversation
		history []domain.Turn
	)
	if id, ok := optionalID(cmd, "conversation", chatConversation).Get(); ok {
		conv, err = a.stores.History.GetConversation(ctx, id)
		if err != nil {
			return err
		}
		history, err = a.convs.Turns(ctx, id)
		if err != nil {
			return err
		}
		if doc.IsAbsent() && conv.DocumentID != nil {
			doc = mo.Some(*conv.DocumentID)
		}
	} else {
		conv, err = a.convs.Start(ctx, "Chat "+time.Now().Format("2006-01-02 15:04"), doc)
		if err != nil {
			return err
		}
	}

	asker := conversationAsker{convs: a.convs, id: conv.ID, doc: doc}
	if chatPlain {
		return plainChat(cmd, asker, conv)
	}

	title := fmt.Sprintf("docrag · %s (#%d)", conv.Title, conv.ID)
	_, err = tea.NewProgram(tui.New(ctx, asker, title, history), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func plainChat(cmd *cobra.Command, asker tui.Asker, conv domain.Conversation) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Conversation #%d. Type 'exit' to quit.\n", conv.ID)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		result, err := asker.Ask(ctx, q)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, result.Answer)
		printSources(out, result.Citations)
	}
}
