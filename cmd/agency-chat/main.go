package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nachoal/agency-chat/chat"
	"github.com/nachoal/agency-chat/config"
	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/internal/logging"
	"github.com/nachoal/agency-chat/tui"
)

var (
	// Flags
	configPath     string
	model          string
	verbose        bool
	scope          string
	clientID       string
	accountID      string
	conversationID string
	resume         bool
	continueConv   bool
	documents      []string
	noStream       bool

	rootCmd = &cobra.Command{
		Use:   "agency-chat",
		Short: "Agency chat assistant",
		Long:  "Agency Chat - a streaming chat assistant for client and traffic work, with image generation",
		RunE:  runChat,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		RunE:  runChat,
	}

	askCmd = &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [conversation-id]",
		Short: "Delete a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored conversations",
		RunE:  runList,
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List known models and their capabilities",
		RunE:  runModels,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.agency-chat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&scope, "scope", "general", "Assistant scope: general, client or traffic")
	rootCmd.PersistentFlags().StringVar(&clientID, "client", "", "Client id for the client assistant")
	rootCmd.PersistentFlags().StringVar(&accountID, "account", "", "Ad account id for the traffic assistant")
	rootCmd.PersistentFlags().StringSliceVar(&documents, "docs", nil, "Document ids to include as context")
	rootCmd.PersistentFlags().BoolVar(&noStream, "no-stream", false, "Use the non-streaming completion endpoint")

	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().StringVar(&conversationID, "conversation", "", "Resume a stored conversation by id")
		c.Flags().BoolVarP(&resume, "resume", "r", false, "Pick a stored conversation to resume")
		c.Flags().BoolVarP(&continueConv, "continue", "c", false, "Continue the last conversation")
	}

	rootCmd.AddCommand(chatCmd, askCmd, deleteCmd, listCmd, modelsCmd)

	// Bind flags to viper
	viper.BindPFlags(rootCmd.PersistentFlags())
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Manager, error) {
	if verbose {
		os.Setenv(logging.DebugEnv, "true")
	}
	m, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	return m, nil
}

func resolveModel(m *config.Manager) string {
	if model != "" {
		return model
	}
	return m.GetDefaultModel()
}

func subject() string {
	if strings.EqualFold(scope, string(conversation.ScopeTraffic)) {
		return accountID
	}
	return clientID
}

func runChat(cmd *cobra.Command, args []string) error {
	cm, err := loadConfig()
	if err != nil {
		return err
	}

	logFile, err := tuiLogFile()
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	ctx := cmd.Context()
	a, err := newApp(ctx, cm.Config(), logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	selected := resolveModel(cm)
	if err := a.connectLLM(selected); err != nil {
		return err
	}
	if model != "" && model != cm.GetDefaultModel() {
		if err := cm.SetDefaults(model); err != nil {
			a.logger.WithError(err).Warn("failed to save default model")
		}
	}

	// Handle continue/resume flags
	switch {
	case conversationID != "":
	case continueConv:
		id, err := lastConversation(ctx, a)
		if err != nil {
			return err
		}
		conversationID = id
	case resume:
		id, err := pickConversation(ctx, a)
		if err != nil {
			return err
		}
		conversationID = id
	}

	bridge := tui.NewBridge()
	session, err := a.newSession(ctx, sessionParams{
		model:          selected,
		scope:          scope,
		subjectID:      subject(),
		conversationID: conversationID,
		documents:      documents,
		streaming:      !noStream,
		observer:       bridge.Observe,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	title := scope
	if s := subject(); s != "" {
		title += ": " + s
	}

	p := tea.NewProgram(tui.NewChat(session, bridge, title), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func pickConversation(ctx context.Context, a *app) (string, error) {
	lister, ok := a.store.(conversation.Lister)
	if !ok {
		return "", fmt.Errorf("the %s store cannot list conversations", a.cfg.Store.Type)
	}
	summaries, err := lister.List(ctx, a.cfg.OwnerID)
	if err != nil {
		return "", fmt.Errorf("failed to list conversations: %w", err)
	}

	picker := tui.NewConversationPicker(summaries)
	if _, err := tea.NewProgram(picker).Run(); err != nil {
		return "", fmt.Errorf("error running picker: %w", err)
	}
	return picker.SelectedID, nil
}

// lastFinder is implemented by the file store
type lastFinder interface {
	Last(ctx context.Context) (*conversation.Conversation, error)
}

func lastConversation(ctx context.Context, a *app) (string, error) {
	finder, ok := a.store.(lastFinder)
	if !ok {
		return "", fmt.Errorf("the %s store does not track the last conversation", a.cfg.Store.Type)
	}
	conv, err := finder.Last(ctx)
	if errors.Is(err, conversation.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load last conversation: %w", err)
	}
	return conv.ID, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cm, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cm.Config(), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	selected := resolveModel(cm)
	if err := a.connectLLM(selected); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	streamed := false
	session, err := a.newSession(ctx, sessionParams{
		model:     selected,
		scope:     scope,
		subjectID: subject(),
		documents: documents,
		streaming: !noStream,
		observer: func(u chat.Update) {
			if u.Kind == chat.UpdateContent {
				streamed = true
				fmt.Fprint(out, u.Text)
			}
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()

	reply, err := session.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	switch {
	case reply.Providers != nil:
		fmt.Fprintln(out, reply.Message.Content)
		fmt.Fprintln(out, "\nRun the chat command to pick a provider.")
	case reply.Message.ImageURL != "":
		fmt.Fprintf(out, "%s\n%s\n", reply.Message.Content, reply.Message.ImageURL)
	case !streamed:
		fmt.Fprintln(out, reply.Message.Content)
	default:
		fmt.Fprintln(out)
	}

	if reply.Truncated {
		fmt.Fprintln(os.Stderr, "[answer was cut short]")
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[conversation: %s]\n", session.Conversation().ID)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	cm, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cm.Config(), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", args[0])
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cm, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cm.Config(), os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	lister, ok := a.store.(conversation.Lister)
	if !ok {
		return fmt.Errorf("the %s store cannot list conversations", cm.Config().Store.Type)
	}
	summaries, err := lister.List(cmd.Context(), cm.Config().OwnerID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, s := range summaries {
		fmt.Fprintf(out, "%s  %s  %-8s %3d  %s\n",
			s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), s.Scope, s.Messages, s.Title)
	}
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	cm, err := loadConfig()
	if err != nil {
		return err
	}
	table := cm.Config().CapabilityTable()

	models := table.Models()
	sort.Strings(models)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Known models:")
	for _, id := range models {
		c, _ := table.Get(id)
		var flags []string
		if c.Reasoning {
			flags = append(flags, "reasoning")
		}
		if c.ImageGeneration {
			flags = append(flags, "image")
		}
		fmt.Fprintf(out, "  %-22s history %3d  %s\n", id, c.HistoryLength, strings.Join(flags, ", "))
	}
	return nil
}
