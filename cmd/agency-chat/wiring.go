package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/supabase-community/supabase-go"

	"github.com/nachoal/agency-chat/capability"
	"github.com/nachoal/agency-chat/chat"
	"github.com/nachoal/agency-chat/config"
	"github.com/nachoal/agency-chat/conversation"
	"github.com/nachoal/agency-chat/conversation/drivers"
	"github.com/nachoal/agency-chat/feedback"
	"github.com/nachoal/agency-chat/imagegen"
	"github.com/nachoal/agency-chat/internal/database"
	"github.com/nachoal/agency-chat/internal/logging"
	"github.com/nachoal/agency-chat/llm"
	"github.com/nachoal/agency-chat/llm/openai"
	"github.com/nachoal/agency-chat/workspace"
)

const capabilityCacheTTL = 10 * time.Minute

// app holds the collaborators shared by every command
type app struct {
	cfg    *config.Config
	logger *logrus.Logger

	store     conversation.Store
	caps      capability.Lookup
	llm       llm.Client
	images    []imagegen.Provider
	recorder  feedback.Recorder
	workspace workspace.Repository

	closers []func() error
}

// newApp builds the collaborators from configuration. logOut receives the
// log stream; the TUI passes a file so the screen stays clean.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{
		cfg: cfg,
		logger: logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: logOut,
		}),
		caps: capability.NewCached(cfg.CapabilityTable(), capabilityCacheTTL),
	}

	var (
		sb *supabase.Client
		db *sqlx.DB
	)
	if cfg.Supabase.URL != "" && cfg.Supabase.Key != "" {
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		sb = client
	}

	storeType := drivers.StoreType(strings.ToLower(cfg.Store.Type))
	opts := []drivers.StoreOption{drivers.WithDir(cfg.Store.Dir), drivers.WithTable(cfg.Store.Table)}

	switch storeType {
	case drivers.StoreTypeRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		opts = append(opts, drivers.WithRedisClient(rdb), drivers.WithRedisTTL(cfg.Store.RedisTTL))

	case drivers.StoreTypePostgres:
		if err := database.Migrate(cfg.Store.PostgresDSN); err != nil {
			return nil, err
		}
		conn, err := database.Connect(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		// the store owns the connection and closes it
		db = conn
		opts = append(opts, drivers.WithDB(db))

	case drivers.StoreTypeSupabase:
		opts = append(opts, drivers.WithSupabaseClient(sb))
	}

	store, err := drivers.NewStore(storeType, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create %s store: %w", storeType, err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	switch {
	case sb != nil:
		a.recorder = feedback.NewSupabaseRecorder(sb)
		a.workspace = workspace.NewSupabaseRepository(sb)
	case db != nil:
		a.recorder = feedback.NewSQLRecorder(db)
	default:
		a.recorder = feedback.LogRecorder{Logger: a.logger}
	}
	if a.workspace == nil {
		a.workspace = workspace.NewStaticRepository()
	}

	for _, p := range cfg.Image.Providers {
		provider, err := newImageProvider(p)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.images = append(a.images, provider)
	}

	return a, nil
}

func newImageProvider(p config.ImageProviderConfig) (imagegen.Provider, error) {
	name := p.Name
	if name == "" {
		name = p.Type
	}
	switch strings.ToLower(p.Type) {
	case "openai", "":
		key := p.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		return imagegen.NewOpenAIProvider(name, key, p.BaseURL, p.Model), nil
	case "http":
		if p.BaseURL == "" {
			return nil, fmt.Errorf("image provider %s: base_url is required", name)
		}
		return imagegen.NewHTTPProvider(name, p.BaseURL,
			imagegen.WithAPIKey(p.APIKey),
			imagegen.WithDefaultModel(p.Model),
		), nil
	}
	return nil, fmt.Errorf("image provider %s: unknown type %q", name, p.Type)
}

// connectLLM creates the completion client for model
func (a *app) connectLLM(model string) error {
	opts := []llm.ClientOption{llm.WithModel(model)}
	if a.cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(a.cfg.LLM.BaseURL))
	}
	if a.cfg.LLM.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(a.cfg.LLM.APIKey))
	}
	if a.cfg.LLM.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(a.cfg.LLM.Timeout))
	}

	client, err := openai.NewForProvider(a.cfg.LLM.Provider, opts...)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", a.cfg.LLM.Provider, err)
	}
	a.llm = client
	a.closers = append(a.closers, client.Close)
	return nil
}

type sessionParams struct {
	model          string
	scope          string
	subjectID      string
	conversationID string
	documents      []string
	streaming      bool
	observer       func(chat.Update)
}

// newSession builds a session, resuming a stored conversation when asked
func (a *app) newSession(ctx context.Context, p sessionParams) (*chat.Session, error) {
	opts := []chat.Option{
		chat.WithModel(p.model),
		chat.WithOwner(a.cfg.OwnerID),
		chat.WithLogger(a.logger),
		chat.WithImageProviders(a.images...),
		chat.WithImageDefaults(chat.ImageDefaults{
			Width:    a.cfg.Image.Width,
			Height:   a.cfg.Image.Height,
			Strength: a.cfg.Image.Strength,
			Steps:    a.cfg.Image.Steps,
		}),
		chat.WithFeedback(a.recorder),
		chat.WithStreaming(p.streaming),
	}
	if p.observer != nil {
		opts = append(opts, chat.WithObserver(p.observer))
	}

	switch strings.ToLower(p.scope) {
	case "", string(conversation.ScopeGeneral):
	case string(conversation.ScopeClient):
		if p.subjectID == "" {
			return nil, fmt.Errorf("--client is required for the client assistant")
		}
		opts = append(opts, chat.WithContextSource(workspace.NewClientSource(a.workspace, p.subjectID)))
	case string(conversation.ScopeTraffic):
		if p.subjectID == "" {
			return nil, fmt.Errorf("--account is required for the traffic assistant")
		}
		opts = append(opts, chat.WithContextSource(workspace.NewTrafficSource(a.workspace, p.subjectID)))
	default:
		return nil, fmt.Errorf("unknown scope %q", p.scope)
	}

	if p.conversationID != "" {
		conv, err := a.store.Get(ctx, p.conversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation %s: %w", p.conversationID, err)
		}
		opts = append(opts, chat.WithConversation(conv))
	}

	session := chat.New(a.llm, a.caps, a.store, opts...)
	session.SelectDocuments(p.documents...)
	return session, nil
}

// Close releases resources in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Debug("close failed")
		}
	}
	a.closers = nil
}

// tuiLogFile opens ~/.agency-chat/agency-chat.log for the TUI's logs
func tuiLogFile() (*os.File, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, ".agency-chat")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "agency-chat.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}
