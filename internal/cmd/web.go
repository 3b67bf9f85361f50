package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sibylchat/sibyl/internal/agent"
	"github.com/sibylchat/sibyl/internal/analytics"
	"github.com/sibylchat/sibyl/internal/appdir"
	"github.com/sibylchat/sibyl/internal/cache"
	"github.com/sibylchat/sibyl/internal/defense"
	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/memory"
	"github.com/sibylchat/sibyl/internal/tools"
	"github.com/sibylchat/sibyl/internal/web"
)

var (
	webPort      int
	webHost      string
	webStaticDir string
)

// memoryCacheSize bounds the in-process response cache.
const memoryCacheSize = 1000

// webCmd represents the web command
var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Start the browser-based chat interface",
	Long: `Start a web server that provides a browser-based chat UI.

Queries are answered by the research pipeline: classification, web
search, news, social media, and stock market tools, with responses
cached and personalized per client.

Example:
  sibyl web                              # Start on default port 8080
  sibyl web --port 3000                  # Start on custom port
  sibyl web --static-dir ./web/static    # Serve from filesystem (for development)`,
	RunE: runWeb,
}

func init() {
	rootCmd.AddCommand(webCmd)

	webCmd.Flags().IntVar(&webPort, "port", 0, "HTTP server port (overrides config)")
	webCmd.Flags().StringVar(&webHost, "host", "", "HTTP server host (overrides config)")
	webCmd.Flags().StringVar(&webStaticDir, "static-dir", "", "Serve static files from this directory instead of embedded assets (for development)")
}

func runWeb(cmd *cobra.Command, args []string) error {
	// CLI flags override the config file
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = webPort
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = webHost
	}
	if cmd.Flags().Changed("static-dir") {
		cfg.Web.StaticDir = webStaticDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataDir, err := appdir.EnsureDir()
	if err != nil {
		return err
	}

	stack, err := buildAgent(ctx, dataDir)
	if err != nil {
		return err
	}
	defer stack.Close()

	var guard *defense.Guard
	if cfg.Web.DefenseEnabled {
		guardConfig := defense.DefaultConfig()
		guardConfig.Enabled = true
		guardConfig.PersistPath = filepath.Join(dataDir, "blocklist.json")
		guard = defense.New(guardConfig, nil)
		defer guard.Close()
	}

	srv := web.NewServer(web.Options{
		Host:           cfg.Web.Host,
		Port:           cfg.Web.Port,
		Agent:          stack.agent,
		AllowedOrigins: cfg.Web.AllowedOrigins,
		StaticDir:      cfg.Web.StaticDir,
		AccessLog: web.AccessLogConfig{
			Path: filepath.Join(dataDir, "access.log"),
		},
		Guard: guard,
	})

	fmt.Printf("🌐 Starting web interface...\n")
	fmt.Printf("   Model: %s\n", cfg.Groq.Model)
	fmt.Printf("   Cache: %s\n", cfg.Cache.Backend)
	if cfg.Web.StaticDir != "" {
		fmt.Printf("   Static files: %s (hot-reload enabled)\n", cfg.Web.StaticDir)
	}
	fmt.Printf("   URL: http://%s\n", srv.Addr())
	fmt.Printf("\n   Press Ctrl+C to stop\n\n")

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	fmt.Println("\n👋 Shutting down...")
	return nil
}

// agentStack bundles the agent with the resources it owns.
type agentStack struct {
	agent *agent.Agent
	cache cache.Cache
	store *memory.Store
}

func (s *agentStack) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.cache != nil {
		s.cache.Close()
	}
}

// buildAgent assembles the query pipeline from the loaded config.
func buildAgent(ctx context.Context, dataDir string) (*agentStack, error) {
	var groqOpts []groq.Option
	if cfg.Groq.BaseURL != "" {
		groqOpts = append(groqOpts, groq.WithBaseURL(cfg.Groq.BaseURL))
	}
	client := groq.NewClient(cfg.Groq.APIKey, groqOpts...)

	var searchOpts []tools.SearchOption
	if cfg.Tools.SearchBaseURL != "" {
		searchOpts = append(searchOpts, tools.WithSearchBaseURL(cfg.Tools.SearchBaseURL))
	}
	var financeOpts []tools.FinanceOption
	if cfg.Tools.FinanceBaseURL != "" {
		financeOpts = append(financeOpts, tools.WithFinanceBaseURL(cfg.Tools.FinanceBaseURL))
	}

	finance := tools.NewFinanceTool(financeOpts...)
	registry := tools.NewRegistry()
	registry.Register(tools.NewWebSearchTool(searchOpts...))
	registry.Register(tools.NewNewsSearchTool(searchOpts...))
	registry.Register(tools.NewSocialMediaSearchTool(searchOpts...))
	registry.Register(finance)

	responseCache, err := buildCache(ctx)
	if err != nil {
		return nil, err
	}

	store, err := memory.OpenStore(filepath.Join(dataDir, "memory.db"))
	if err != nil {
		responseCache.Close()
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	return &agentStack{
		agent: agent.New(agent.Config{
			Client:        client,
			Model:         cfg.Groq.Model,
			FastModel:     cfg.Groq.FastModel,
			Registry:      registry,
			Finance:       finance,
			Discovery:     tools.NewDiscovery(client, cfg.Groq.FastModel),
			Cache:         responseCache,
			Memory:        memory.NewManager(),
			Store:         store,
			Analytics:     analytics.NewEngine(),
			HistoryWindow: cfg.HistoryWindow,
		}),
		cache: responseCache,
		store: store,
	}, nil
}

func buildCache(ctx context.Context) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(memoryCacheSize), nil
	}
}
