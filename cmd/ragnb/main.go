package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ragnotebook/internal/config"
	"ragnotebook/internal/configstore"
	"ragnotebook/internal/configstore/file"
	"ragnotebook/internal/configstore/memory"
	"ragnotebook/internal/domain"
	"ragnotebook/internal/logging"
	"ragnotebook/internal/service"
	"ragnotebook/internal/strategy"
	"ragnotebook/internal/tui"
	"ragnotebook/internal/webhook"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg    *config.AppConfig
	logger *zap.Logger
	svc    *service.WorkspaceService
)

var rootCmd = &cobra.Command{
	Use:   "ragnb",
	Short: "Terminal workspace for RAG notebooks",
	Long: `ragnb manages notebooks on a workflow backend, chats with them through
a selectable retrieval strategy and inspects what each strategy retrieved.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			svc.Wait()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/ragnb/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr (subcommands only)")

	rootCmd.AddCommand(searchCmd, askCmd, notebooksCmd, historyCmd, configCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and assembles the service graph shared by every
// command.
func setup() error {
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		logger = logging.NewWithSyncer(zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	} else {
		logger, err = logging.New(cfg.Logging.Path, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	var store configstore.Storage
	switch cfg.Storage.Type {
	case "file", "":
		store = file.NewStorage(cfg.Storage.Path)
	case "memory":
		store = memory.NewStorage()
	default:
		return fmt.Errorf("unknown storage: %s", cfg.Storage.Type)
	}

	hooks := webhook.NewClient(webhookConfig(cfg), logger)
	catalog := strategy.NewCatalog(cfg.Resolve, strategyOverrides(cfg))
	svc = service.NewWorkspaceService(hooks, store, catalog, service.Options{
		MaxDepth: cfg.Finder.MaxDepth,
		Logger:   logger,
	})
	logger.Debug("configured",
		zap.String("config", cfgPath),
		zap.String("base_url", cfg.Webhooks.BaseURL),
		zap.String("storage", cfg.Storage.Type))
	return nil
}

func webhookConfig(cfg *config.AppConfig) webhook.Config {
	w := cfg.Webhooks
	return webhook.Config{
		Endpoints: webhook.Endpoints{
			CreateNotebook:  cfg.Resolve(w.Notebooks.Create),
			ListNotebooks:   cfg.Resolve(w.Notebooks.List),
			NotebookDetails: cfg.Resolve(w.Notebooks.Details),
			DeleteNotebook:  cfg.Resolve(w.Notebooks.Delete),
			NotebookStatus:  cfg.Resolve(w.Notebooks.Status),
			Ingest:          cfg.Resolve(w.Notebooks.Ingest),
			SaveMessage:     cfg.Resolve(w.Chat.Save),
			PullHistory:     cfg.Resolve(w.Chat.Pull),
			ClearHistory:    cfg.Resolve(w.Chat.Clear),
			PushSettings:    cfg.Resolve(w.Settings.Push),
			PullSettings:    cfg.Resolve(w.Settings.Pull),
		},
		Timeout:    cfg.Timeout(),
		MaxRetries: w.MaxRetries,
		Headers:    w.Headers,
	}
}

func strategyOverrides(cfg *config.AppConfig) map[domain.StrategyID]strategy.Endpoints {
	out := make(map[domain.StrategyID]strategy.Endpoints, len(cfg.Webhooks.Strategies))
	for id, e := range cfg.Webhooks.Strategies {
		out[domain.StrategyID(id)] = strategy.Endpoints{Retrieval: e.Retrieval, Agentic: e.Agentic}
	}
	return out
}

func runInteractive(ctx context.Context) error {
	m := tui.New(svc, tui.Options{
		Context:           ctx,
		DashboardInterval: cfg.DashboardInterval(),
		StatusInterval:    cfg.StatusInterval(),
		Logger:            logger,
	})
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	} else {
		m.Close()
	}
	return err
}
