package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/api"
	"github.com/truthgraph/veracity/internal/config"
	"github.com/truthgraph/veracity/internal/engine"
	"github.com/truthgraph/veracity/internal/events"
	"github.com/truthgraph/veracity/internal/store"
)

// serveCmd runs the consensus engine behind the HTTP/WebSocket API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the veracity API server",
	Long: `Start the HTTP/WebSocket server over the configured store.

The server exposes claim and challenge operations under /api/v1,
Prometheus metrics under /metrics, and an event stream under /ws/events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Warn("close store", zap.Error(closeErr))
		}
	}()

	bus := events.NewBus(cfg.Server.EventBuffer, logger)
	defer bus.Close()

	eng, err := engine.New(s, cfg.Policy, bus, logger)
	if err != nil {
		return err
	}
	if err := installEvaluator(eng, cfg.Evaluator); err != nil {
		return err
	}

	srv := api.NewServer(eng, bus, logger, api.Options{
		Addr:              cfg.Server.Addr,
		VoteRatePerSecond: cfg.Server.VoteRatePerSecond,
		VoteBurst:         cfg.Server.VoteBurst,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting veracity server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend))
	return srv.Run(ctx)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "badger":
		return store.OpenBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func installEvaluator(eng *engine.Engine, cfg config.EvaluatorConfig) error {
	switch cfg.Provider {
	case "", "none":
		return nil
	case "openai":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		ev, err := engine.NewOpenAIEvaluator(apiKey, cfg.Model)
		if err != nil {
			return err
		}
		eng.SetEvaluator(ev)
		return nil
	default:
		return fmt.Errorf("unknown evaluator provider %q", cfg.Provider)
	}
}
