package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/calloutapp/callout/internal/api"
	"github.com/calloutapp/callout/internal/availability"
	"github.com/calloutapp/callout/internal/clock"
	"github.com/calloutapp/callout/internal/config"
	"github.com/calloutapp/callout/internal/dispatch"
	"github.com/calloutapp/callout/internal/gate"
	"github.com/calloutapp/callout/internal/metrics"
	"github.com/calloutapp/callout/internal/model"
	"github.com/calloutapp/callout/internal/store"
)

var (
	cfgPath string
	debug   bool
	yes     bool
)

var rootCmd = &cobra.Command{
	Use:   "callout",
	Short: "Provider-side dispatch client",
	Long:  "Callout receives time-bounded job offers, tracks their countdowns, and manages your availability.",
	// Default to `run` so that `callout` with no args starts the daemon.
	RunE: runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: CALLOUT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompts")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > CALLOUT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("CALLOUT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// engine bundles everything a command needs to drive the offer lifecycle.
type engine struct {
	cfg     *config.Config
	client  *api.Client
	orch    *dispatch.Orchestrator
	avail   *availability.Controller
	journal model.ResolutionStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	close   func()
}

// buildEngine wires the engine from config. persist selects the SQLite
// resolution journal; one-shot commands pass false and get the no-op journal.
func buildEngine(logger *slog.Logger, persist bool) (*engine, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Token, httpClient)

	var (
		journal model.ResolutionStore
		closeFn = func() {}
	)
	if persist {
		sqlJournal, err := store.NewSQLiteJournal(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		journal = sqlJournal
		closeFn = func() { sqlJournal.Close() }
	} else {
		journal = store.NewNopJournal()
	}

	m := metrics.New()
	g := gate.New(time.Duration(cfg.Schedule.EarlyStartMinutes) * time.Minute)
	orch := dispatch.New(client, journal, clock.NewSystem(), g, m, logger)

	confirmer := availability.Confirmer(terminalConfirmer{})
	if yes || cfg.AutoAccept {
		confirmer = availability.AutoConfirm
	}
	avail := availability.NewController(
		client,
		model.ProviderStatus{Level: cfg.Provider.Level},
		confirmer,
		m,
		logger,
	)

	return &engine{
		cfg:     cfg,
		client:  client,
		orch:    orch,
		avail:   avail,
		journal: journal,
		metrics: m,
		logger:  logger,
		close:   closeFn,
	}, nil
}
