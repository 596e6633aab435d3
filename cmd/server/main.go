// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/mongoose/internal/cache"
	"github.com/jason-s-yu/mongoose/internal/config"
	"github.com/jason-s-yu/mongoose/internal/database"
	"github.com/jason-s-yu/mongoose/internal/handlers"
	"github.com/jason-s-yu/mongoose/internal/metrics"
	"github.com/jason-s-yu/mongoose/internal/relay"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "mongoose-server",
		Short: "Relay server for the Mongoose card game",
		Long: `Runs the Mongoose relay. Players connect over TCP; the console on
stdin accepts start, status, help and quit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&cfg.ListenAddr, "listen", "l", cfg.ListenAddr, "address players connect to")
	f.StringVar(&cfg.APIAddr, "api", cfg.APIAddr, "admin API address (empty disables it)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	f.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the action log (empty disables it)")
	f.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres URL for game records (empty disables them)")
	f.IntVar(&cfg.Rules.MaxPlayers, "max-players", cfg.Rules.MaxPlayers, "maximum players per game, 0 for no cap")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := relay.Options{
		Rules:  cfg.Rules,
		Logger: logger,
	}
	var actionLog *cache.ActionLog
	var store *database.Store

	if cfg.RedisAddr != "" {
		actions, err := cache.ConnectActionLog(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.QueueName)
		if err != nil {
			logger.Errorf("action log disabled: %v", err)
		} else {
			defer actions.Close()
			opts.Actions = actions
			actionLog = actions
			logger.Infof("recording actions to redis list %q", actions.Queue())
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Errorf("game records disabled: %v", err)
		} else {
			defer db.Close()
			schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
			err = db.EnsureSchema(schemaCtx)
			schemaCancel()
			if err != nil {
				return err
			}
			opts.Recorder = db
			store = db
		}
	}

	var hub *handlers.SpectatorHub
	var reg *prometheus.Registry
	if cfg.APIAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Metrics = metrics.NewRelay(reg)
		hub = handlers.NewSpectatorHub()
		opts.Feed = hub
	}

	srv := relay.NewServer(opts)

	if cfg.APIAddr != "" {
		api := handlers.NewAPIServer(cfg.APIAddr, srv, hub, reg, logger)
		if store != nil {
			api.WithHistory(store)
		}
		if actionLog != nil {
			api.WithActions(actionLog)
		}
		go func() {
			if err := api.Run(ctx); err != nil {
				logger.Errorf("admin API stopped: %v", err)
			}
		}()
	}

	go srv.RunConsole(os.Stdin)

	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}
