package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/memelabs/candlecast/api/http"
	"github.com/memelabs/candlecast/api/http/handler"
	"github.com/memelabs/candlecast/api/ws"
	"github.com/memelabs/candlecast/bus"
	"github.com/memelabs/candlecast/candle"
	"github.com/memelabs/candlecast/infra"
	"github.com/memelabs/candlecast/trade"
)

const hubShutdownTimeout = 5 * time.Second

func main() {
	var (
		configDir string
		env       string
		webDir    string
	)

	root := &cobra.Command{
		Use:          "candlecast",
		Short:        "Real-time OHLCV candle service for meme tokens",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configDir, env, webDir)
		},
	}
	root.Flags().StringVar(&configDir, "config-dir", "", "config file directory (default ./config, or CONFIG_DIR)")
	root.Flags().StringVar(&env, "env", "", "environment overlay to merge (default development, or APP_ENV)")
	root.Flags().StringVar(&webDir, "web-dir", "./web", "websocket test page directory, empty to disable")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(configDir, env, webDir string) error {
	cfg, err := infra.LoadConfig(configDir, env)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := infra.SetupLogger(cfg.Logging); err != nil {
		return errors.Wrap(err, "setup logger")
	}
	log.WithFields(log.Fields{
		"env":    cfg.Env,
		"tokens": len(cfg.Tokens.SupportedTokens),
	}).Info("[*] candlecast starting")

	stats := infra.NewStats()
	store := candle.NewStore(cfg.Symbols(), cfg.Performance.KlineRetentionHours, stats)
	b := bus.New(bus.DefaultBuffer, stats)
	ingest := trade.NewService(store, b, cfg.Performance.WorkerThreads, stats)
	sweeper := candle.NewSweeper(store, b, cfg.Performance.SweepInterval())
	hub := ws.NewHub(
		b,
		stats,
		cfg.Performance.MaxWebsocketConnections,
		cfg.Performance.HeartbeatInterval(),
		cfg.Performance.ClientTimeoutInterval(),
	)
	srv := apihttp.NewServer(cfg.Server, handler.NewKlineHandler(store, stats), hub, webDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ingest.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
	if cfg.DataGeneration.Enabled {
		gen := trade.NewGenerator(ingest, cfg.Tokens.SupportedTokens, cfg.DataGeneration)
		g.Go(func() error { return gen.Run(ctx) })
	}
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		b.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), hubShutdownTimeout)
		defer cancel()
		return hub.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("[*] candlecast stopped")

	return nil
}
