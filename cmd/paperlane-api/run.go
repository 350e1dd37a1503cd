package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/paperlane/paperlane/internal/api_server"
	"github.com/paperlane/paperlane/internal/config"
	"github.com/paperlane/paperlane/internal/reconciler"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the paperlane api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		defer setupLogging(cfg)()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		if err := migrate(ctx, cfg, db, s); err != nil {
			zap.S().Fatalw("running migration", "error", err)
		}

		services, err := apiserver.NewServices(cfg, s)
		if err != nil {
			zap.S().Fatalw("initializing services", "error", err)
		}
		defer services.Close()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				return err
			}
			return apiserver.New(cfg, s, services, listener).Run(ctx)
		})

		g.Go(func() error {
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				return err
			}
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, s).Run(ctx)
		})

		if cfg.Service.Reconciler.Enabled {
			g.Go(func() error {
				return reconciler.New(services.Reconcile, services.Accounts, cfg.Service.Reconciler).Run(ctx)
			})
		} else {
			zap.S().Warn("reconciler disabled: documents only progress through polling and engine callbacks")
		}

		if err := g.Wait(); err != nil {
			zap.S().Errorw("API service failed", "error", err)
			return err
		}
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
