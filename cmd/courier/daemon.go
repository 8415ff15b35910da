package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewjhunter/courier/internal/api"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func daemonCmd() *cobra.Command {
	var (
		noPoll bool
		noAPI  bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the feed poller, the wishlist refresh job and the API",
		Long: `Runs the feed poller, the daily wishlist release-date refresh and,
when a JWT secret is configured, the HTTP API, until SIGINT/SIGTERM.
Each loop finishes its current step before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			g, ctx := errgroup.WithContext(ctx)

			if !noPoll {
				poller, err := newPoller(engine)
				if err != nil {
					return err
				}
				g.Go(func() error { return poller.Run(ctx) })
			}

			g.Go(func() error { return engine.Refresher().Run(ctx) })

			if !noAPI {
				if cfg.API.JWTSecret == "" {
					logger.Warn("api.jwt_secret not set, HTTP API disabled")
				} else {
					srv, err := api.New(engine, []byte(cfg.API.JWTSecret), logger)
					if err != nil {
						return err
					}
					g.Go(func() error { return srv.Run(ctx, cfg.API.Listen) })
				}
			}

			logger.Info("daemon started", "source", cfg.Source, "owner", cfg.Bot.OwnerID)
			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logger.Info("daemon stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&noPoll, "no-poll", false, "do not run the feed poller")
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "do not serve the HTTP API")
	return cmd
}

func pollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			poller, err := newPoller(engine)
			if err != nil {
				return err
			}
			res, err := poller.RunOnce(ctx)
			if err != nil {
				return err
			}
			return formatter().OutputCycleResult(res)
		},
	}
}
