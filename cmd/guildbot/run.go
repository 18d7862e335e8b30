package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/guildkit/internal/client"
	"github.com/Guliveer/guildkit/internal/gateway"
	"github.com/Guliveer/guildkit/internal/logger"
	"github.com/Guliveer/guildkit/internal/server"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and keep the bot online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("status-addr") {
				cfg.Status.Addr = statusAddr
			}

			opts, err := cfg.ClientOptions(log)
			if err != nil {
				return err
			}
			bot, err := client.New(opts)
			if err != nil {
				return err
			}
			bot.On(logEvents(log.WithComponent("events")))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("🚀 Starting guildbot", "gateway", bot.Gateway().Endpoint(), "api", bot.REST().BaseURL())

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return bot.Run(ctx)
			})
			if cfg.Status.Addr != "" {
				status := server.NewStatusServer(cfg.Status.Addr, bot, log.WithComponent("status"))
				g.Go(func() error {
					return status.Run(ctx)
				})
			}

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				log.Info("👋 Shutdown complete")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Address for the status HTTP server (overrides config; empty disables)")
	return cmd
}

// logEvents logs every dispatch at debug level; lifecycle events are already
// logged by the gateway and client.
func logEvents(log *logger.Logger) gateway.Handler {
	return gateway.HandlerFunc(func(ctx context.Context, ev gateway.Event) {
		switch e := ev.(type) {
		case gateway.ConnectEvent, gateway.DisconnectEvent:
		case gateway.UnknownEvent:
			log.DebugContext(ctx, "Unhandled dispatch", "event", e.Type(), "server", e.ServerID, "bytes", len(e.Payload))
		default:
			log.DebugContext(ctx, "Dispatch", "event", e.Type())
		}
	})
}
