package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wastelens/wastelens/pkg/engine/recommend"
	"github.com/wastelens/wastelens/pkg/seed"
	"github.com/wastelens/wastelens/pkg/server"
)

var (
	serveAddr string
	serveSeed bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled-recommendation poller",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close(context.Background())

		if serveSeed {
			sum, err := seed.Apply(ctx, eng.Store, seed.Options{})
			if err != nil {
				return fmt.Errorf("seed inventory: %w", err)
			}
			eng.Logger.Info("inventory seeded",
				"accounts", sum.Accounts,
				"resources", sum.Resources,
				"metrics", sum.Metrics)
		}

		if serveAddr == "" {
			serveAddr = cfg.ListenAddr
		}

		poller := recommend.NewPoller(eng.Recommendations, cfg.SchedulerInterval, eng.Logger)
		go poller.Run(ctx)

		srv := server.New(eng)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen(serveAddr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			eng.Logger.Info("shutting down")
			return srv.Shutdown()
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Seed a demo inventory on startup")
	rootCmd.AddCommand(serveCmd)
}
