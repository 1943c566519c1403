// Package daemon runs the client as a long-lived process: it drains the
// command queue, keeps subscriptions current, listens for push
// notifications and optionally serves the local control API.
package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/typeworld/typeworld-go/internal/infrastructure/pushchannel"
	"github.com/typeworld/typeworld-go/internal/interfaces/cli"
	httpRouter "github.com/typeworld/typeworld-go/internal/interfaces/http"
)

var (
	configPath     string
	updateInterval time.Duration
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the font client as a background process",
		Long: `Run the font client as a long-lived process. The daemon drains the
queued server commands, periodically refreshes subscriptions, connects
to the live notification channel and, when enabled, serves the local
control API for an external GUI.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().DurationVar(&updateInterval, "update-interval", time.Hour, "Interval between subscription refreshes")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	app, err := cli.Setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	log := app.Log.Named("daemon")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("daemon starting",
		"appID", app.Client.AppID(),
		"anonymousAppID", app.Client.AnonymousAppID(),
		"fontsDir", app.Client.FontsDir())

	// Catch up on whatever queued up while we were not running.
	if err := app.Client.PerformCommands(ctx); err != nil {
		log.Warnw("initial queue drain failed", "error", err)
	}

	if app.Config.Client.PushNotifications {
		startPush(ctx, app)
	}

	var srv *http.Server
	if app.Config.Control.Enabled {
		srv, err = startControlAPI(app)
		if err != nil {
			return err
		}
	}

	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := app.Client.PerformCommands(ctx); err != nil {
				log.Warnw("queue drain failed", "error", err)
			}
			if err := app.Client.UpdateAllSubscriptions(ctx); err != nil {
				log.Warnw("subscription refresh failed", "error", err)
			}
		case <-quit:
			log.Infow("shutting down")
			cancel()

			if srv != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Errorw("control API forced to shutdown", "error", err)
					return err
				}
			}

			log.Infow("daemon exited gracefully")
			return nil
		}
	}
}

// startPush connects the live notification channel. The message-queue
// address comes from the downloaded settings, so the first daemon run of
// a fresh install stays silent until settings arrive.
func startPush(ctx context.Context, app *cli.App) {
	log := app.Log.Named("daemon")

	addr := app.Client.Settings().LiveNotificationsServer
	if addr == "" {
		log.Infow("no live notification server known yet, push disabled for this run")
		return
	}

	channel, err := pushchannel.Dial(addr, app.Log)
	if err != nil {
		log.Warnw("failed to connect live notification channel", "error", err)
		return
	}

	app.Client.AttachPush(channel)
	if err := app.Client.StartPush(ctx); err != nil {
		log.Warnw("failed to start push subscriptions", "error", err)
		return
	}
	log.Infow("live notifications connected")
}

func startControlAPI(app *cli.App) (*http.Server, error) {
	log := app.Log.Named("daemon")
	cfg := &app.Config.Control

	if cfg.AuthKey == "" {
		return nil, fmt.Errorf("control API enabled but control.auth_key is empty")
	}

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	router := httpRouter.NewRouter(app.Client, cfg, app.Log)
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("control API listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("control API failed", "error", err)
		}
	}()

	return srv, nil
}
