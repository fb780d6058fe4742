package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/champschool/champdesk/internal/config"
	"github.com/champschool/champdesk/internal/connectivity"
	"github.com/champschool/champdesk/internal/dashboard"
	"github.com/champschool/champdesk/internal/engine"
	"github.com/champschool/champdesk/internal/status"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon with the status dashboard",
	Long: `Run the background sync daemon.

The daemon probes connectivity, runs a reconciliation cycle every sync
interval while online, and triggers one immediately when connectivity
comes back. A status dashboard serves JSON and WebSocket views of the
sync state:

  http://localhost:<port>/api/status   current snapshot
  http://localhost:<port>/api/tables   per-table record counts
  ws://localhost:<port>/ws             pushed status updates

Stop with Ctrl+C; an in-flight cycle is allowed to finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, closeLog := newLogger(cfg)
		defer closeLog()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		gw, err := openGateway(cfg)
		if err != nil {
			return err
		}
		defer gw.Close()

		eng := engine.New(st, gw, &engine.Config{
			BackoffBase: cfg.BackoffBase,
			BackoffMax:  cfg.BackoffMax,
			Logger:      logger,
		})

		monitor := connectivity.NewMonitor(
			connectivity.NewDialProbe(cfg.ProbeAddr),
			eng,
			&connectivity.Config{
				ProbeInterval: cfg.ProbeInterval,
				SyncInterval:  cfg.SyncInterval,
				Logger:        logger,
			},
		)

		broadcaster := status.New(st, monitor.Online, eng.InProgress, logger)
		eng.SetOnCycle(func() { broadcaster.Notify(context.Background()) })
		monitor.SetOnChange(func(bool) { broadcaster.Notify(context.Background()) })

		var server *dashboard.Server
		if cfg.DashboardPort > 0 {
			server = dashboard.NewServer(broadcaster, dashboard.StoreCounts(st), &dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: logger,
			})
			if err := server.Start(); err != nil {
				return err
			}
			fmt.Printf("Dashboard: http://localhost:%d/api/status\n", cfg.DashboardPort)
		}

		monitor.Start(ctx)
		fmt.Printf("Sync daemon running (mirror: %s)\n", cfg.DBPath)
		fmt.Println("Press Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		monitor.Stop()
		if server != nil {
			if err := server.Stop(); err != nil {
				logger.Printf("Dashboard shutdown error: %v", err)
			}
		}

		fmt.Println("Stopped")
		return nil
	},
}

// newLogger builds the daemon logger. With a log file configured it
// rotates at 10 MB keeping three generations.
func newLogger(cfg *config.Config) (*log.Logger, func()) {
	if cfg.LogFile == "" {
		return log.New(os.Stderr, "[champdesk] ", log.LstdFlags), func() {}
	}

	w := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	return log.New(w, "[champdesk] ", log.LstdFlags), func() { w.Close() }
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
