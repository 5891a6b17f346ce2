package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/Presence/internal/adapters/http"
	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/eventlog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "listen port")
	serveCmd.Flags().String("mode", "release", "gin mode (debug, release)")
	serveCmd.Flags().String("eventlog.driver", "memory", "event log backend (memory, sqlite)")
	serveCmd.Flags().String("eventlog.path", "presence.sqlite", "sqlite database path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ConfigFile, cmd.Flags())
	if err != nil {
		return err
	}
	if LogLevel == "" {
		if err := setLogLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	store, err := openStore(cfg.EventLog)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := eventlog.NewRecorder(store, cfg.EventLog.Buffer)
	go recorder.Run()

	hub := orch.New(orch.Options{
		Policy:   app.SimplePolicy{},
		Recorder: recorder,
		Resync:   app.NewResync(store, cfg.EventLog.SyncLimit),
	})
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	r := router.SetupRouter(ctx, cfg, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Presence hub started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopHub()
	<-hub.Done()
	if err := recorder.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("event log flush")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

func openStore(cfg config.EventLogConfig) (eventlog.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := eventlog.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info().Str("module", "eventlog").Str("path", cfg.Path).Msg("sqlite event log opened")
		return s, nil
	default:
		return eventlog.NewMemoryStore(cfg.Capacity), nil
	}
}
