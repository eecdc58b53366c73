package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vitalops/vitalops/server/internal/alerts"
	"github.com/vitalops/vitalops/server/internal/api"
	"github.com/vitalops/vitalops/server/internal/auth"
	"github.com/vitalops/vitalops/server/internal/config"
	"github.com/vitalops/vitalops/server/internal/logging"
	"github.com/vitalops/vitalops/server/internal/metrics"
	"github.com/vitalops/vitalops/server/internal/receiver"
	"github.com/vitalops/vitalops/server/internal/store"
	"github.com/vitalops/vitalops/server/internal/vitals"
	"github.com/vitalops/vitalops/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file; defaults apply if it does not exist")
	envFile := flag.String("env-file", ".env", "dotenv file loaded into the environment before config is read")
	uiDir := flag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. frontend/out); leave empty to disable")
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	slog.SetDefault(logging.New(os.Stdout, cfg.Server.Log))

	slog.Info("vitalops-server starting", "config", *configPath)
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"mqtt_enabled", cfg.Server.MQTT.Enabled,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New()
	m := metrics.New()

	// Alerts engine: evaluates rules on every accepted reading.
	alertEngine := alerts.New(cfg.Server.Alerts)

	rc := receiver.New(st, alertEngine, m)

	keys := auth.NewKeyChecker(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	cors := auth.NewCORS(cfg.Server.CORS.AllowedOrigins)

	// Hot reload of the settings that can change without a restart.
	if _, err := os.Stat(*configPath); err == nil {
		go func() {
			err := config.Watch(ctx, *configPath, func(c *config.Config) {
				cors.SetOrigins(c.Server.CORS.AllowedOrigins)
				keys.Set(c.Server.Auth.Mode, c.Server.Auth.EffectiveHeader(), c.Server.Auth.Key())
				alertEngine.SetConfig(c.Server.Alerts)
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	// Optional MQTT ingestion from devices that publish instead of POSTing.
	var sub *receiver.Subscriber
	if cfg.Server.MQTT.Enabled {
		sub = receiver.NewSubscriber(cfg.Server.MQTT, rc)
		go func() {
			if err := sub.Connect(ctx); err != nil && ctx.Err() == nil {
				slog.Error("mqtt connect failed", "err", err)
			}
		}()
	}

	// WebSocket hub: pushes the latest reading to dashboards on every new
	// reading and every interval.
	hub := ws.New(st, cfg.Server.Stream.Interval)
	hub.CheckOrigin = cors.Allowed
	hub.OnClients = m.SetWSClients
	rc.OnStored = func(vitals.StoredReading) { hub.Notify() }
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, rc, alertEngine, api.Options{
		HistoryLimit:     cfg.Server.History.DefaultLimit,
		IngestMiddleware: keys.Wrap,
	}))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := filepath.Join(*uiDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(*uiDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           cors.Wrap(httpMux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("vitalops-server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	if sub != nil {
		sub.Disconnect()
	}
	alertEngine.Wait()

	if totals, err := m.Totals(); err == nil {
		slog.Info("session summary",
			"readings_stored", st.Count(),
			"accepted", totals[metrics.ReadingsAccepted],
			"rejected", totals[metrics.ReadingsRejected],
			"alerts_fired", totals[metrics.AlertsFired],
		)
	}
}
