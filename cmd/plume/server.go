package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"

	"github.com/fedimod/plume/automod/classifier"
	"github.com/fedimod/plume/automod/config"
	"github.com/fedimod/plume/automod/engine"
	"github.com/fedimod/plume/automod/event"
	"github.com/fedimod/plume/automod/mastodon"
	"github.com/fedimod/plume/automod/registry"
	"github.com/fedimod/plume/automod/websub"
)

type Server struct {
	logger    *slog.Logger
	echo      *echo.Echo
	engine    *engine.Engine
	store     *registry.Store
	builder   *registry.Builder
	settings  *config.Settings
	configDir string
}

type Config struct {
	ConfigDir string
	Logger    *slog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	settings, err := config.LoadSettings(cfg.ConfigDir)
	if err != nil {
		return nil, err
	}
	actionTimeout, err := settings.ActionTimeoutDuration()
	if err != nil {
		return nil, err
	}

	eng := &engine.Engine{
		Logger:        logger,
		ActionTimeout: actionTimeout,
	}
	if settings.Classifier != nil {
		eng.Classifier = classifier.NewRspamdClient(settings.Classifier.URL, settings.Classifier.Password)
	}

	srv := &Server{
		logger: logger,
		engine: eng,
		builder: &registry.Builder{
			NewClient: func(domain, username, accessToken string) engine.ModClient {
				return mastodon.NewClient(domain, accessToken)
			},
		},
		settings:  settings,
		configDir: cfg.ConfigDir,
	}

	snap, err := srv.loadSnapshot()
	if err != nil {
		return nil, err
	}
	srv.store = registry.NewStore(snap)
	logger.Info("configuration loaded", "dir", cfg.ConfigDir, "instances", len(snap.Instances))

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))

	e.POST("/webhook", srv.handleWebhook)
	e.GET("/healthcheck", srv.handleHealthCheck)
	srv.echo = e

	return srv, nil
}

func (srv *Server) loadSnapshot() (*registry.Snapshot, error) {
	files, err := config.LoadDir(srv.configDir)
	if err != nil {
		return nil, err
	}
	return srv.builder.Build(files)
}

// Reload rebuilds the instance snapshot from disk and swaps it in. On any
// error the previous snapshot stays in service.
func (srv *Server) Reload() {
	snap, err := srv.loadSnapshot()
	if err != nil {
		srv.logger.Error("config reload failed, keeping previous configuration", "err", err)
		return
	}
	srv.store.Replace(snap)
	srv.logger.Info("configuration reloaded", "instances", len(snap.Instances))
}

func (srv *Server) handleHealthCheck(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// handleWebhook receives one Mastodon webhook delivery. The raw body is
// captured before decoding, since the signature covers the exact bytes sent.
// Every authentication failure is a plain 401 so an unauthenticated caller
// learns nothing about which domains are configured.
func (srv *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	sigHeader := c.Request().Header.Get(websub.HeaderName)
	if sigHeader == "" {
		return c.NoContent(http.StatusUnauthorized)
	}
	sig, err := websub.ParseSignature(sigHeader)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	// Mastodon signs with sha256; weaker digests are not accepted
	if sig.Algorithm == websub.AlgorithmSHA1 {
		return c.NoContent(http.StatusUnauthorized)
	}

	snap := srv.store.Load()
	var inst *engine.Instance
	if domain := c.QueryParam("domain"); domain != "" {
		inst = snap.Resolve(domain)
		if inst == nil || !sig.Verify(inst.WebhookSecret, body) {
			return c.NoContent(http.StatusUnauthorized)
		}
	} else {
		// sender did not name itself; identify it by its secret
		inst, err = snap.Infer(sig, body)
		if err != nil || inst == nil {
			return c.NoContent(http.StatusUnauthorized)
		}
	}

	_, err = srv.engine.ProcessPayload(c.Request().Context(), inst, body)
	switch {
	case errors.Is(err, event.ErrIgnored):
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, engine.ErrProcessingPanic):
		return c.NoContent(http.StatusInternalServerError)
	case err != nil:
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusOK)
}

// Run serves until SIGINT/SIGTERM, reloading configuration on SIGHUP.
// In-flight deliveries get 10 seconds to drain on shutdown.
func (srv *Server) Run(ctx context.Context) error {
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	var servers []*http.Server
	for _, addr := range srv.settings.Listen {
		srv.logger.Info("starting webhook listener", "bind", addr)
		servers = append(servers, &http.Server{
			Handler:        srv.echo,
			Addr:           addr,
			WriteTimeout:   httpTimeout,
			ReadTimeout:    httpTimeout,
			MaxHeaderBytes: httpMaxHeaderBytes,
		})
	}

	// the metrics listener shuts down with the webhook listeners; a plain
	// ListenAndServe here would block g.Wait forever
	if srv.settings.MetricsListen != "" {
		srv.logger.Info("starting metrics listener", "bind", srv.settings.MetricsListen)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servers = append(servers, &http.Server{
			Handler: mux,
			Addr:    srv.settings.MetricsListen,
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, httpd := range servers {
		httpd := httpd
		g.Go(func() error {
			if err := httpd.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
		for {
			select {
			case <-reload:
				srv.Reload()
			case sig := <-exit:
				srv.logger.Info("received OS exit signal", "signal", sig.String())
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				for _, httpd := range servers {
					if err := httpd.Shutdown(shutdownCtx); err != nil {
						srv.logger.Error("HTTP server shutdown error", "err", err)
					}
				}
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	})

	err := g.Wait()
	srv.logger.Info("graceful shutdown complete")
	return err
}
