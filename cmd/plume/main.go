package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "plume",
		Usage:   "automod daemon for fediverse instances",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"PLUME_LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		healthcheckCmd,
	}

	return app.Run(args)
}

func setupLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the webhook listener",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config-dir",
			Usage:   "directory holding global.yaml and per-instance configuration",
			Value:   "config",
			EnvVars: []string{"PLUME_CONFIG_DIR"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := setupLogger(cctx)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			logger.Info("setting up trace exporter", "endpoint", ep)
			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to create trace exporter: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					logger.Error("failed to shutdown trace exporter", "err", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("plume"),
					attribute.String("environment", os.Getenv("ENVIRONMENT")),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		srv, err := NewServer(Config{
			ConfigDir: cctx.String("config-dir"),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

var healthcheckCmd = &cli.Command{
	Name:  "healthcheck",
	Usage: "probe a running daemon's health endpoint",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Value:   "http://localhost:8080/healthcheck",
			EnvVars: []string{"PLUME_HEALTHCHECK_URL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		client := http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(cctx.String("url"))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
		}
		fmt.Println("ok")
		return nil
	},
}
