package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "segkv",
		Usage:   "segmented key-value store with fixed-size values",
		Version: versioninfo.Short(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "storage directory for the local backend",
				Value:   "storage",
				EnvVars: []string{"SEGKV_DIR"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "blob store backend (local, s3, minio)",
				Value:   "local",
				EnvVars: []string{"SEGKV_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "bucket",
				Usage:   "bucket name for the s3 and minio backends",
				EnvVars: []string{"SEGKV_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "prefix",
				Usage:   "key prefix inside the bucket",
				EnvVars: []string{"SEGKV_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "object store endpoint (required for minio, optional for s3)",
				EnvVars: []string{"SEGKV_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "ddb-table",
				Usage:   "DynamoDB table used to fence metatable commits on s3",
				EnvVars: []string{"SEGKV_DDB_TABLE"},
			},
			&cli.IntFlag{
				Name:    "value-size",
				Usage:   "fixed value size in bytes",
				Value:   128,
				EnvVars: []string{"SEGKV_VALUE_SIZE"},
			},
			&cli.IntFlag{
				Name:    "buffer-size",
				Usage:   "write buffer capacity in records",
				EnvVars: []string{"SEGKV_BUFFER_SIZE"},
			},
			&cli.IntFlag{
				Name:    "segment-keys",
				Usage:   "maximum keys per segment before a split",
				EnvVars: []string{"SEGKV_SEGMENT_KEYS"},
			},
			&cli.Uint64Flag{
				Name:    "filter-bits",
				Usage:   "bloom filter size in bits",
				EnvVars: []string{"SEGKV_FILTER_BITS"},
			},
			&cli.Int64Flag{
				Name:    "io-limit",
				Usage:   "segment I/O limit in bytes per second (0 = unlimited)",
				EnvVars: []string{"SEGKV_IO_LIMIT"},
			},
			&cli.Int64Flag{
				Name:    "memory-limit",
				Usage:   "resident hot tree limit in bytes (0 = unlimited)",
				EnvVars: []string{"SEGKV_MEMORY_LIMIT"},
			},
			&cli.Int64Flag{
				Name:    "cache-size",
				Usage:   "block cache for the s3 and minio backends in bytes (0 = off)",
				EnvVars: []string{"SEGKV_CACHE_SIZE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity level (eg: warn, info, debug)",
				Value:   "info",
				EnvVars: []string{"SEGKV_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log output format (json, text)",
				Value:   "text",
				EnvVars: []string{"SEGKV_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "write Prometheus metrics to this textfile on exit",
				EnvVars: []string{"SEGKV_METRICS_FILE"},
			},
		},
	}
	app.Commands = []*cli.Command{
		cmdRun,
		cmdGen,
		cmdInspect,
		cmdBackup,
		cmdRestore,
	}
	return app
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cctx.String("log-format")) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func requireArg(cctx *cli.Context, what string) (string, error) {
	p := cctx.Args().First()
	if p == "" {
		return "", fmt.Errorf("need to provide %s", what)
	}
	return p, nil
}
