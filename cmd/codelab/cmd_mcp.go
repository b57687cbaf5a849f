package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/codelab/internal/config"
	"github.com/felixgeelhaar/codelab/internal/daemon"
	mcpserver "github.com/felixgeelhaar/codelab/internal/mcp"
)

// cmdMCP starts the MCP server on stdio with its own in-process runtime.
// Stdout belongs to the protocol, so logs go to stderr.
func cmdMCP() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	if _, err := config.EnsureCodelabDir(); err != nil {
		return fmt.Errorf("setup codelab directory: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := daemon.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		Manager: rt.Manager,
		Version: Version,
	})

	return mcpSrv.ServeStdio(ctx)
}
