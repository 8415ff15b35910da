// courier-mcp is a standalone MCP server for the Courier engine. It opens
// Courier's SQLite databases directly and serves bookmark and wishlist
// tools over stdio, so an assistant can act on a user's behalf.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewjhunter/courier"
	"github.com/matthewjhunter/courier/internal/logging"
	"github.com/matthewjhunter/courier/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to courier config (YAML or TOML)")
	userID := flag.String("user", "", "default user ID for tool calls (default: bot.owner_id)")
	flag.Parse()

	if err := run(*configPath, *userID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, userID string) error {
	cfg, err := storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	// stdout carries the protocol, so logs go to stderr.
	logger := logging.New(cfg.Log.Level, os.Stderr)

	if userID == "" {
		userID = cfg.Bot.OwnerID
	}
	if userID == "" {
		return errors.New("no default user: pass -user or set bot.owner_id")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := courier.Open(ctx, cfg, &http.Client{Timeout: 15 * time.Second}, logger)
	if err != nil {
		return fmt.Errorf("create courier engine: %w", err)
	}
	defer engine.Close()

	err = newServer(engine, userID, logger).run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
