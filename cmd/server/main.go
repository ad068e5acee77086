package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/bluesky-feeds/internal/bskyapi"
	"github.com/blackmichael/bluesky-feeds/internal/config"
	"github.com/blackmichael/bluesky-feeds/internal/credential"
	"github.com/blackmichael/bluesky-feeds/internal/domain"
	"github.com/blackmichael/bluesky-feeds/internal/fakebluesky"
	"github.com/blackmichael/bluesky-feeds/internal/firehose"
	"github.com/blackmichael/bluesky-feeds/internal/helloworld"
	"github.com/blackmichael/bluesky-feeds/internal/httpserver"
	"github.com/blackmichael/bluesky-feeds/internal/oneyearago"
	"github.com/blackmichael/bluesky-feeds/internal/privatelist"
	"github.com/blackmichael/bluesky-feeds/internal/sqlitedb"
	"github.com/blackmichael/bluesky-feeds/internal/todoapp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client := bskyapi.NewClient("")
	holder := credential.NewHolder(cfg.AppHandle, cfg.AppPassword, client)
	client.SetHolder(holder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := holder.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate service session: %w", err)
	}
	logger.Info("authenticated service session", "handle", cfg.AppHandle)

	cursorStore, err := sqlitedb.NewCursorStore(cfg.CursorDBPath)
	if err != nil {
		return fmt.Errorf("open cursor store: %w", err)
	}
	defer cursorStore.Close()

	helloworldProc, err := helloworld.New(cfg.HelloworldDBPath, cfg.PublisherDID, cfg.HelloworldPinnedURI)
	if err != nil {
		return fmt.Errorf("create helloworld processor: %w", err)
	}

	fakeblueskyProc, err := fakebluesky.New(cfg.FakeblueskyDBPath, cfg.PublisherDID)
	if err != nil {
		return fmt.Errorf("create fakebluesky processor: %w", err)
	}

	todoappProc, err := todoapp.New(cfg.TodoappDBPath, cfg.PublisherDID)
	if err != nil {
		return fmt.Errorf("create todoapp processor: %w", err)
	}

	oneyearagoProc, err := oneyearago.New(cfg.OneyearagoDBPath, cfg.PublisherDID, client, logger)
	if err != nil {
		return fmt.Errorf("create oneyearago processor: %w", err)
	}

	privatelistProc, err := privatelist.New(cfg.PrivatelistDBPath, cfg.PublisherDID, cfg.PrivatelistPinnedURI, client)
	if err != nil {
		return fmt.Errorf("create privatelist processor: %w", err)
	}

	registry := domain.NewRegistry()
	registry.Register(helloworldProc)
	registry.Register(fakeblueskyProc)
	registry.Register(todoappProc)
	registry.Register(oneyearagoProc)
	registry.Register(privatelistProc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	router := firehose.NewRouter(registry, logger)
	subscriber := firehose.NewSubscriber(cfg.FirehoseURL, !cfg.EnableJetstream, cfg.JetstreamCompress, router, cursorStore, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("firehose subscriber exited with error", "error", err)
		}
	}()

	server := httpserver.NewServer(cfg, registry, privatelistProc, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "hostname", cfg.Hostname)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
