package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/thisisjab/fuxi/api"
	"github.com/thisisjab/fuxi/config"
	"github.com/thisisjab/fuxi/notify"
)

func main() {
	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "./.config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(fmt.Errorf("cannot create logger: %w", err))
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			logger.Error("server panic", "error", r)
		}
	}()

	// Setup signal handling to catch Ctrl+C (SIGINT) or Terminate (SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	compiler, err := cfg.Compiler()
	if err != nil {
		logger.Error("cannot create compiler.", "error", err)
		os.Exit(1)
	}

	store, err := cfg.NewStorage(logger)
	if err != nil {
		logger.Error("storage error.", "error", err)
		os.Exit(1)
	}

	if err := store.Connect(ctx); err != nil {
		logger.Error("cannot connect to storage.", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("cannot close storage.", "error", err)
		}
	}()

	services := api.Services{Storage: store, Compiler: compiler}

	var wg sync.WaitGroup

	if pc := cfg.Notify.Pusher; pc != nil {
		p, err := notify.NewPusher(logger, *pc)
		if err != nil {
			logger.Error("cannot create pusher.", "error", err)
			os.Exit(1)
		}

		dispatcher := notify.NewDispatcher(logger, p, pc.QueueSize)
		services.Publisher = dispatcher
		wg.Go(func() { dispatcher.Run(ctx) })
	}

	if fc := cfg.Notify.Feishu; fc != nil {
		var cards notify.CardBuilder = notify.DefaultCards{}

		if fc.CardScript != "" {
			lcb, err := notify.NewLuaCardBuilder(logger, fc.CardScript)
			if err != nil {
				logger.Error("cannot load card script.", "error", err)
				os.Exit(1)
			}
			cards = lcb

			wg.Go(func() {
				if err := lcb.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("card script watcher stopped.", "error", err)
				}
			})
		}

		f, err := notify.NewFeishu(*fc, cards)
		if err != nil {
			logger.Error("cannot create feishu client.", "error", err)
			os.Exit(1)
		}
		services.Feishu = f
	}

	// Create server
	server, err := api.NewServer(cfg.API, logger, services)
	if err != nil {
		logger.Error("server error.", "error", err)
		os.Exit(1)
	}

	// Run server
	if err := server.Serve(ctx); err != nil {
		logger.Error("server error.", "error", err)
	}

	cancel()
	wg.Wait()

	logger.Info("server stopped.")
}
