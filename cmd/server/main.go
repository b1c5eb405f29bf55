package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatscreen "github.com/MegaGrindStone/chatscreen"
	"github.com/MegaGrindStone/chatscreen/internal/handlers"
	"github.com/MegaGrindStone/chatscreen/internal/screen"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	configPath string
	port       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "chatscreen",
		Short:        "Serve the AI assistant chat screen",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "",
		"path to the config file (default <user config dir>/chatscreen/config.yaml)")
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "port to listen on, overrides the config file")

	return cmd
}

func run(ctx context.Context, f flags) error {
	required := f.configPath != ""
	if !required {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("error getting user config dir: %w", err)
		}
		f.configPath = filepath.Join(cfgDir, "chatscreen", "config.yaml")
	}

	cfg, err := loadConfig(f.configPath, required)
	if err != nil {
		return err
	}
	if f.port != "" {
		cfg.Port = f.port
	}

	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	responder, err := cfg.Backend.responder(logger)
	if err != nil {
		return fmt.Errorf("error creating backend: %w", err)
	}

	store, err := screen.NewStore(responder, cfg.screenOptions(logger))
	if err != nil {
		return fmt.Errorf("error creating screen store: %w", err)
	}

	renderer, err := handlers.NewRenderer(handlers.RenderMode(cfg.Render))
	if err != nil {
		return err
	}
	if renderer.Mode() == handlers.RenderRaw {
		logger.Warn("Assistant replies are rendered as raw HTML without sanitization")
	}

	m, err := handlers.NewMain(store, renderer, cfg.Title, logger)
	if err != nil {
		return fmt.Errorf("error creating handlers: %w", err)
	}

	// Serve static files
	staticFS, err := fs.Sub(chatscreen.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	m.Routes(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", slog.String("addr", srv.Addr), slog.String("render", cfg.Render))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Start shutdown")

		// Create context with timeout for shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				return fmt.Errorf("forcing server close: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}
