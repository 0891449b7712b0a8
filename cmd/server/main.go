package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api"
	"stockcount/internal/app/server/config"
	"stockcount/internal/domain/device"
	"stockcount/internal/infrastructure/storage/postgres"
	"stockcount/internal/utils/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	root := &cobra.Command{
		Use:   "stockcount-server",
		Short: "Сервер инвентаризации: строки сессий, каталог, ретрансляция пакетов коллег",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Вывести bcrypt-хэш секрета сопряжения для PAIRING_SECRET_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := device.HashSecret(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.Server.RunAddress, "version", config.Version)

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("init storage", "error", err)
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("close storage", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(cfg, storage, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", slog.Any("error", err))
			return err
		}
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			return err
		}
		return nil
	}
}
