package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"stockcount/cmd/client/cmd/count"
	"stockcount/cmd/client/cmd/peer"
	"stockcount/cmd/client/cmd/sync"
	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/app/client"
	"stockcount/internal/app/client/config"
	"stockcount/internal/utils/logger"
)

var (
	cfgFile    string
	debug      bool
	serverAddr string
	sessionID  string

	app     *client.App
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "stockcount",
	Short: "Stockcount - учет остатков при инвентаризации, в том числе без связи",
	Long: `Stockcount записывает посчитанные позиции на устройстве и отправляет их
на сервер, когда связь есть. Позиции можно передать коллеге по BLE, по локальной
сети или через сервер-посредник: коллега сольет их со своим подсчетом.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: teardownApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", types.Red("Ошибка:"), err)
		teardownApp(nil, nil)
		stop()
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	types.DisableColorIfPiped()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if serverAddr != "" {
		cfg.ServerAddress = serverAddr
	}
	if sessionID != "" {
		cfg.SessionID = sessionID
	}
	if debug {
		cfg.Env = "local"
	}

	var log *slog.Logger
	log, logFile = logger.NewWithFile(cfg.Env, logger.FileOptions{Path: cfg.LogPath})

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(types.WithApp(cmd.Context(), app))
	return nil
}

func teardownApp(_ *cobra.Command, _ []string) error {
	if app != nil {
		app.Shutdown()
		app = nil
	}
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл (по умолчанию ~/.stockcount/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "подробный журнал в stderr")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "адрес сервера host:port")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "ID сессии инвентаризации")

	rootCmd.AddCommand(
		count.CountCmd,
		count.PendingCmd,
		sync.SyncCmd,
		peer.PeerCmd,
		registerCmd,
		runCmd,
		sessionCmd,
	)
}
