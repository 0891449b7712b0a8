package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/app/client/events"
	"stockcount/internal/app/client/peer"
)

var receiveKind string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Фоновая синхронизация до Ctrl+C",
	Long: `Следит за связью с сервером и обходит очередь по таймеру и при восстановлении связи.
С флагом --receive дополнительно принимает пакеты коллег.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		unsubscribe := app.Subscribe(printEvent)
		defer unsubscribe()

		if receiveKind != "" {
			kind := peer.Kind(receiveKind)
			go func() {
				if err := app.ReceiveFromPeers(ctx, kind); err != nil {
					fmt.Printf("%s прием пакетов остановлен: %v\n", types.Red("✗"), err)
				}
			}()
		}

		fmt.Println(types.Bold("Синхронизация запущена. Ctrl+C для выхода."))
		return app.Run(ctx)
	},
}

func printEvent(e events.Event) {
	ts := time.Now().Format("15:04:05")
	switch e.Kind {
	case events.ItemSynced:
		fmt.Printf("%s %s позиция %s отправлена\n", ts, types.Green("✓"), e.LocalID)
	case events.ItemRetrying:
		fmt.Printf("%s %s позиция %s будет отправлена повторно: %s\n", ts, types.Yellow("↻"), e.LocalID, e.Err)
	case events.ItemFailed:
		fmt.Printf("%s %s позиция %s отклонена: %s\n", ts, types.Red("✗"), e.LocalID, e.Err)
	case events.ConnectivityChanged:
		if e.Online {
			fmt.Printf("%s %s сервер доступен\n", ts, types.Green("●"))
		} else {
			fmt.Printf("%s %s нет связи с сервером\n", ts, types.Red("●"))
		}
	case events.BatchReceived:
		fmt.Printf("%s %s принят пакет от %s: %d позиций\n", ts, types.Cyan("⇣"), e.PeerID, e.Count)
	case events.BatchMerged:
		fmt.Printf("%s %s влито позиций коллеги %s: %d\n", ts, types.Cyan("⇄"), e.PeerID, e.Count)
	}
}

func init() {
	runCmd.Flags().StringVar(&receiveKind, "receive", "", "принимать пакеты коллег: lan или ble")
}
