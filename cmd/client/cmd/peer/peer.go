// Package peer команды обмена позициями с коллегой
package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/app/client/peer"
)

var (
	peerKind    string
	peerTimeout time.Duration
	peerIP      string
	peerPort    int
	peerID      string
	peerItems   []string
)

var PeerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Обмен позициями с коллегой",
	Long: `Передача позиций на устройство коллеги, который сольет их со своим подсчетом.

Способы передачи:
  lan    HTTP в локальной сети
  ble    Bluetooth LE (нужен драйвер радио)
  relay  через сервер по приглашению CONNECTION_REQUEST_ID`,
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Найти устройства коллег",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), peerTimeout)
		defer cancel()

		fmt.Printf("Поиск (%s, до %v)...\n", peerKind, peerTimeout)
		peers, err := app.DiscoverPeers(ctx, peer.Kind(peerKind))
		if err != nil {
			return fmt.Errorf("ошибка поиска: %w", err)
		}
		if len(peers) == 0 {
			fmt.Println(types.Yellow("Устройства не найдены"))
			return nil
		}
		for _, p := range peers {
			fmt.Printf("%s %s\t%s\t%s\n", types.Green("●"), p.Name, p.Address(), p.Version)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Передать неотправленные позиции коллеге",
	Example: `  stockcount peer send --kind lan --ip 192.168.1.23 --port 3001
  stockcount peer send --kind relay`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		p := peer.Peer{Kind: peer.Kind(peerKind), ID: peerID, IP: peerIP, Port: peerPort}
		if p.Kind == peer.KindLAN && p.IP == "" {
			return fmt.Errorf("для lan нужен --ip")
		}

		res, err := app.SendToPeer(cmd.Context(), p, peerItems)
		if err != nil {
			return fmt.Errorf("ошибка передачи: %w", err)
		}

		switch {
		case res.BatchID == "":
			fmt.Println("Нечего передавать")
		case res.Queued:
			fmt.Printf("%s пакет %s поставлен в очередь, будет передан через сервер\n", types.Green("✓"), res.BatchID)
		default:
			fmt.Printf("%s принято коллегой: %d\n", types.Green("✓"), len(res.Accepted))
			if len(res.Failed) > 0 {
				fmt.Printf("%s не принято: %d, остались в очереди\n", types.Yellow("!"), len(res.Failed))
			}
		}
		return nil
	},
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Принимать пакеты коллег до Ctrl+C",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		fmt.Printf("Прием пакетов (%s). Ctrl+C для выхода.\n", peerKind)
		return app.ReceiveFromPeers(cmd.Context(), peer.Kind(peerKind))
	},
}

func init() {
	PeerCmd.PersistentFlags().StringVarP(&peerKind, "kind", "k", string(peer.KindLAN), "способ передачи: lan, ble, relay")

	discoverCmd.Flags().DurationVarP(&peerTimeout, "timeout", "t", 10*time.Second, "длительность поиска")

	sendCmd.Flags().StringVar(&peerIP, "ip", "", "адрес устройства коллеги (lan)")
	sendCmd.Flags().IntVar(&peerPort, "port", 3001, "порт устройства коллеги (lan)")
	sendCmd.Flags().StringVar(&peerID, "id", "", "ID устройства (ble) или приглашения (relay)")
	sendCmd.Flags().StringSliceVar(&peerItems, "items", nil, "передать только эти позиции")

	PeerCmd.AddCommand(discoverCmd, sendCmd, receiveCmd)
}
