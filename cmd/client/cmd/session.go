package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/domain/count"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Управление сессиями на устройстве",
}

var purgeCmd = &cobra.Command{
	Use:   "purge [session-id]",
	Short: "Удалить с устройства полностью отправленную сессию",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var id string
		if len(args) == 1 {
			id = args[0]
		}

		n, err := app.PurgeSession(cmd.Context(), id)
		if errors.Is(err, count.ErrSessionOpen) {
			return fmt.Errorf("в сессии есть неотправленные позиции, сначала выполните stockcount sync (%w)", err)
		}
		if err != nil {
			return err
		}

		fmt.Printf("%s удалено позиций: %d\n", types.Green("✓"), n)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(purgeCmd)
}
