// Package count команды работы с посчитанными позициями
package count

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
)

var CountCmd = &cobra.Command{
	Use:     "count",
	Aliases: []string{"c"},
	Short:   "Посчитанные позиции",
	Long: `Запись, исправление и просмотр позиций текущей сессии.

Позиция сохраняется на устройстве сразу и отправляется на сервер, когда
появится связь. Порядок отправки совпадает с порядком записи.`,
}

var PendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Сколько позиций ждет отправки",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		n, err := app.PendingCount(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println(types.Green("Все позиции отправлены"))
			return nil
		}
		fmt.Printf("Ждут отправки: %s\n", types.Yellow(n))
		return nil
	},
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("неверное значение --%s: %q", name, s)
	}
	return d, nil
}

func init() {
	CountCmd.AddCommand(AddCmd, ListCmd, EditCmd, RemoveCmd, RetryCmd)
}
