package count

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/domain/count"
)

var (
	editQty  string
	editCost string
)

var EditCmd = &cobra.Command{
	Use:   "edit <local-id>",
	Short: "Исправить количество или себестоимость",
	Long: `Исправление отправляется на сервер так же, как новая позиция.
Уже отправленная позиция будет обновлена на сервере, а не создана заново.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var in count.EditInput
		if cmd.Flags().Changed("qty") {
			qty, err := parseDecimal("qty", editQty)
			if err != nil {
				return err
			}
			in.Quantity = &qty
		}
		if cmd.Flags().Changed("cost") {
			cost, err := parseDecimal("cost", editCost)
			if err != nil {
				return err
			}
			in.UnitCost = &cost
		}

		item, err := app.EditCount(cmd.Context(), args[0], in)
		if err != nil {
			return fmt.Errorf("позиция не исправлена: %w", err)
		}
		fmt.Printf("%s %s: %s x %s\n", types.Green("✓"), item.ProductName, item.Quantity, item.UnitCost.StringFixed(2))
		return nil
	},
}

var RemoveCmd = &cobra.Command{
	Use:     "rm <local-id>",
	Aliases: []string{"delete"},
	Short:   "Удалить позицию с устройства",
	Long:    `Удаляет позицию и ее задачи в очереди. Уже отправленная строка на сервере не удаляется.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if err := app.DeleteCount(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("ошибка удаления позиции: %w", err)
		}
		fmt.Println(types.Green("✓ Позиция удалена"))
		return nil
	},
}

var RetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Снова поставить в очередь позиции, отклоненные сервером",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		n, err := app.RetryFailed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s в очереди снова: %d\n", types.Green("✓"), n)
		return nil
	},
}

func init() {
	EditCmd.Flags().StringVarP(&editQty, "qty", "q", "", "новое количество")
	EditCmd.Flags().StringVarP(&editCost, "cost", "c", "", "новая себестоимость")
}
