package count

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/domain/count"
)

var (
	addName string
	addSKU  string
	addQty  string
	addCost string
)

var AddCmd = &cobra.Command{
	Use:   "add",
	Short: "Записать посчитанную позицию",
	Example: `  stockcount count add --name "Leche entera" --sku 7501055300075 --qty 12 --cost 18.50
  stockcount count add --sku 7501055300075 --qty 3`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		qty, err := parseDecimal("qty", addQty)
		if err != nil {
			return err
		}
		cost, err := parseDecimal("cost", addCost)
		if err != nil {
			return err
		}

		item, err := app.AddCount(cmd.Context(), count.AddInput{
			ProductName: addName,
			SKU:         addSKU,
			Quantity:    qty,
			UnitCost:    cost,
			CapturedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("позиция не сохранена: %w", err)
		}

		fmt.Printf("%s %s x %s сохранено (%s)\n", types.Green("✓"), item.ProductName, item.Quantity, item.LocalID)
		if item.NeedsCostReview() {
			fmt.Println(types.Yellow("  себестоимость 0: проверьте позицию перед закрытием сессии"))
		}
		return nil
	},
}

func init() {
	AddCmd.Flags().StringVarP(&addName, "name", "n", "", "название товара")
	AddCmd.Flags().StringVarP(&addSKU, "sku", "s", "", "штрихкод")
	AddCmd.Flags().StringVarP(&addQty, "qty", "q", "", "посчитанное количество")
	AddCmd.Flags().StringVarP(&addCost, "cost", "c", "0", "себестоимость единицы")
	_ = AddCmd.MarkFlagRequired("qty")
}
