package count

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/domain/count"
)

var (
	listAll    bool
	listErrors bool
	listReview bool
	listFormat string
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список позиций сессии",
	Long: `По умолчанию показывает позиции, которые еще не отправлены.

  --all     все позиции сессии
  --errors  отклоненные сервером (повторить: stockcount count retry)
  --review  позиции с нулевой себестоимостью`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var items []count.Item
		switch {
		case listAll:
			items, err = app.ListAll(ctx)
		case listErrors:
			items, err = app.ListErrors(ctx)
		case listReview:
			items, err = app.NeedsCostReview(ctx)
		default:
			items, err = app.ListPending(ctx)
		}
		if err != nil {
			return fmt.Errorf("ошибка получения списка позиций: %w", err)
		}

		if listFormat == "json" {
			return types.PrintJSON(items)
		}
		return printItemsTable(items)
	},
}

func printItemsTable(items []count.Item) error {
	if len(items) == 0 {
		fmt.Println("Позиции не найдены")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tТовар\tШтрихкод\tКол-во\tСебест.\tСостояние\tИсточник\t\n")
	fmt.Fprintf(w, "---\t---\t---\t---\t---\t---\t---\t\n")

	for _, it := range items {
		origin := "свой"
		if it.Origin == count.OriginCollaborator && it.PeerID != nil {
			origin = "коллега " + *it.PeerID
		}
		state := types.State(it.SyncState)
		if it.LastError != nil && it.SyncState == count.StateError {
			state += " " + types.Truncate(*it.LastError, 40)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			it.LocalID,
			types.Truncate(it.ProductName, 30),
			it.SKU,
			it.Quantity.String(),
			it.UnitCost.StringFixed(2),
			state,
			origin,
		)
	}

	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nВсего позиций: %d\n", len(items))
	return nil
}

func init() {
	ListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "все позиции сессии")
	ListCmd.Flags().BoolVar(&listErrors, "errors", false, "только отклоненные сервером")
	ListCmd.Flags().BoolVar(&listReview, "review", false, "только с нулевой себестоимостью")
	ListCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "формат вывода: table или json")
	ListCmd.MarkFlagsMutuallyExclusive("all", "errors", "review")
}
