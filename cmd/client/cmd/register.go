package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
)

var pairingSecret string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать устройство на сервере",
	Long: `Получает токен устройства по секрету сопряжения, выданному администратором.
Без токена позиции копятся на устройстве и не отправляются.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		secret := pairingSecret
		if secret == "" {
			secret, err = types.ReadSecret("Секрет сопряжения: ")
			if err != nil {
				return err
			}
		}
		if secret == "" {
			return fmt.Errorf("секрет сопряжения не может быть пустым")
		}

		if err := app.Register(cmd.Context(), secret); err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println(types.Green("✓ Устройство зарегистрировано"))
		fmt.Println("Отправить накопленные позиции: stockcount sync")
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&pairingSecret, "secret", "", "секрет сопряжения (если не задан, будет запрошен)")
}
