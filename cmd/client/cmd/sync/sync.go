// Package sync команда ручной синхронизации
package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stockcount/cmd/client/cmd/types"
	"stockcount/internal/app/client"
)

var (
	syncStatus bool
	jsonOutput bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Отправить очередь на сервер сейчас",
	Long: `Обходит очередь немедленно, не дожидаясь таймера и без задержек повторов.
Позиции, отклоненные сервером, остаются с ошибкой: stockcount count list --errors.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if syncStatus {
			return showStatus(cmd, app)
		}
		return runSync(cmd, app)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	start := time.Now()
	res, err := app.RequestSync(cmd.Context())
	if errors.Is(err, client.ErrNotRegistered) {
		return err
	}
	if err != nil {
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}

	if jsonOutput {
		return types.PrintJSON(res)
	}
	if res.Skipped {
		fmt.Println(types.Yellow("Синхронизация уже выполняется в этом процессе"))
		return nil
	}

	fmt.Printf("%s Синхронизация завершена за %v\n", types.Green("✓"), time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Отправлено:        %d\n", res.Synced)
	if res.Merged > 0 {
		fmt.Printf("  Влито от коллег:   %d\n", res.Merged)
	}
	if res.Retried > 0 {
		fmt.Printf("  %s %d\n", types.Yellow("Повтор позже:     "), res.Retried)
	}
	if res.Failed > 0 {
		fmt.Printf("  %s %d (stockcount count list --errors)\n", types.Red("Отклонено:        "), res.Failed)
	}
	if res.Waiting > 0 {
		fmt.Printf("  Ждут связи:        %d\n", res.Waiting)
	}
	return nil
}

func showStatus(cmd *cobra.Command, app *client.App) error {
	st, err := app.Status(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return types.PrintJSON(st)
	}

	fmt.Println(types.Bold("=== Статус синхронизации ==="))

	fmt.Print("Сервер:        ")
	if st.Online {
		fmt.Println(types.Green("доступен"))
	} else {
		fmt.Println(types.Red("недоступен"))
	}
	fmt.Print("Регистрация:   ")
	if st.Registered {
		fmt.Println(types.Green("выполнена"))
	} else {
		fmt.Println(types.Red("нет (stockcount register)"))
	}

	session := st.SessionID
	if session == "" {
		session = types.Yellow("не задана")
	}
	fmt.Printf("Сессия:        %s\n", session)
	fmt.Printf("Ждут отправки: %d\n", st.Pending)
	fmt.Printf("Задач:         %d\n", st.Tasks)
	if st.Errors > 0 {
		fmt.Printf("Отклонено:     %s\n", types.Red(st.Errors))
	}
	if st.NeedsReview > 0 {
		fmt.Printf("Себест. 0:     %s\n", types.Yellow(st.NeedsReview))
	}

	s := st.Stats
	fmt.Println()
	fmt.Println("Статистика:")
	fmt.Printf("  Обходов очереди: %d\n", s.TotalDrains)
	fmt.Printf("  Отправлено:      %d\n", s.TotalSynced)
	fmt.Printf("  Повторов:        %d\n", s.TotalRetried)
	fmt.Printf("  Отклонено:       %d\n", s.TotalFailed)
	fmt.Printf("  Влито:           %d\n", s.TotalMerged)
	fmt.Printf("  Среднее время:   %.2f сек\n", s.AvgDrainDuration)
	if !s.LastSuccessful.IsZero() {
		fmt.Printf("  Последний успешный: %s\n", s.LastSuccessful.Local().Format("2006-01-02 15:04:05"))
	}
	if !s.LastFailed.IsZero() {
		fmt.Printf("  Последний с ошибками: %s\n", s.LastFailed.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
}
