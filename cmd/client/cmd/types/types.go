// Package types общее для подкоманд клиента: приложение из контекста команды и вывод.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stockcount/internal/app/client"
	"stockcount/internal/domain/count"
)

type ctxKey struct{}

// ClientAppKey ключ *client.App в контексте команды
var ClientAppKey = ctxKey{}

var errNoApp = errors.New("приложение не инициализировано")

func WithApp(ctx context.Context, app *client.App) context.Context {
	return context.WithValue(ctx, ClientAppKey, app)
}

// App достает приложение, созданное в PersistentPreRunE корневой команды
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, errNoApp
	}
	return app, nil
}

var (
	Green  = color.New(color.FgGreen).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)

// DisableColorIfPiped вывод в файл или конвейер без escape-последовательностей
func DisableColorIfPiped() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}

// State состояние позиции в цвете
func State(s count.SyncState) string {
	switch s {
	case count.StateSynced:
		return Green("отправлено")
	case count.StateInFlight:
		return Cyan("отправляется")
	case count.StateError:
		return Red("ошибка")
	default:
		return Yellow("в очереди")
	}
}

func PrintJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// ReadSecret читает секрет без эха, если stdin - терминал
func ReadSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var s string
		if _, err := fmt.Scanln(&s); err != nil {
			return "", fmt.Errorf("ошибка чтения: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("ошибка чтения: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
