package client

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
	"stockcount/internal/domain/merge"
	"stockcount/internal/infrastructure/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const itemColumns = `local_id, session_id, product_id, product_name, sku, quantity, unit_cost,
	captured_at, sync_state, origin, remote_line_id, last_error, peer_id, temp_id, relay_batch, version, updated_at`

const taskColumns = `task_id, seq, kind, item_key, payload, attempts, created_at, last_attempt_at, last_error`

// SQLiteStorage локальное хранилище позиций и очереди задач.
// Единственный источник истины о том, что уже синхронизировано.
type SQLiteStorage struct {
	db  *sqlx.DB
	ids *count.IDGenerator
	log *slog.Logger
	now func() time.Time
}

func NewSQLiteStorage(path string, log *slog.Logger) (*SQLiteStorage, error) {
	mg := migration.NewMigration("iofs", "sqlite3://"+path, migration.EmbeddedEngine(migrationsFS, "migrations"))
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("ошибка миграции локальной базы: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// Все записи идут через одно соединение: транзакции слияния не пересекаются
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:  db,
		ids: count.NewIDGenerator(),
		log: log.With("component", "local_store"),
		now: func() time.Time { return time.Now().UTC() },
	}

	if err := storage.recover(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// recover возвращает зависшие in-flight позиции в pending и сдвигает генератор идентификаторов
func (s *SQLiteStorage) recover(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE counted_items SET sync_state = ? WHERE sync_state = ?`,
		count.StatePending, count.StateInFlight)
	if err != nil {
		return fmt.Errorf("ошибка восстановления состояния: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Info("Позиции in-flight возвращены в очередь", "count", n)
	}

	var last sql.NullString
	if err := s.db.GetContext(ctx, &last,
		`SELECT MAX(local_id) FROM counted_items WHERE origin = ?`, count.OriginSelf); err != nil {
		return fmt.Errorf("ошибка чтения последнего идентификатора: %w", err)
	}
	if last.Valid {
		if ms, ok := count.MillisOf(last.String); ok {
			s.ids.Seed(ms)
		}
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveCount сохраняет новую позицию в состоянии pending и возвращает ее локальный идентификатор
func (s *SQLiteStorage) SaveCount(ctx context.Context, item *count.Item) (string, error) {
	s.prepareNew(item)
	if err := insertItem(ctx, s.db, item); err != nil {
		return "", fmt.Errorf("ошибка сохранения позиции: %w", err)
	}
	return item.LocalID, nil
}

// CaptureCount сохраняет новую позицию вместе с задачей add-count в одной транзакции.
// При ошибке не остается ни позиции, ни задачи.
func (s *SQLiteStorage) CaptureCount(ctx context.Context, item *count.Item) (string, error) {
	s.prepareNew(item)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertItem(ctx, tx, item); err != nil {
			return fmt.Errorf("ошибка сохранения позиции: %w", err)
		}
		return s.enqueueUniqueTx(ctx, tx, count.TaskAddCount, item.LocalID, itemPayload{LocalID: item.LocalID})
	})
	if err != nil {
		return "", err
	}
	return item.LocalID, nil
}

func (s *SQLiteStorage) prepareNew(item *count.Item) {
	if item.LocalID == "" {
		item.LocalID = s.ids.Next()
	}
	now := s.now()
	if item.CapturedAt.IsZero() {
		item.CapturedAt = now
	}
	if item.Origin == "" {
		item.Origin = count.OriginSelf
	}
	item.CapturedAt = item.CapturedAt.UTC()
	item.SyncState = count.StatePending
	item.Version = 1
	item.UpdatedAt = now
}

func insertItem(ctx context.Context, q sqlx.ExecerContext, item *count.Item) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO counted_items (local_id, session_id, product_id, product_name, name_key, sku,
		                           quantity, unit_cost, captured_at, sync_state, origin,
		                           remote_line_id, last_error, peer_id, temp_id, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.LocalID, item.SessionID, item.ProductID, item.ProductName, nameKey(item.ProductName), item.SKU,
		item.Quantity.String(), item.UnitCost.String(), item.CapturedAt, item.SyncState, item.Origin,
		item.RemoteLineID, item.LastError, item.PeerID, item.TempID, item.Version, item.UpdatedAt)
	return err
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

func (s *SQLiteStorage) GetCount(ctx context.Context, localID string) (*count.Item, error) {
	return getItem(ctx, s.db, localID)
}

func getItem(ctx context.Context, q sqlx.QueryerContext, localID string) (*count.Item, error) {
	var item count.Item
	err := sqlx.GetContext(ctx, q, &item,
		`SELECT `+itemColumns+` FROM counted_items WHERE local_id = ?`, localID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, count.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения позиции: %w", err)
	}
	return &item, nil
}

func (s *SQLiteStorage) selectItems(ctx context.Context, query string, args ...interface{}) ([]count.Item, error) {
	items := []count.Item{}
	if err := s.db.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM counted_items `+query, args...); err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	return items, nil
}

// ListAll все позиции сессии, новые сверху
func (s *SQLiteStorage) ListAll(ctx context.Context, sessionID string) ([]count.Item, error) {
	return s.selectItems(ctx, `WHERE session_id = ? ORDER BY captured_at DESC, local_id DESC`, sessionID)
}

// ListPending позиции, еще не подтвержденные сервером (pending и in-flight), новые сверху
func (s *SQLiteStorage) ListPending(ctx context.Context, sessionID string) ([]count.Item, error) {
	return s.selectItems(ctx, `WHERE session_id = ? AND sync_state IN (?, ?) ORDER BY captured_at DESC, local_id DESC`,
		sessionID, count.StatePending, count.StateInFlight)
}

// ListErrors позиции, отклоненные сервером и ждущие исправления пользователем
func (s *SQLiteStorage) ListErrors(ctx context.Context, sessionID string) ([]count.Item, error) {
	return s.selectItems(ctx, `WHERE session_id = ? AND sync_state = ? ORDER BY captured_at DESC, local_id DESC`,
		sessionID, count.StateError)
}

// ListNeedsCostReview позиции с нулевой себестоимостью; остаются в выборке до исправления
func (s *SQLiteStorage) ListNeedsCostReview(ctx context.Context, sessionID string) ([]count.Item, error) {
	return s.selectItems(ctx, `WHERE session_id = ? AND origin = ? AND CAST(unit_cost AS REAL) = 0 ORDER BY captured_at DESC, local_id DESC`,
		sessionID, count.OriginSelf)
}

func (s *SQLiteStorage) CountPending(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM counted_items WHERE session_id = ? AND sync_state IN (?, ?)`,
		sessionID, count.StatePending, count.StateInFlight)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета позиций: %w", err)
	}
	return n, nil
}

// ListUnqueued собственные pending позиции без задачи в очереди.
// Позиции, переданные посреднику, доставляет его задача.
func (s *SQLiteStorage) ListUnqueued(ctx context.Context) ([]count.Item, error) {
	return s.selectItems(ctx, `
		WHERE origin = ? AND sync_state = ? AND relay_batch IS NULL
		  AND NOT EXISTS (SELECT 1 FROM sync_tasks t WHERE t.item_key = counted_items.local_id)
		ORDER BY local_id`, count.OriginSelf, count.StatePending)
}

// UpdateValues исправление пользователем. synced и error снова открываются как pending,
// а для доставки исправления ставится задача, если ее еще нет.
func (s *SQLiteStorage) UpdateValues(ctx context.Context, localID string, qty, cost *decimal.Decimal) (*count.Item, error) {
	var out *count.Item
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		item, err := getItem(ctx, tx, localID)
		if err != nil {
			return err
		}
		if qty != nil {
			item.Quantity = *qty
		}
		if cost != nil {
			item.UnitCost = *cost
		}
		if err := s.reopenTx(ctx, tx, item); err != nil {
			return err
		}
		out = item
		return nil
	})
	return out, err
}

// reopenTx записывает новые значения позиции и гарантирует задачу доставки
func (s *SQLiteStorage) reopenTx(ctx context.Context, tx *sqlx.Tx, item *count.Item) error {
	item.Version++
	item.UpdatedAt = s.now()
	if item.SyncState == count.StateSynced || item.SyncState == count.StateError {
		// после отказа посредника позиция снова идет на сервер напрямую
		if item.SyncState == count.StateError {
			item.RelayBatch = nil
		}
		item.SyncState = count.StatePending
	}
	item.LastError = nil

	_, err := tx.ExecContext(ctx, `
		UPDATE counted_items
		SET quantity = ?, unit_cost = ?, sync_state = ?, last_error = NULL, relay_batch = ?, version = ?, updated_at = ?
		WHERE local_id = ?
	`, item.Quantity.String(), item.UnitCost.String(), item.SyncState, item.RelayBatch, item.Version, item.UpdatedAt, item.LocalID)
	if err != nil {
		return fmt.Errorf("ошибка обновления позиции: %w", err)
	}
	if item.RelayBatch != nil {
		// задача посредника соберет пакет из текущих значений
		return nil
	}

	kind := count.TaskAddCount
	if item.RemoteLineID != nil {
		kind = count.TaskUpdateCount
	}
	return s.enqueueUniqueTx(ctx, tx, kind, item.LocalID, itemPayload{LocalID: item.LocalID})
}

// Reopen повторно ставит позицию в очередь без изменения значений
func (s *SQLiteStorage) Reopen(ctx context.Context, localID string) (*count.Item, error) {
	return s.UpdateValues(ctx, localID, nil, nil)
}

func (s *SQLiteStorage) MarkInFlight(ctx context.Context, localID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE counted_items SET sync_state = ? WHERE local_id = ? AND sync_state = ?`,
		count.StateInFlight, localID, count.StatePending)
	if err != nil {
		return fmt.Errorf("ошибка смены состояния позиции: %w", err)
	}
	return nil
}

// MarkSynced идемпотентный переход в synced; пустой remoteLineID сохраняет прежний
func (s *SQLiteStorage) MarkSynced(ctx context.Context, localID, remoteLineID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE counted_items
		SET sync_state = ?, last_error = NULL, remote_line_id = COALESCE(NULLIF(?, ''), remote_line_id)
		WHERE local_id = ?
	`, count.StateSynced, remoteLineID, localID)
	if err != nil {
		return fmt.Errorf("ошибка отметки синхронизации: %w", err)
	}
	return nil
}

// SetSyncState явная смена состояния; lastError nil очищает причину
func (s *SQLiteStorage) SetSyncState(ctx context.Context, localID string, state count.SyncState, lastError *string) error {
	if err := state.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE counted_items SET sync_state = ?, last_error = ? WHERE local_id = ?`,
		state, lastError, localID)
	if err != nil {
		return fmt.Errorf("ошибка смены состояния позиции: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return count.ErrNotFound
	}
	return nil
}

// AckSent фиксирует подтверждение сервера: задача удаляется, позиция становится synced.
// Если позицию исправили, пока запрос был в пути, она остается pending и получает задачу исправления.
func (s *SQLiteStorage) AckSent(ctx context.Context, taskID, localID, remoteLineID string, sentVersion int64) (bool, error) {
	synced := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := deleteTask(ctx, tx, taskID); err != nil {
			return err
		}

		item, err := getItem(ctx, tx, localID)
		if errors.Is(err, count.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if remoteLineID != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE counted_items SET remote_line_id = ? WHERE local_id = ?`, remoteLineID, localID); err != nil {
				return fmt.Errorf("ошибка сохранения идентификатора строки: %w", err)
			}
			item.RemoteLineID = &remoteLineID
		}

		if item.Version != sentVersion {
			if _, err := tx.ExecContext(ctx,
				`UPDATE counted_items SET sync_state = ? WHERE local_id = ?`, count.StatePending, localID); err != nil {
				return fmt.Errorf("ошибка смены состояния позиции: %w", err)
			}
			return s.enqueueUniqueTx(ctx, tx, count.TaskUpdateCount, localID, itemPayload{LocalID: localID})
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE counted_items SET sync_state = ?, last_error = NULL WHERE local_id = ?`,
			count.StateSynced, localID); err != nil {
			return fmt.Errorf("ошибка отметки синхронизации: %w", err)
		}
		synced = true
		return nil
	})
	return synced, err
}

// RetryItem временная ошибка: попытка засчитана, позиция снова pending
func (s *SQLiteStorage) RetryItem(ctx context.Context, taskID, localID, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.recordFailureTx(ctx, tx, taskID, reason); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE counted_items SET sync_state = ?, last_error = ? WHERE local_id = ? AND sync_state = ?`,
			count.StatePending, reason, localID, count.StateInFlight)
		if err != nil {
			return fmt.Errorf("ошибка смены состояния позиции: %w", err)
		}
		return nil
	})
}

// FailItem неисправимая ошибка: задача снимается, позиция переходит в error и видна пользователю
func (s *SQLiteStorage) FailItem(ctx context.Context, taskID, localID, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := deleteTask(ctx, tx, taskID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE counted_items SET sync_state = ?, last_error = ? WHERE local_id = ?`,
			count.StateError, reason, localID)
		if err != nil {
			return fmt.Errorf("ошибка смены состояния позиции: %w", err)
		}
		return nil
	})
}

// MarkDelivered позиции переданы коллеге и подтверждены им: доставку на сервер выполнит он
func (s *SQLiteStorage) MarkDelivered(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(
			`UPDATE counted_items SET sync_state = ?, last_error = NULL, relay_batch = NULL WHERE local_id IN (?)`,
			count.StateSynced, localIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("ошибка отметки доставки: %w", err)
		}

		query, args, err = sqlx.In(`DELETE FROM sync_tasks WHERE item_key IN (?)`, localIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("ошибка удаления задач: %w", err)
		}
		return nil
	})
}

// DeleteCount удаление позиции пользователем вместе с ее задачами
func (s *SQLiteStorage) DeleteCount(ctx context.Context, localID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM counted_items WHERE local_id = ?`, localID)
		if err != nil {
			return fmt.Errorf("ошибка удаления позиции: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return count.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_tasks WHERE item_key = ?`, localID); err != nil {
			return fmt.Errorf("ошибка удаления задач: %w", err)
		}
		return nil
	})
}

// PurgeSession удаляет завершенную сессию; отказывает, пока есть несинхронизированные позиции
func (s *SQLiteStorage) PurgeSession(ctx context.Context, sessionID string) (int, error) {
	var removed int
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var open int
		if err := tx.GetContext(ctx, &open,
			`SELECT COUNT(*) FROM counted_items WHERE session_id = ? AND sync_state <> ?`,
			sessionID, count.StateSynced); err != nil {
			return fmt.Errorf("ошибка проверки сессии: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("%w: %d", count.ErrSessionOpen, open)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM counted_items WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("ошибка удаления сессии: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = int(n)
		return nil
	})
	return removed, err
}

// FindMatching ищет собственную позицию сессии: сначала штрихкод, затем имя без учета регистра
func (s *SQLiteStorage) FindMatching(ctx context.Context, sessionID, sku, name string) (*count.Item, error) {
	return findMatching(ctx, s.db, sessionID, sku, name)
}

func findMatching(ctx context.Context, q sqlx.QueryerContext, sessionID, sku, name string) (*count.Item, error) {
	lookups := []struct {
		column, value string
	}{
		{"sku", sku},
		{"name_key", nameKey(name)},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		var item count.Item
		err := sqlx.GetContext(ctx, q, &item, `SELECT `+itemColumns+` FROM counted_items
			WHERE session_id = ? AND origin = ? AND `+l.column+` = ?
			ORDER BY captured_at, local_id LIMIT 1`, sessionID, count.OriginSelf, l.value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка поиска совпадения: %w", err)
		}
		return &item, nil
	}
	return nil, nil
}

// SaveCollaboratorItems надежно сохраняет принятый пакет как строки origin=collaborator.
// Повторно принятые временные идентификаторы и уже влитые позиции пропускаются.
func (s *SQLiteStorage) SaveCollaboratorItems(ctx context.Context, sessionID string, batch count.Batch) (int, error) {
	stored := 0
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		for _, it := range batch.Items {
			var merged bool
			if err := tx.GetContext(ctx, &merged,
				`SELECT EXISTS(SELECT 1 FROM merged_temp_ids WHERE peer_id = ? AND temp_id = ?)`,
				batch.PeerID, it.TempID); err != nil {
				return fmt.Errorf("ошибка проверки слияния: %w", err)
			}
			if merged {
				continue
			}

			peerID, tempID := batch.PeerID, it.TempID
			capturedAt := it.CapturedAt
			if capturedAt.IsZero() {
				capturedAt = batch.SentAt
			}
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO counted_items (local_id, session_id, product_id, product_name, name_key, sku,
				                                     quantity, unit_cost, captured_at, sync_state, origin,
				                                     peer_id, temp_id, version, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
			`, "c-"+uuid.NewString(), sessionID, it.ProductID, it.ProductName, nameKey(it.ProductName), it.SKU,
				it.Quantity.String(), it.UnitCost.String(), capturedAt.UTC(), count.StatePending, count.OriginCollaborator,
				peerID, tempID, now)
			if err != nil {
				return fmt.Errorf("ошибка сохранения позиции коллеги: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				stored++
			}
		}
		return nil
	})
	return stored, err
}

// ListCollaborator позиции коллег, ожидающие слияния, в порядке приема
func (s *SQLiteStorage) ListCollaborator(ctx context.Context) ([]count.Item, error) {
	return s.selectItems(ctx, `WHERE origin = ? ORDER BY peer_id, updated_at, local_id`, count.OriginCollaborator)
}

// SetCollaboratorError сохраняет причину неудачного слияния для показа пользователю
func (s *SQLiteStorage) SetCollaboratorError(ctx context.Context, peerID, tempID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE counted_items SET last_error = ? WHERE origin = ? AND peer_id = ? AND temp_id = ?`,
		reason, count.OriginCollaborator, peerID, tempID)
	return err
}

// ==================== Очередь ====================

type itemPayload struct {
	LocalID string `json:"localId"`
}

// Enqueue добавляет задачу в конец очереди; сеть не используется
func (s *SQLiteStorage) Enqueue(ctx context.Context, task *count.Task) error {
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_tasks (task_id, kind, item_key, payload, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, task.TaskID, task.Kind, task.ItemKey, task.Payload, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка постановки задачи в очередь: %w", err)
	}
	task.Seq, _ = res.LastInsertId()
	return nil
}

// EnqueueUnique ставит задачу, только если такой же задачи для ключа еще нет
func (s *SQLiteStorage) EnqueueUnique(ctx context.Context, kind count.TaskKind, key string, payload interface{}) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return s.enqueueUniqueTx(ctx, tx, kind, key, payload)
	})
}

func (s *SQLiteStorage) enqueueUniqueTx(ctx context.Context, tx *sqlx.Tx, kind count.TaskKind, key string, payload interface{}) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM sync_tasks WHERE item_key = ? AND kind = ?)`, key, kind); err != nil {
		return fmt.Errorf("ошибка проверки очереди: %w", err)
	}
	if exists {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации задачи: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_tasks (task_id, kind, item_key, payload, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, uuid.NewString(), kind, key, data, s.now())
	if err != nil {
		return fmt.Errorf("ошибка постановки задачи в очередь: %w", err)
	}
	return nil
}

// ListTasks вся очередь в порядке постановки
func (s *SQLiteStorage) ListTasks(ctx context.Context) ([]count.Task, error) {
	tasks := []count.Task{}
	if err := s.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM sync_tasks ORDER BY created_at, seq`); err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}
	return tasks, nil
}

// DueTasks задачи, готовые к отправке. При nil backoff задержка после неудачи не учитывается.
func (s *SQLiteStorage) DueTasks(ctx context.Context, now time.Time, backoff *Backoff) ([]count.Task, error) {
	tasks, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if backoff == nil {
		return tasks, nil
	}
	due := tasks[:0]
	for _, t := range tasks {
		if backoff.Ready(t, now) {
			due = append(due, t)
		}
	}
	return due, nil
}

// UpdateTaskPayload заменяет тело задачи, например на неудавшуюся часть пакета
func (s *SQLiteStorage) UpdateTaskPayload(ctx context.Context, taskID string, payload []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sync_tasks SET payload = ? WHERE task_id = ?`, payload, taskID)
	if err != nil {
		return fmt.Errorf("ошибка обновления задачи: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return count.ErrTaskNotFound
	}
	return nil
}

// HandOff снимает задачи отправки позиций на сервер и ставит одну задачу передачи через посредника.
// Позиция доставляется только одним путем.
func (s *SQLiteStorage) HandOff(ctx context.Context, kind count.TaskKind, key string, payload interface{}, localIDs []string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if len(localIDs) > 0 {
			query, args, err := sqlx.In(`DELETE FROM sync_tasks WHERE item_key IN (?)`, localIDs)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("ошибка удаления задач: %w", err)
			}

			query, args, err = sqlx.In(`UPDATE counted_items SET relay_batch = ? WHERE local_id IN (?)`, key, localIDs)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("ошибка отметки передачи: %w", err)
			}
		}
		return s.enqueueUniqueTx(ctx, tx, kind, key, payload)
	})
}

// DeleteTasksForItem снимает все задачи позиции
func (s *SQLiteStorage) DeleteTasksForItem(ctx context.Context, itemKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_tasks WHERE item_key = ?`, itemKey); err != nil {
		return fmt.Errorf("ошибка удаления задач: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sync_tasks`); err != nil {
		return 0, fmt.Errorf("ошибка подсчета задач: %w", err)
	}
	return n, nil
}

// CompleteTask удаляет задачу после подтверждения удаленной стороны
func (s *SQLiteStorage) CompleteTask(ctx context.Context, taskID string) error {
	return deleteTask(ctx, s.db, taskID)
}

func deleteTask(ctx context.Context, q sqlx.ExecerContext, taskID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM sync_tasks WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("ошибка удаления задачи: %w", err)
	}
	return nil
}

// RecordAttemptFailure засчитывает неудачную попытку; задача остается в очереди
func (s *SQLiteStorage) RecordAttemptFailure(ctx context.Context, taskID, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return s.recordFailureTx(ctx, tx, taskID, reason)
	})
}

func (s *SQLiteStorage) recordFailureTx(ctx context.Context, tx *sqlx.Tx, taskID, reason string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE sync_tasks SET attempts = attempts + 1, last_attempt_at = ?, last_error = ?
		WHERE task_id = ?
	`, s.now(), reason, taskID)
	if err != nil {
		return fmt.Errorf("ошибка записи попытки: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return count.ErrTaskNotFound
	}
	return nil
}

func (s *SQLiteStorage) GetTask(ctx context.Context, taskID string) (*count.Task, error) {
	var task count.Task
	err := s.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM sync_tasks WHERE task_id = ?`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, count.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения задачи: %w", err)
	}
	return &task, nil
}

func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error("Ошибка отката транзакции", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// ==================== Слияние ====================

// WithinItemTx реализует merge.Store: одна позиция коллеги за транзакцию
func (s *SQLiteStorage) WithinItemTx(ctx context.Context, fn func(tx merge.ItemTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&sqliteItemTx{s: s, tx: tx})
	})
}

type sqliteItemTx struct {
	s  *SQLiteStorage
	tx *sqlx.Tx
}

func (t *sqliteItemTx) AlreadyMerged(ctx context.Context, peerID, tempID string) (bool, error) {
	var merged bool
	err := t.tx.GetContext(ctx, &merged,
		`SELECT EXISTS(SELECT 1 FROM merged_temp_ids WHERE peer_id = ? AND temp_id = ?)`, peerID, tempID)
	return merged, err
}

func (t *sqliteItemTx) FindMatching(ctx context.Context, sessionID, sku, name string) (*merge.Line, error) {
	item, err := findMatching(ctx, t.tx, sessionID, sku, name)
	if err != nil || item == nil {
		return nil, err
	}
	return &merge.Line{
		ID:        item.LocalID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitCost:  item.UnitCost,
	}, nil
}

func (t *sqliteItemTx) AddToLine(ctx context.Context, lineID string, quantity, unitCost decimal.Decimal) error {
	item, err := getItem(ctx, t.tx, lineID)
	if err != nil {
		return err
	}
	item.Quantity = quantity
	item.UnitCost = unitCost
	return t.s.reopenTx(ctx, t.tx, item)
}

func (t *sqliteItemTx) InsertLine(ctx context.Context, sessionID string, productID *string, it count.BatchItem) (string, error) {
	now := t.s.now()
	item := &count.Item{
		LocalID:     t.s.ids.Next(),
		SessionID:   sessionID,
		ProductID:   productID,
		ProductName: it.ProductName,
		SKU:         it.SKU,
		Quantity:    it.Quantity,
		UnitCost:    it.UnitCost,
		CapturedAt:  it.CapturedAt.UTC(),
		SyncState:   count.StatePending,
		Origin:      count.OriginSelf,
		Version:     1,
		UpdatedAt:   now,
	}
	if item.CapturedAt.IsZero() {
		item.CapturedAt = now
	}
	if err := insertItem(ctx, t.tx, item); err != nil {
		return "", err
	}
	if err := t.s.enqueueUniqueTx(ctx, t.tx, count.TaskAddCount, item.LocalID, itemPayload{LocalID: item.LocalID}); err != nil {
		return "", err
	}
	return item.LocalID, nil
}

func (t *sqliteItemTx) MarkMerged(ctx context.Context, peerID, tempID, lineID string) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO merged_temp_ids (peer_id, temp_id, line_id, merged_at) VALUES (?, ?, ?, ?)`,
		peerID, tempID, lineID, t.s.now()); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM counted_items WHERE origin = ? AND peer_id = ? AND temp_id = ?`,
		count.OriginCollaborator, peerID, tempID)
	return err
}
