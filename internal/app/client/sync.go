package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/client/events"
	"stockcount/internal/app/client/peer"
	"stockcount/internal/domain/count"
	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/session"
)

// Remote вызовы сервера, которые нужны очереди
type Remote interface {
	HasToken() bool
	AddLine(ctx context.Context, sessionID string, req session.AddLineRequest) (*session.LineResponse, error)
	UpdateLine(ctx context.Context, sessionID, lineID string, req session.UpdateLineRequest) (*session.LineResponse, error)
}

// DrainTrigger причина обхода очереди
type DrainTrigger string

const (
	TriggerTimer        DrainTrigger = "timer"
	TriggerConnectivity DrainTrigger = "connectivity"
	TriggerManual       DrainTrigger = "manual"
)

// Backoff задержка перед повтором задачи: Base*2^(attempts-1), не больше Max
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempts int) time.Duration {
	if attempts <= 0 || b.Base <= 0 {
		return 0
	}
	d := b.Base
	for i := 1; i < attempts; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Ready истекла ли задержка после последней неудачной попытки
func (b Backoff) Ready(t count.Task, now time.Time) bool {
	if t.Attempts == 0 || t.LastAttemptAt == nil {
		return true
	}
	return !now.Before(t.LastAttemptAt.Add(b.Delay(t.Attempts)))
}

// SyncConfig настройки очереди
type SyncConfig struct {
	DeviceID string
	Interval time.Duration
	Backoff  Backoff
	// StatsPath файл статистики; пустой путь - статистика только в памяти
	StatsPath string
}

// DrainResult итог одного обхода очереди
type DrainResult struct {
	Trigger  DrainTrigger  `json:"trigger"`
	Synced   int           `json:"synced"`
	Retried  int           `json:"retried"`
	Failed   int           `json:"failed"`
	Merged   int           `json:"merged"`
	Waiting  int           `json:"waiting"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// SyncStats статистика синхронизации
type SyncStats struct {
	TotalDrains      int       `json:"total_drains"`
	TotalSynced      int       `json:"total_synced"`
	TotalRetried     int       `json:"total_retried"`
	TotalFailed      int       `json:"total_failed"`
	TotalMerged      int       `json:"total_merged"`
	LastSuccessful   time.Time `json:"last_successful"`
	LastFailed       time.Time `json:"last_failed"`
	AvgDrainDuration float64   `json:"avg_drain_duration"`
}

type relayPayload struct {
	BatchID   string   `json:"batchId"`
	RequestID string   `json:"requestId"`
	LocalIDs  []string `json:"localIds"`
}

type mergePayload struct {
	PeerID string `json:"peerId"`
}

func relayKey(batchID string) string {
	return "relay:" + batchID
}

func mergeKey(peerID string) string {
	return "merge:" + peerID
}

// SyncEngine очередь исходящей синхронизации и слияние данных коллег.
// Одновременно выполняется не больше одного обхода очереди.
type SyncEngine struct {
	store     *SQLiteStorage
	remote    Remote
	relay     peer.Adapter
	merger    merge.Servicer
	validator count.Validator
	bus       *events.Bus
	online    func() bool
	cfg       SyncConfig
	log       *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	isSyncing bool
	lastSync  time.Time
	stats     *SyncStats

	kick        chan struct{}
	reconnect   chan struct{}
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// EngineDeps зависимости очереди. Relay и Online необязательны.
type EngineDeps struct {
	Store     *SQLiteStorage
	Remote    Remote
	Relay     peer.Adapter
	Merger    merge.Servicer
	Validator count.Validator
	Bus       *events.Bus
	Online    func() bool
}

func NewSyncEngine(deps EngineDeps, cfg SyncConfig, log *slog.Logger) *SyncEngine {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	e := &SyncEngine{
		store:     deps.Store,
		remote:    deps.Remote,
		relay:     deps.Relay,
		merger:    deps.Merger,
		validator: deps.Validator,
		bus:       deps.Bus,
		online:    deps.Online,
		cfg:       cfg,
		log:       log.With("component", "sync_engine"),
		now:       func() time.Time { return time.Now().UTC() },
		stats:     &SyncStats{},
		kick:      make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
	}
	if stats, err := loadStats(cfg.StatsPath); err == nil {
		e.stats = stats
	}
	return e
}

// Enqueue ставит задачу в очередь; сеть не используется
func (e *SyncEngine) Enqueue(ctx context.Context, task *count.Task) error {
	return e.store.Enqueue(ctx, task)
}

// Drain обходит очередь в порядке постановки. Ошибка одной задачи не останавливает остальные,
// но следующие задачи той же позиции в этом обходе пропускаются.
// Повторный вызов во время обхода ничего не делает и возвращает Skipped.
func (e *SyncEngine) Drain(ctx context.Context, trigger DrainTrigger) (*DrainResult, error) {
	e.mu.Lock()
	if e.isSyncing {
		e.mu.Unlock()
		e.log.Debug("Обход очереди уже выполняется", "trigger", trigger)
		return &DrainResult{Trigger: trigger, Skipped: true}, nil
	}
	e.isSyncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.isSyncing = false
		e.mu.Unlock()
	}()

	start := e.now()
	res := &DrainResult{Trigger: trigger}

	var backoff *Backoff
	if trigger == TriggerTimer {
		b := e.cfg.Backoff
		backoff = &b
	}
	tasks, err := e.store.DueTasks(ctx, start, backoff)
	if err != nil {
		return nil, err
	}

	serverReady := e.remote != nil && e.remote.HasToken()
	if serverReady && trigger == TriggerTimer && e.online != nil && !e.online() {
		serverReady = false
	}

	blocked := make(map[string]struct{})
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		if _, ok := blocked[t.ItemKey]; ok {
			continue
		}
		if !e.runTask(ctx, t, serverReady, res) {
			blocked[t.ItemKey] = struct{}{}
		}
	}

	res.Duration = e.now().Sub(start)
	e.updateStats(res)

	if len(tasks) > 0 {
		e.log.Info("Обход очереди завершен",
			"trigger", trigger,
			"tasks", len(tasks),
			"synced", res.Synced,
			"retried", res.Retried,
			"failed", res.Failed,
			"merged", res.Merged,
			"waiting", res.Waiting,
			"duration", res.Duration,
		)
	}
	e.publish(events.Event{Kind: events.DrainFinished, Count: res.Synced})

	return res, ctx.Err()
}

// runTask выполняет одну задачу; false означает, что задача осталась в очереди
func (e *SyncEngine) runTask(ctx context.Context, t count.Task, serverReady bool, res *DrainResult) bool {
	switch t.Kind {
	case count.TaskAddCount, count.TaskUpdateCount:
		return e.sendItem(ctx, t, serverReady, res)
	case count.TaskRelaySend:
		return e.sendRelay(ctx, t, serverReady, res)
	case count.TaskMergeCollaborator:
		return e.mergeTask(ctx, t, res)
	default:
		e.log.Error("Неизвестный тип задачи, задача удалена", "task", t.TaskID, "kind", t.Kind)
		return e.complete(ctx, t)
	}
}

func (e *SyncEngine) complete(ctx context.Context, t count.Task) bool {
	if err := e.store.CompleteTask(ctx, t.TaskID); err != nil {
		e.log.Error("Ошибка удаления задачи", "task", t.TaskID, "error", err)
		return false
	}
	return true
}

func (e *SyncEngine) sendItem(ctx context.Context, t count.Task, serverReady bool, res *DrainResult) bool {
	localID := t.ItemKey
	var p itemPayload
	if err := json.Unmarshal(t.Payload, &p); err == nil && p.LocalID != "" {
		localID = p.LocalID
	}

	item, err := e.store.GetCount(ctx, localID)
	if errors.Is(err, count.ErrNotFound) {
		return e.complete(ctx, t)
	}
	if err != nil {
		e.log.Error("Ошибка чтения позиции", "local_id", localID, "error", err)
		return false
	}
	if item.SyncState == count.StateSynced || item.SyncState == count.StateError {
		return e.complete(ctx, t)
	}
	if !serverReady {
		res.Waiting++
		return false
	}

	if err := e.store.MarkInFlight(ctx, localID); err != nil {
		e.log.Error("Ошибка смены состояния позиции", "local_id", localID, "error", err)
		return false
	}

	line, err := e.deliver(ctx, item)
	if err != nil {
		e.handleSendError(ctx, t, item, err, res)
		return false
	}

	synced, err := e.store.AckSent(ctx, t.TaskID, localID, line.ID, item.Version)
	if err != nil {
		e.log.Error("Ошибка фиксации подтверждения", "local_id", localID, "error", err)
		return false
	}
	if synced {
		res.Synced++
		e.publish(events.Event{Kind: events.ItemSynced, LocalID: localID})
	} else {
		e.log.Debug("Позиция исправлена во время отправки, исправление поставлено в очередь", "local_id", localID)
	}
	return true
}

// deliver отправляет позицию значениями на момент отправки
func (e *SyncEngine) deliver(ctx context.Context, item *count.Item) (*session.LineResponse, error) {
	qty := count.NewAmount(item.Quantity)
	cost := count.NewAmount(item.UnitCost)

	if item.RemoteLineID != nil && *item.RemoteLineID != "" {
		return e.remote.UpdateLine(ctx, item.SessionID, *item.RemoteLineID, session.UpdateLineRequest{
			CantidadContada: &qty,
			CostoProducto:   &cost,
		})
	}

	capturedAt := item.CapturedAt
	return e.remote.AddLine(ctx, item.SessionID, session.AddLineRequest{
		Product:         item.ProductID,
		Nombre:          item.ProductName,
		SKU:             item.SKU,
		CantidadContada: qty,
		CostoProducto:   cost,
		ClientRef:       item.LocalID,
		CapturedAt:      &capturedAt,
	})
}

func (e *SyncEngine) handleSendError(ctx context.Context, t count.Task, item *count.Item, sendErr error, res *DrainResult) {
	reason := sendErr.Error()
	bg := context.WithoutCancel(ctx)

	if ctx.Err() != nil {
		if err := e.store.SetSyncState(bg, item.LocalID, count.StatePending, nil); err != nil {
			e.log.Error("Ошибка возврата позиции в очередь", "local_id", item.LocalID, "error", err)
		}
		return
	}

	if IsRetryable(sendErr) {
		if err := e.store.RetryItem(bg, t.TaskID, item.LocalID, reason); err != nil {
			e.log.Error("Ошибка записи попытки", "local_id", item.LocalID, "error", err)
		}
		res.Retried++
		e.log.Warn("Отправка позиции не удалась, будет повтор", "local_id", item.LocalID, "attempt", t.Attempts+1, "error", reason)
		e.publish(events.Event{Kind: events.ItemRetrying, LocalID: item.LocalID, Err: reason})
		return
	}

	if err := e.store.FailItem(bg, t.TaskID, item.LocalID, reason); err != nil {
		e.log.Error("Ошибка отметки отказа", "local_id", item.LocalID, "error", err)
	}
	res.Failed++
	e.log.Warn("Сервер отклонил позицию", "local_id", item.LocalID, "error", reason)
	e.publish(events.Event{Kind: events.ItemFailed, LocalID: item.LocalID, Err: reason})
}

func (e *SyncEngine) sendRelay(ctx context.Context, t count.Task, serverReady bool, res *DrainResult) bool {
	var p relayPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		e.log.Error("Поврежденная задача передачи, задача удалена", "task", t.TaskID, "error", err)
		return e.complete(ctx, t)
	}
	if e.relay == nil || !serverReady {
		res.Waiting++
		return false
	}

	batch, err := e.buildBatch(ctx, p.BatchID, p.LocalIDs)
	if err != nil {
		e.log.Error("Ошибка сборки пакета", "batch", p.BatchID, "error", err)
		return false
	}
	if len(batch.Items) == 0 {
		return e.complete(ctx, t)
	}

	ack, err := e.relay.Send(ctx, peer.Peer{Kind: peer.KindRelay, ID: p.RequestID}, batch)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		reason := err.Error()
		if IsRetryable(err) {
			if rerr := e.store.RecordAttemptFailure(ctx, t.TaskID, reason); rerr != nil {
				e.log.Error("Ошибка записи попытки", "task", t.TaskID, "error", rerr)
			}
			res.Retried += len(batch.Items)
			e.publish(events.Event{Kind: events.ItemRetrying, PeerID: p.RequestID, Count: len(batch.Items), Err: reason})
			return false
		}

		for _, it := range batch.Items {
			if serr := e.store.SetSyncState(ctx, it.TempID, count.StateError, &reason); serr != nil {
				e.log.Error("Ошибка отметки отказа", "local_id", it.TempID, "error", serr)
			}
			e.publish(events.Event{Kind: events.ItemFailed, LocalID: it.TempID, Err: reason})
		}
		res.Failed += len(batch.Items)
		e.log.Warn("Сервер отклонил пакет для коллеги", "batch", batch.ID, "error", reason)
		e.complete(ctx, t)
		return false
	}

	if err := e.store.MarkDelivered(ctx, ack.Accepted); err != nil {
		e.log.Error("Ошибка отметки доставки", "batch", batch.ID, "error", err)
		return false
	}
	res.Synced += len(ack.Accepted)
	for _, id := range ack.Accepted {
		e.publish(events.Event{Kind: events.ItemSynced, LocalID: id, PeerID: p.RequestID})
	}

	if len(ack.Failed) == 0 {
		return e.complete(ctx, t)
	}

	p.LocalIDs = ack.Failed
	data, err := json.Marshal(p)
	if err != nil {
		e.log.Error("Ошибка сериализации задачи", "task", t.TaskID, "error", err)
		return false
	}
	if err := e.store.UpdateTaskPayload(ctx, t.TaskID, data); err != nil {
		e.log.Error("Ошибка обновления задачи", "task", t.TaskID, "error", err)
		return false
	}
	reason := fmt.Sprintf("не принято позиций: %d", len(ack.Failed))
	if err := e.store.RecordAttemptFailure(ctx, t.TaskID, reason); err != nil {
		e.log.Error("Ошибка записи попытки", "task", t.TaskID, "error", err)
	}
	res.Retried += len(ack.Failed)
	return false
}

// buildBatch собирает пакет из текущих значений позиций; удаленные и доставленные пропускаются
func (e *SyncEngine) buildBatch(ctx context.Context, batchID string, localIDs []string) (count.Batch, error) {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	batch := count.Batch{ID: batchID, PeerID: e.cfg.DeviceID, SentAt: e.now()}
	for _, id := range localIDs {
		item, err := e.store.GetCount(ctx, id)
		if errors.Is(err, count.ErrNotFound) {
			continue
		}
		if err != nil {
			return count.Batch{}, err
		}
		if item.SyncState == count.StateSynced {
			continue
		}
		batch.Items = append(batch.Items, item.ToBatchItem())
	}
	return batch, nil
}

func (e *SyncEngine) mergeTask(ctx context.Context, t count.Task, res *DrainResult) bool {
	var p mergePayload
	if err := json.Unmarshal(t.Payload, &p); err != nil || p.PeerID == "" {
		e.log.Error("Поврежденная задача слияния, задача удалена", "task", t.TaskID, "error", err)
		return e.complete(ctx, t)
	}

	merged, failed, err := e.mergePeer(ctx, p.PeerID)
	res.Merged += merged
	if err != nil {
		if rerr := e.store.RecordAttemptFailure(ctx, t.TaskID, err.Error()); rerr != nil {
			e.log.Error("Ошибка записи попытки", "task", t.TaskID, "error", rerr)
		}
		res.Retried++
		return false
	}
	if failed > 0 {
		reason := fmt.Sprintf("не влито позиций: %d", failed)
		if rerr := e.store.RecordAttemptFailure(ctx, t.TaskID, reason); rerr != nil {
			e.log.Error("Ошибка записи попытки", "task", t.TaskID, "error", rerr)
		}
		res.Retried += failed
		return false
	}
	return e.complete(ctx, t)
}

// mergePeer вливает сохраненные позиции коллеги в сессии, к которым они были приняты
func (e *SyncEngine) mergePeer(ctx context.Context, peerID string) (merged, failed int, err error) {
	rows, err := e.store.ListCollaborator(ctx)
	if err != nil {
		return 0, 0, err
	}

	batches := make(map[string]*count.Batch)
	var order []string
	for _, r := range rows {
		if r.PeerID == nil || *r.PeerID != peerID || r.TempID == nil {
			continue
		}
		b, ok := batches[r.SessionID]
		if !ok {
			b = &count.Batch{ID: uuid.NewString(), PeerID: peerID, SentAt: e.now()}
			batches[r.SessionID] = b
			order = append(order, r.SessionID)
		}
		b.Items = append(b.Items, collaboratorItem(r))
	}

	for _, sessionID := range order {
		out, err := e.merger.MergeBatch(ctx, sessionID, *batches[sessionID])
		if err != nil {
			return merged, failed, fmt.Errorf("ошибка слияния: %w", err)
		}
		merged += out.Matched + out.Inserted + out.Skipped
		failed += out.Failed
		for _, it := range out.Items {
			if it.Outcome != merge.OutcomeFailed {
				continue
			}
			if err := e.store.SetCollaboratorError(ctx, peerID, it.TempID, it.Error); err != nil {
				e.log.Error("Ошибка сохранения причины", "temp_id", it.TempID, "error", err)
			}
		}
		e.publish(events.Event{Kind: events.BatchMerged, PeerID: peerID, Count: out.Matched + out.Inserted})
	}
	return merged, failed, nil
}

func collaboratorItem(r count.Item) count.BatchItem {
	it := r.ToBatchItem()
	it.TempID = *r.TempID
	return it
}

// MergeCollaboratorBatch надежно сохраняет пакет коллеги и сразу вливает его в сессию.
// Подтверждаются все позиции пакета: невлитые останутся строками коллеги и будут влиты
// задачей merge-collaborator при следующем обходе очереди.
func (e *SyncEngine) MergeCollaboratorBatch(ctx context.Context, sessionID string, batch count.Batch) (peer.Ack, error) {
	if sessionID == "" {
		return peer.Ack{}, ErrNoSession
	}
	if err := e.validator.ValidateBatch(batch); err != nil {
		return peer.Ack{}, err
	}

	stored, err := e.store.SaveCollaboratorItems(ctx, sessionID, batch)
	if err != nil {
		return peer.Ack{}, err
	}
	e.log.Info("Принят пакет коллеги", "peer", batch.PeerID, "batch", batch.ID, "items", len(batch.Items), "stored", stored)
	e.publish(events.Event{Kind: events.BatchReceived, PeerID: batch.PeerID, Count: stored})

	ack := peer.AckAll(batch)

	_, failed, err := e.mergePeer(ctx, batch.PeerID)
	if err != nil || failed > 0 {
		if err != nil {
			e.log.Warn("Слияние отложено", "peer", batch.PeerID, "error", err)
		}
		if qerr := e.store.EnqueueUnique(ctx, count.TaskMergeCollaborator, mergeKey(batch.PeerID), mergePayload{PeerID: batch.PeerID}); qerr != nil {
			return ack, qerr
		}
	}
	return ack, nil
}

// Recover ставит в очередь позиции, для которых задача потерялась при сбое,
// и незавершенные слияния принятых пакетов
func (e *SyncEngine) Recover(ctx context.Context) error {
	items, err := e.store.ListUnqueued(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		kind := count.TaskAddCount
		if it.RemoteLineID != nil {
			kind = count.TaskUpdateCount
		}
		if err := e.store.EnqueueUnique(ctx, kind, it.LocalID, itemPayload{LocalID: it.LocalID}); err != nil {
			return err
		}
	}

	rows, err := e.store.ListCollaborator(ctx)
	if err != nil {
		return err
	}
	peers := make(map[string]struct{})
	for _, r := range rows {
		if r.PeerID == nil {
			continue
		}
		if _, ok := peers[*r.PeerID]; ok {
			continue
		}
		peers[*r.PeerID] = struct{}{}
		if err := e.store.EnqueueUnique(ctx, count.TaskMergeCollaborator, mergeKey(*r.PeerID), mergePayload{PeerID: *r.PeerID}); err != nil {
			return err
		}
	}

	if len(items) > 0 || len(peers) > 0 {
		e.log.Info("Очередь восстановлена", "items", len(items), "peers", len(peers))
	}
	return nil
}

// Start восстанавливает очередь и запускает обход по таймеру и по восстановлению связи
func (e *SyncEngine) Start(ctx context.Context) error {
	if err := e.Recover(ctx); err != nil {
		return fmt.Errorf("ошибка восстановления очереди: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.unsubscribe = e.bus.Subscribe(func(ev events.Event) {
		if ev.Online {
			notify(e.reconnect)
		}
	}, events.ConnectivityChanged)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(ctx)
	}()

	e.log.Info("Запуск синхронизации", "interval", e.cfg.Interval)
	return nil
}

// Stop останавливает обход и дожидается текущего
func (e *SyncEngine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Kick просит обойти очередь без ожидания таймера; задержки повторов соблюдаются
func (e *SyncEngine) Kick() {
	notify(e.kick)
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (e *SyncEngine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Синхронизация остановлена")
			return
		case <-ticker.C:
			e.drainAndLog(ctx, TriggerTimer)
		case <-e.kick:
			e.drainAndLog(ctx, TriggerTimer)
		case <-e.reconnect:
			e.drainAndLog(ctx, TriggerConnectivity)
		}
	}
}

func (e *SyncEngine) drainAndLog(ctx context.Context, trigger DrainTrigger) {
	if _, err := e.Drain(ctx, trigger); err != nil && ctx.Err() == nil {
		e.log.Error("Ошибка обхода очереди", "trigger", trigger, "error", err)
	}
}

func (e *SyncEngine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *SyncEngine) updateStats(res *DrainResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastSync = e.now()
	s := e.stats
	s.TotalDrains++
	s.TotalSynced += res.Synced
	s.TotalRetried += res.Retried
	s.TotalFailed += res.Failed
	s.TotalMerged += res.Merged

	if res.Failed == 0 && res.Retried == 0 {
		s.LastSuccessful = e.lastSync
	} else {
		s.LastFailed = e.lastSync
	}

	s.AvgDrainDuration = (s.AvgDrainDuration*float64(s.TotalDrains-1) + res.Duration.Seconds()) / float64(s.TotalDrains)

	e.saveStats()
}

// Stats возвращает копию статистики
func (e *SyncEngine) Stats() SyncStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.stats
}

func (e *SyncEngine) LastSyncTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

func (e *SyncEngine) IsSyncing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isSyncing
}

func loadStats(path string) (*SyncStats, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stats SyncStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("ошибка парсинга статистики: %w", err)
	}
	return &stats, nil
}

// saveStats вызывается под e.mu
func (e *SyncEngine) saveStats() {
	if e.cfg.StatsPath == "" {
		return
	}
	data, err := json.MarshalIndent(e.stats, "", "  ")
	if err != nil {
		e.log.Error("Ошибка сериализации статистики", "error", err)
		return
	}
	if err := os.WriteFile(e.cfg.StatsPath, data, 0600); err != nil {
		e.log.Error("Ошибка записи статистики", "error", err)
	}
}
