package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/client/config"
	"stockcount/internal/app/client/events"
	"stockcount/internal/app/client/peer"
	"stockcount/internal/domain/count"
	"stockcount/internal/domain/merge"
)

// App фасад сессии инвентаризации на устройстве
type App struct {
	config       *config.Config
	log          *slog.Logger
	httpClient   *httpClient
	storage      *SQLiteStorage
	bus          *events.Bus
	engine       *SyncEngine
	connectivity *Connectivity
	validator    count.Validator
	adapters     map[peer.Kind]peer.Adapter

	mu           sync.Mutex
	stopDiscover context.CancelFunc
	wg           sync.WaitGroup
	started      bool
}

// Status сводка для команды sync --status
type Status struct {
	Online      bool      `json:"online"`
	Registered  bool      `json:"registered"`
	SessionID   string    `json:"sessionId"`
	Pending     int       `json:"pending"`
	Tasks       int       `json:"tasks"`
	Errors      int       `json:"errors"`
	NeedsReview int       `json:"needsReview"`
	Stats       SyncStats `json:"stats"`
}

// SendResult итог передачи коллеге. Для посредника пакет только поставлен в очередь.
type SendResult struct {
	BatchID  string   `json:"batchId"`
	Queued   bool     `json:"queued"`
	Accepted []string `json:"accepted"`
	Failed   []string `json:"failed,omitempty"`
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	storage, err := NewSQLiteStorage(cfg.DataPath, log)
	if err != nil {
		return nil, err
	}

	httpCl := NewHTTPClient(cfg.BaseURL(), cfg.RequestTimeout, log)
	bus := events.NewBus(log)
	connectivity := NewConnectivity(httpCl, bus, cfg.HealthInterval, log)
	validator := count.NewItemValidator()

	relayAdapter := peer.NewRelay(httpCl, cfg.ConnectionRequestID, log)
	products := &deviceProducts{remote: httpCl, online: connectivity.Online}

	engine := NewSyncEngine(EngineDeps{
		Store:     storage,
		Remote:    httpCl,
		Relay:     relayAdapter,
		Merger:    merge.NewService(storage, products, log),
		Validator: validator,
		Bus:       bus,
		Online:    connectivity.Online,
	}, SyncConfig{
		DeviceID:  cfg.DeviceID,
		Interval:  cfg.SyncInterval,
		Backoff:   Backoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		StatsPath: cfg.ConfigDir + "/sync_stats.json",
	}, log)

	app := &App{
		config:       cfg,
		log:          log,
		httpClient:   httpCl,
		storage:      storage,
		bus:          bus,
		engine:       engine,
		connectivity: connectivity,
		validator:    validator,
		adapters: map[peer.Kind]peer.Adapter{
			peer.KindRelay: relayAdapter,
			peer.KindLAN: peer.NewLAN(peer.LANConfig{
				DeviceID:            cfg.DeviceID,
				DeviceName:          cfg.DeviceName,
				Version:             "1.0.0",
				Ports:               cfg.LANPorts,
				ProbeTimeout:        cfg.LANProbeTimeout,
				ListenAddress:       cfg.LANListenAddress,
				ConnectionRequestID: cfg.ConnectionRequestID,
			}, log),
		},
	}

	if token, err := app.GetToken(); err == nil && token != "" {
		httpCl.SetToken(token)
		log.Debug("Токен загружен из файла")
	}

	return app, nil
}

// UseRadio подключает драйвер BLE. Без него обмен по BLE недоступен.
func (a *App) UseRadio(radio peer.Radio) {
	a.adapters[peer.KindBLE] = peer.NewBLE(radio, peer.BLEConfig{
		DeviceName:  a.config.DeviceName,
		ScanTimeout: a.config.BLEScanTimeout,
		ChunkSize:   a.config.BLEChunkSize,
		ChunkDelay:  a.config.BLEChunkDelay,
	}, a.log)
}

// Start запускает наблюдение за связью и фоновую синхронизацию
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	a.connectivity.Start(ctx)
	a.started = true

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
		"device", a.config.DeviceID,
		"session", a.config.SessionID,
	)
	return nil
}

// Run работает до отмены ctx
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	a.StopDiscovery()
	a.mu.Lock()
	if a.started {
		a.engine.Stop()
		a.connectivity.Stop()
		a.started = false
	}
	a.mu.Unlock()
	a.wg.Wait()

	if err := a.storage.Close(); err != nil {
		a.log.Error("Ошибка закрытия базы данных", "error", err)
	}
	a.log.Info("Клиент завершил работу")
}

func (a *App) sessionID() (string, error) {
	if a.config.SessionID == "" {
		return "", ErrNoSession
	}
	return a.config.SessionID, nil
}

// AddCount сохраняет позицию и ставит ее в очередь. Сеть не нужна:
// при включенной автоотправке и доступном сервере очередь обходится сразу.
func (a *App) AddCount(ctx context.Context, in count.AddInput) (*count.Item, error) {
	if in.SessionID == "" {
		in.SessionID = a.config.SessionID
	}
	if in.SessionID == "" {
		return nil, ErrNoSession
	}
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.SKU = strings.TrimSpace(in.SKU)
	if err := a.validator.ValidateAdd(in); err != nil {
		return nil, err
	}

	item := &count.Item{
		SessionID:   in.SessionID,
		ProductID:   in.ProductID,
		ProductName: in.ProductName,
		SKU:         in.SKU,
		Quantity:    in.Quantity,
		UnitCost:    in.UnitCost,
		CapturedAt:  in.CapturedAt,
	}
	if _, err := a.storage.CaptureCount(ctx, item); err != nil {
		return nil, err
	}

	if item.NeedsCostReview() {
		a.log.Warn("Нулевая себестоимость, позиция требует проверки", "local_id", item.LocalID, "product", item.ProductName)
	}
	a.autoSend(ctx)
	return item, nil
}

// autoSend при включенной автоотправке пробует доставить очередь сразу.
// Без запущенного цикла (разовая команда) обход выполняется здесь же.
func (a *App) autoSend(ctx context.Context) {
	if !a.config.AutoSend {
		return
	}
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()

	if started {
		if a.connectivity.Online() {
			a.engine.Kick()
		}
		return
	}
	if !a.connectivity.Check(ctx) {
		return
	}
	if _, err := a.engine.Drain(ctx, TriggerTimer); err != nil && ctx.Err() == nil {
		a.log.Warn("Автоотправка не удалась, позиции остались в очереди", "error", err)
	}
}

// EditCount исправляет количество или себестоимость собственной позиции
func (a *App) EditCount(ctx context.Context, localID string, in count.EditInput) (*count.Item, error) {
	if err := a.validator.ValidateEdit(in); err != nil {
		return nil, err
	}
	item, err := a.storage.GetCount(ctx, localID)
	if err != nil {
		return nil, err
	}
	if item.Origin != count.OriginSelf {
		return nil, fmt.Errorf("%w: позиция коллеги ожидает слияния", count.ErrInvalidInput)
	}

	item, err = a.storage.UpdateValues(ctx, localID, in.Quantity, in.UnitCost)
	if err != nil {
		return nil, err
	}
	a.autoSend(ctx)
	return item, nil
}

func (a *App) DeleteCount(ctx context.Context, localID string) error {
	return a.storage.DeleteCount(ctx, localID)
}

// RetryFailed снова ставит в очередь позиции, отклоненные сервером
func (a *App) RetryFailed(ctx context.Context) (int, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return 0, err
	}
	items, err := a.storage.ListErrors(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if _, err := a.storage.Reopen(ctx, it.LocalID); err != nil {
			return 0, err
		}
	}
	if len(items) > 0 {
		a.autoSend(ctx)
	}
	return len(items), nil
}

// RequestSync обходит очередь немедленно, без учета задержек повторов
func (a *App) RequestSync(ctx context.Context) (*DrainResult, error) {
	a.connectivity.Check(ctx)
	res, err := a.engine.Drain(ctx, TriggerManual)
	if err != nil {
		return res, err
	}
	if res.Waiting > 0 && !a.httpClient.HasToken() {
		return res, ErrNotRegistered
	}
	return res, nil
}

func (a *App) PendingCount(ctx context.Context) (int, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return 0, err
	}
	return a.storage.CountPending(ctx, sessionID)
}

func (a *App) ListPending(ctx context.Context) ([]count.Item, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return nil, err
	}
	return a.storage.ListPending(ctx, sessionID)
}

func (a *App) ListAll(ctx context.Context) ([]count.Item, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return nil, err
	}
	return a.storage.ListAll(ctx, sessionID)
}

func (a *App) ListErrors(ctx context.Context) ([]count.Item, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return nil, err
	}
	return a.storage.ListErrors(ctx, sessionID)
}

func (a *App) NeedsCostReview(ctx context.Context) ([]count.Item, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return nil, err
	}
	return a.storage.ListNeedsCostReview(ctx, sessionID)
}

// PurgeSession удаляет полностью синхронизированную сессию с устройства
func (a *App) PurgeSession(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		sessionID = a.config.SessionID
	}
	if sessionID == "" {
		return 0, ErrNoSession
	}
	return a.storage.PurgeSession(ctx, sessionID)
}

func (a *App) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Online:     a.connectivity.Check(ctx),
		Registered: a.httpClient.HasToken(),
		SessionID:  a.config.SessionID,
		Stats:      a.engine.Stats(),
	}
	tasks, err := a.storage.CountTasks(ctx)
	if err != nil {
		return nil, err
	}
	st.Tasks = tasks
	if st.SessionID == "" {
		return st, nil
	}

	if st.Pending, err = a.storage.CountPending(ctx, st.SessionID); err != nil {
		return nil, err
	}
	errs, err := a.storage.ListErrors(ctx, st.SessionID)
	if err != nil {
		return nil, err
	}
	st.Errors = len(errs)
	review, err := a.storage.ListNeedsCostReview(ctx, st.SessionID)
	if err != nil {
		return nil, err
	}
	st.NeedsReview = len(review)
	return st, nil
}

func (a *App) Stats() SyncStats {
	return a.engine.Stats()
}

// Subscribe подписка на события клиента; вызовите возвращенную функцию для отписки
func (a *App) Subscribe(h events.Handler, kinds ...events.Kind) func() {
	return a.bus.Subscribe(h, kinds...)
}

// SetOnline сигнал платформы о смене сети
func (a *App) SetOnline(online bool) {
	a.connectivity.Set(online)
}

func (a *App) adapter(kind peer.Kind) (peer.Adapter, error) {
	if err := kind.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, kind)
	}
	ad, ok := a.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", peer.ErrNotSupported, kind)
	}
	return ad, nil
}

// StartPeerDiscovery ищет получателей в фоне; предыдущий поиск останавливается
func (a *App) StartPeerDiscovery(ctx context.Context, kind peer.Kind, onFound func(peer.Peer)) error {
	ad, err := a.adapter(kind)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.stopDiscover != nil {
		a.stopDiscover()
	}
	dctx, cancel := context.WithCancel(ctx)
	a.stopDiscover = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		if err := a.discover(dctx, ad, onFound); err != nil {
			a.log.Error("Ошибка поиска получателей", "kind", kind, "error", err)
		}
	}()
	return nil
}

// DiscoverPeers ищет получателей и возвращает найденных по окончании поиска
func (a *App) DiscoverPeers(ctx context.Context, kind peer.Kind) ([]peer.Peer, error) {
	ad, err := a.adapter(kind)
	if err != nil {
		return nil, err
	}
	var (
		mu    sync.Mutex
		peers []peer.Peer
	)
	err = a.discover(ctx, ad, func(p peer.Peer) {
		mu.Lock()
		peers = append(peers, p)
		mu.Unlock()
	})
	return peers, err
}

func (a *App) discover(ctx context.Context, ad peer.Adapter, onFound func(peer.Peer)) error {
	return ad.Discover(ctx, func(p peer.Peer) {
		a.bus.Publish(events.Event{Kind: events.PeerFound, PeerID: p.ID})
		if onFound != nil {
			onFound(p)
		}
	})
}

func (a *App) StopDiscovery() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopDiscover != nil {
		a.stopDiscover()
		a.stopDiscover = nil
	}
}

// SendToPeer передает позиции коллеге; без localIDs передаются все неотправленные.
// Подтвержденные получателем позиции считаются доставленными: на сервер их отправит он.
// Передача через посредника ставится в очередь и выполняется при обходе.
func (a *App) SendToPeer(ctx context.Context, p peer.Peer, localIDs []string) (*SendResult, error) {
	ad, err := a.adapter(p.Kind)
	if err != nil {
		return nil, err
	}

	if len(localIDs) == 0 {
		pending, err := a.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		for _, it := range pending {
			if it.Origin == count.OriginSelf {
				localIDs = append(localIDs, it.LocalID)
			}
		}
	}
	if len(localIDs) == 0 {
		return &SendResult{}, nil
	}

	batchID := uuid.NewString()

	if p.Kind == peer.KindRelay {
		requestID := p.ID
		if requestID == "" {
			requestID = a.config.ConnectionRequestID
		}
		payload := relayPayload{BatchID: batchID, RequestID: requestID, LocalIDs: localIDs}
		if err := a.storage.HandOff(ctx, count.TaskRelaySend, relayKey(batchID), payload, localIDs); err != nil {
			return nil, err
		}
		a.autoSend(ctx)
		return &SendResult{BatchID: batchID, Queued: true}, nil
	}

	batch, err := a.engine.buildBatch(ctx, batchID, localIDs)
	if err != nil {
		return nil, err
	}
	if len(batch.Items) == 0 {
		return &SendResult{BatchID: batchID}, nil
	}

	ack, err := ad.Send(ctx, p, batch)
	if err != nil {
		return nil, err
	}
	if err := a.storage.MarkDelivered(ctx, ack.Accepted); err != nil {
		return nil, err
	}
	for _, id := range ack.Accepted {
		a.bus.Publish(events.Event{Kind: events.ItemSynced, LocalID: id, PeerID: p.ID})
	}

	a.log.Info("Позиции переданы коллеге", "peer", p.Name, "kind", p.Kind, "accepted", len(ack.Accepted), "failed", len(ack.Failed))
	return &SendResult{BatchID: batchID, Accepted: ack.Accepted, Failed: ack.Failed}, nil
}

// ReceiveFromPeers принимает пакеты коллег в текущую сессию до отмены ctx
func (a *App) ReceiveFromPeers(ctx context.Context, kind peer.Kind) error {
	sessionID, err := a.sessionID()
	if err != nil {
		return err
	}
	ad, err := a.adapter(kind)
	if err != nil {
		return err
	}
	return ad.Receive(ctx, func(ctx context.Context, b count.Batch) (peer.Ack, error) {
		return a.engine.MergeCollaboratorBatch(ctx, sessionID, b)
	})
}

// MergeCollaboratorBatch принимает пакет, полученный в обход адаптеров
func (a *App) MergeCollaboratorBatch(ctx context.Context, b count.Batch) (peer.Ack, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return peer.Ack{}, err
	}
	return a.engine.MergeCollaboratorBatch(ctx, sessionID, b)
}

// ==================== Регистрация устройства ====================

func (a *App) IsRegistered() bool {
	return a.httpClient.HasToken()
}

// Register получает токен устройства по секрету сопряжения и сохраняет его
func (a *App) Register(ctx context.Context, secret string) error {
	token, err := a.httpClient.RegisterDevice(ctx, a.config.DeviceID, a.config.DeviceName, secret)
	if err != nil {
		return err
	}
	if err := a.SaveToken(token); err != nil {
		return err
	}
	a.log.Info("Устройство зарегистрировано", "device", a.config.DeviceID)
	return nil
}

// GetToken возвращает сохраненный токен
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotRegistered
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	return strings.TrimSpace(string(tokenBytes)), nil
}

// SaveToken сохраняет токен устройства
func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	a.httpClient.SetToken(token)
	return nil
}

// deviceProducts сопоставление товара при слиянии на устройстве. Без связи товар
// не ищется: позиция уйдет на сервер по названию и штрихкоду, и сервер сопоставит его сам.
type deviceProducts struct {
	remote interface {
		HasToken() bool
		ResolveProduct(ctx context.Context, name, sku string) (string, error)
	}
	online func() bool
}

func (p *deviceProducts) Resolve(ctx context.Context, name, sku string) (string, error) {
	if !p.remote.HasToken() || !p.online() {
		return "", nil
	}
	id, err := p.remote.ResolveProduct(ctx, name, sku)
	if err != nil {
		if IsRetryable(err) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}
