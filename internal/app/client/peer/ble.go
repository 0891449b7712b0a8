package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
)

const (
	NamePrefix = "STOCKCOUNT-"

	DefaultScanTimeout = 30 * time.Second
	DefaultChunkSize   = 5
	DefaultChunkDelay  = 100 * time.Millisecond

	frameChunk = "chunk"
	frameDone  = "done"
	frameAck   = "ack"
	frameError = "error"
)

// Advertisement рекламный пакет, увиденный при сканировании
type Advertisement struct {
	ID   string
	Name string
	RSSI int
}

// Radio драйвер BLE. Детали радио вне этого пакета.
type Radio interface {
	// Scan вызывает found для каждой рекламы до отмены ctx.
	Scan(ctx context.Context, found func(Advertisement)) error
	Dial(ctx context.Context, id string) (Link, error)
	// Advertise рекламирует устройство под именем name и передает accept входящие соединения
	// до отмены ctx.
	Advertise(ctx context.Context, name string, accept func(Link)) error
}

// Link соединение с одним устройством. Messages закрывается при потере соединения.
type Link interface {
	Send(ctx context.Context, msg []byte) error
	Messages() <-chan []byte
	Close() error
}

type frame struct {
	Type     string            `json:"t"`
	BatchID  string            `json:"b"`
	PeerID   string            `json:"p,omitempty"`
	SentAt   time.Time         `json:"s,omitempty"`
	Seq      int               `json:"n,omitempty"`
	Items    []count.BatchItem `json:"i,omitempty"`
	Total    int               `json:"c,omitempty"`
	Accepted []string          `json:"a,omitempty"`
	Failed   []string          `json:"f,omitempty"`
	Error    string            `json:"e,omitempty"`
}

type BLEConfig struct {
	DeviceName  string
	ScanTimeout time.Duration
	ChunkSize   int
	ChunkDelay  time.Duration
}

type BLE struct {
	radio Radio
	cfg   BLEConfig
	log   *slog.Logger
}

func NewBLE(radio Radio, cfg BLEConfig, log *slog.Logger) *BLE {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	return &BLE{
		radio: radio,
		cfg:   cfg,
		log:   log.With("component", "ble_adapter"),
	}
}

func (b *BLE) Kind() Kind {
	return KindBLE
}

// Discover сканирует не дольше ScanTimeout; отмена ctx останавливает поиск раньше
func (b *BLE) Discover(ctx context.Context, found func(Peer)) error {
	scanCtx, cancel := context.WithTimeout(ctx, b.cfg.ScanTimeout)
	defer cancel()

	seen := make(map[string]struct{})
	var mu sync.Mutex

	err := b.radio.Scan(scanCtx, func(ad Advertisement) {
		if !strings.HasPrefix(ad.Name, NamePrefix) {
			return
		}
		mu.Lock()
		if _, ok := seen[ad.ID]; ok {
			mu.Unlock()
			return
		}
		seen[ad.ID] = struct{}{}
		mu.Unlock()

		found(Peer{
			Kind: KindBLE,
			ID:   ad.ID,
			Name: strings.TrimPrefix(ad.Name, NamePrefix),
		})
	})
	if err != nil && scanCtx.Err() == nil {
		return fmt.Errorf("ошибка сканирования BLE: %w", err)
	}

	b.log.Debug("Сканирование BLE завершено", "found", len(seen))
	return nil
}

// Send передает пакет частями по ChunkSize позиций, затем маркер завершения, и ждет ответа.
// Потеря соединения прерывает передачу целиком.
func (b *BLE) Send(ctx context.Context, p Peer, batch count.Batch) (Ack, error) {
	link, err := b.radio.Dial(ctx, p.ID)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: подключение к %s: %v", ErrTransferFailed, p.Name, err)
	}
	defer link.Close()

	chunks := 0
	for start := 0; start < len(batch.Items); start += b.cfg.ChunkSize {
		end := start + b.cfg.ChunkSize
		if end > len(batch.Items) {
			end = len(batch.Items)
		}
		if chunks > 0 {
			if err := sleep(ctx, b.cfg.ChunkDelay); err != nil {
				return Ack{}, err
			}
		}
		f := frame{
			Type:    frameChunk,
			BatchID: batch.ID,
			PeerID:  batch.PeerID,
			SentAt:  batch.SentAt,
			Seq:     chunks,
			Items:   batch.Items[start:end],
		}
		if err := sendFrame(ctx, link, f); err != nil {
			return Ack{}, err
		}
		chunks++
	}

	done := frame{Type: frameDone, BatchID: batch.ID, PeerID: batch.PeerID, SentAt: batch.SentAt, Seq: chunks, Total: len(batch.Items)}
	if err := sendFrame(ctx, link, done); err != nil {
		return Ack{}, err
	}

	b.log.Debug("Пакет передан по BLE", "batch", batch.ID, "items", len(batch.Items), "chunks", chunks)

	for {
		select {
		case <-ctx.Done():
			return Ack{}, ctx.Err()
		case msg, ok := <-link.Messages():
			if !ok {
				return Ack{}, fmt.Errorf("%w: соединение потеряно до подтверждения", ErrTransferFailed)
			}
			var f frame
			if err := json.Unmarshal(msg, &f); err != nil || f.BatchID != batch.ID {
				continue
			}
			switch f.Type {
			case frameAck:
				return Ack{BatchID: f.BatchID, Accepted: f.Accepted, Failed: f.Failed}, nil
			case frameError:
				return Ack{}, fmt.Errorf("%w: %s", ErrRejected, f.Error)
			}
		}
	}
}

// Receive рекламирует устройство и собирает пакеты от подключившихся отправителей
func (b *BLE) Receive(ctx context.Context, onBatch Handler) error {
	var wg sync.WaitGroup
	err := b.radio.Advertise(ctx, NamePrefix+b.cfg.DeviceName, func(link Link) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer link.Close()
			b.serveLink(ctx, link, onBatch)
		}()
	})
	wg.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ошибка приема BLE: %w", err)
	}
	return nil
}

func (b *BLE) serveLink(ctx context.Context, link Link, onBatch Handler) {
	asm := NewAssembler()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-link.Messages():
			if !ok {
				if n := asm.Pending(); n > 0 {
					b.log.Warn("Соединение BLE потеряно, неполные пакеты отброшены", "batches", n)
				}
				return
			}
			var f frame
			if err := json.Unmarshal(msg, &f); err != nil {
				b.log.Warn("Неверный кадр BLE", "error", err)
				continue
			}
			batch, complete, err := asm.add(f)
			if err != nil {
				b.log.Warn("Пакет BLE отброшен", "batch", f.BatchID, "error", err)
				_ = sendFrame(ctx, link, frame{Type: frameError, BatchID: f.BatchID, Error: err.Error()})
				continue
			}
			if !complete {
				continue
			}

			ack, err := onBatch(ctx, batch)
			if err != nil {
				_ = sendFrame(ctx, link, frame{Type: frameError, BatchID: batch.ID, Error: err.Error()})
				continue
			}
			_ = sendFrame(ctx, link, frame{Type: frameAck, BatchID: batch.ID, Accepted: ack.Accepted, Failed: ack.Failed})
		}
	}
}

func sendFrame(ctx context.Context, link Link, f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("ошибка кодирования кадра: %w", err)
	}
	if err := link.Send(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Assembler собирает части пакетов по идентификатору пакета до маркера завершения
type Assembler struct {
	parts map[string]*partial
}

type partial struct {
	batch   count.Batch
	nextSeq int
}

func NewAssembler() *Assembler {
	return &Assembler{parts: make(map[string]*partial)}
}

// Add принимает сообщение канала и возвращает пакет целиком, когда пришел маркер
// и число позиций совпало. Пропущенная часть или несовпадение числа позиций отбрасывают пакет.
func (a *Assembler) Add(msg []byte) (count.Batch, bool, error) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return count.Batch{}, false, fmt.Errorf("неверный кадр: %w", err)
	}
	return a.add(f)
}

func (a *Assembler) add(f frame) (count.Batch, bool, error) {
	p, ok := a.parts[f.BatchID]
	if !ok {
		p = &partial{batch: count.Batch{ID: f.BatchID, PeerID: f.PeerID, SentAt: f.SentAt}}
		a.parts[f.BatchID] = p
	}

	if f.Seq != p.nextSeq {
		delete(a.parts, f.BatchID)
		return count.Batch{}, false, fmt.Errorf("ожидалась часть %d, получена %d", p.nextSeq, f.Seq)
	}
	p.nextSeq++

	switch f.Type {
	case frameChunk:
		p.batch.Items = append(p.batch.Items, f.Items...)
		return count.Batch{}, false, nil
	case frameDone:
		delete(a.parts, f.BatchID)
		if len(p.batch.Items) != f.Total {
			return count.Batch{}, false, fmt.Errorf("получено %d позиций из %d", len(p.batch.Items), f.Total)
		}
		return p.batch, true, nil
	default:
		delete(a.parts, f.BatchID)
		return count.Batch{}, false, fmt.Errorf("неожиданный кадр %q", f.Type)
	}
}

// Pending число незавершенных пакетов
func (a *Assembler) Pending() int {
	return len(a.parts)
}
