// Package events шина событий клиента: подписка и отписка вместо глобальных колбэков.
package events

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

type Kind string

const (
	ItemSynced          Kind = "item-synced"
	ItemFailed          Kind = "item-failed"
	ItemRetrying        Kind = "item-retrying"
	DrainFinished       Kind = "drain-finished"
	ConnectivityChanged Kind = "connectivity-changed"
	PeerFound           Kind = "peer-found"
	BatchReceived       Kind = "batch-received"
	BatchMerged         Kind = "batch-merged"
)

// Event полезная нагрузка зависит от Kind; незаполненные поля пустые
type Event struct {
	Kind    Kind
	At      time.Time
	LocalID string
	PeerID  string
	Online  bool
	Count   int
	Err     string
}

type Handler func(Event)

// Bus рассылает события подписчикам синхронно, в порядке подписки
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	log    *slog.Logger
}

type subscription struct {
	kinds   map[Kind]struct{}
	handler Handler
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		subs: make(map[int]subscription),
		log:  log.With("component", "event_bus"),
	}
}

// Subscribe без kinds подписывает на все события. Возвращает функцию отписки.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) (unsubscribe func()) {
	sub := subscription{handler: h}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish вызывает подписчиков вне блокировки: подписчик может отписаться из обработчика
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		sub := b.subs[id]
		if sub.kinds != nil {
			if _, ok := sub.kinds[e.Kind]; !ok {
				continue
			}
		}
		handlers = append(handlers, sub.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, e)
	}
}

func (b *Bus) dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Паника в обработчике события", "kind", e.Kind, "panic", r)
		}
	}()
	h(e)
}
