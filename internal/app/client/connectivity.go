package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"stockcount/internal/app/client/events"
)

type HealthChecker interface {
	Health(ctx context.Context) (*HealthInfo, error)
}

// Connectivity следит за доступностью сервера и сообщает о переходах событием ConnectivityChanged
type Connectivity struct {
	checker  HealthChecker
	bus      *events.Bus
	interval time.Duration
	log      *slog.Logger

	mu     sync.RWMutex
	online bool
	known  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConnectivity(checker HealthChecker, bus *events.Bus, interval time.Duration, log *slog.Logger) *Connectivity {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Connectivity{
		checker:  checker,
		bus:      bus,
		interval: interval,
		log:      log.With("component", "connectivity"),
	}
}

func (c *Connectivity) Online() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// Set задает состояние связи извне, например по сигналу платформы о смене сети.
// Событие публикуется только при переходе.
func (c *Connectivity) Set(online bool) {
	c.mu.Lock()
	changed := !c.known || c.online != online
	c.online, c.known = online, true
	c.mu.Unlock()

	if !changed {
		return
	}
	if online {
		c.log.Info("Связь с сервером восстановлена")
	} else {
		c.log.Warn("Сервер недоступен")
	}
	c.bus.Publish(events.Event{Kind: events.ConnectivityChanged, Online: online})
}

// Check одна проверка сервера
func (c *Connectivity) Check(ctx context.Context) bool {
	info, err := c.checker.Health(ctx)
	if ctx.Err() != nil {
		return c.Online()
	}
	online := err == nil && info != nil && info.Status == "OK"
	if err != nil {
		c.log.Debug("Проверка сервера не удалась", "error", err)
	}
	c.Set(online)
	return online
}

func (c *Connectivity) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.Check(ctx)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Check(ctx)
			}
		}
	}()
}

func (c *Connectivity) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
