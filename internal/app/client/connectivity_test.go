package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/client/events"
)

type stubChecker struct {
	mu  sync.Mutex
	ok  bool
	err error
}

func (s *stubChecker) set(ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok, s.err = ok, err
}

func (s *stubChecker) Health(context.Context) (*HealthInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if !s.ok {
		return &HealthInfo{Status: "DEGRADED"}, nil
	}
	return &HealthInfo{Status: "OK"}, nil
}

func TestConnectivity_PublishesTransitionsOnce(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus(slog.Default())
	checker := &stubChecker{}
	c := NewConnectivity(checker, bus, time.Minute, slog.Default())

	var got []bool
	unsubscribe := bus.Subscribe(func(e events.Event) { got = append(got, e.Online) }, events.ConnectivityChanged)
	defer unsubscribe()

	checker.set(false, errors.New("connection refused"))
	assert.False(t, c.Check(ctx))
	assert.False(t, c.Check(ctx))

	checker.set(true, nil)
	assert.True(t, c.Check(ctx))
	assert.True(t, c.Check(ctx))
	assert.True(t, c.Online())

	checker.set(false, nil)
	assert.False(t, c.Check(ctx))

	assert.Equal(t, []bool{false, true, false}, got)
}

func TestConnectivity_SetOverridesState(t *testing.T) {
	bus := events.NewBus(slog.Default())
	c := NewConnectivity(&stubChecker{}, bus, 0, slog.Default())
	assert.Equal(t, 15*time.Second, c.interval)

	var n int
	unsubscribe := bus.Subscribe(func(events.Event) { n++ }, events.ConnectivityChanged)
	defer unsubscribe()

	c.Set(true)
	c.Set(true)
	assert.True(t, c.Online())
	assert.Equal(t, 1, n)
}

func TestConnectivity_CancelledCheckKeepsState(t *testing.T) {
	bus := events.NewBus(slog.Default())
	checker := &stubChecker{}
	c := NewConnectivity(checker, bus, time.Minute, slog.Default())
	c.Set(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.set(false, context.Canceled)

	assert.True(t, c.Check(ctx))
	assert.True(t, c.Online())
}

func TestConnectivity_StartChecksImmediately(t *testing.T) {
	bus := events.NewBus(slog.Default())
	checker := &stubChecker{}
	checker.set(true, nil)
	c := NewConnectivity(checker, bus, time.Hour, slog.Default())

	changed := make(chan bool, 1)
	unsubscribe := bus.Subscribe(func(e events.Event) { changed <- e.Online }, events.ConnectivityChanged)
	defer unsubscribe()

	c.Start(context.Background())
	defer c.Stop()

	select {
	case online := <-changed:
		require.True(t, online)
	case <-time.After(5 * time.Second):
		t.Fatal("no connectivity event after start")
	}
}
