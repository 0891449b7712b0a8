package client

import (
	"context"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/client/config"
	"stockcount/internal/app/client/events"
	"stockcount/internal/app/client/peer"
	"stockcount/internal/domain/count"
)

func testConfig(t *testing.T, serverURL, deviceID string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:                 "local",
		ServerAddress:       strings.TrimPrefix(serverURL, "http://"),
		ConfigDir:           dir,
		DataPath:            filepath.Join(dir, "stockcount.db"),
		TokenPath:           filepath.Join(dir, "token"),
		DeviceID:            deviceID,
		DeviceName:          deviceID,
		SessionID:           "s1",
		SyncInterval:        time.Hour,
		HealthInterval:      time.Hour,
		RequestTimeout:      2 * time.Second,
		BackoffBase:         time.Minute,
		BackoffMax:          time.Hour,
		BLEChunkSize:        5,
		LANPorts:            []int{3001},
		LANProbeTimeout:     200 * time.Millisecond,
		LANListenAddress:    "127.0.0.1:0",
		ConnectionRequestID: "req-1",
	}
}

func newTestApp(t *testing.T, serverURL, deviceID string) *App {
	t.Helper()
	app, err := New(testConfig(t, serverURL, deviceID), slog.Default())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	return app
}

func addInput(name, sku, qty, cost string) count.AddInput {
	return count.AddInput{ProductName: name, SKU: sku, Quantity: dec(qty), UnitCost: dec(cost)}
}

func TestApp_AddCount(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeServer(t)
	app := newTestApp(t, srv.URL, "dev-a")

	item, err := app.AddCount(ctx, addInput("  Leche ", "", "2", "0"))
	require.NoError(t, err)
	assert.Equal(t, "Leche", item.ProductName)
	assert.Equal(t, "s1", item.SessionID)

	n, err := app.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	review, err := app.NeedsCostReview(ctx)
	require.NoError(t, err)
	assert.Len(t, review, 1)

	_, err = app.AddCount(ctx, addInput("Pan", "", "0", "1"))
	assert.ErrorIs(t, err, count.ErrInvalidQuantity)
	_, err = app.AddCount(ctx, addInput("Pan", "", "1", "-1"))
	assert.ErrorIs(t, err, count.ErrInvalidCost)
	_, err = app.AddCount(ctx, addInput("", "", "1", "1"))
	assert.ErrorIs(t, err, count.ErrInvalidInput)

	app.config.SessionID = ""
	_, err = app.AddCount(ctx, addInput("Pan", "", "1", "1"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestApp_AddCountAutoSend(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeServer(t)
	cfg := testConfig(t, srv.URL, "dev-a")
	cfg.AutoSend = true
	app, err := New(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	require.NoError(t, app.SaveToken("device-token"))

	item, err := app.AddCount(ctx, addInput("Leche", "", "1", "1"))
	require.NoError(t, err)

	assert.Equal(t, 1, fake.lineCount())
	got, err := app.storage.GetCount(ctx, item.LocalID)
	require.NoError(t, err)
	assert.Equal(t, count.StateSynced, got.SyncState)
	n, err := app.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	srv.Close()
	item, err = app.AddCount(ctx, addInput("Pan", "", "2", "1"))
	require.NoError(t, err)
	got, err = app.storage.GetCount(ctx, item.LocalID)
	require.NoError(t, err)
	assert.Equal(t, count.StatePending, got.SyncState)
	assert.Equal(t, 1, fake.lineCount())
}

func TestApp_RequestSyncNeedsRegistration(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeServer(t)
	app := newTestApp(t, srv.URL, "dev-a")
	assert.False(t, app.IsRegistered())

	_, err := app.AddCount(ctx, addInput("Leche", "", "1", "1"))
	require.NoError(t, err)

	_, err = app.RequestSync(ctx)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Zero(t, fake.lineCount())

	err = app.Register(ctx, "wrong")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))

	require.NoError(t, app.Register(ctx, "pairing"))
	assert.True(t, app.IsRegistered())
	token, err := app.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "device-token", token)

	res, err := app.RequestSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, fake.lineCount())

	st, err := app.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.True(t, st.Registered)
	assert.Zero(t, st.Pending)
	assert.Zero(t, st.Tasks)
}

func TestApp_EditAndRetryFailed(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeServer(t)
	app := newTestApp(t, srv.URL, "dev-a")
	require.NoError(t, app.SaveToken("device-token"))
	fake.set(func(f *fakeServer) { f.reject["Leche"] = 422 })

	item, err := app.AddCount(ctx, addInput("Leche", "", "1", "1"))
	require.NoError(t, err)

	res, err := app.RequestSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	errs, err := app.ListErrors(ctx)
	require.NoError(t, err)
	require.Len(t, errs, 1)

	fake.set(func(f *fakeServer) { delete(f.reject, "Leche") })
	n, err := app.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	qty := dec("4")
	edited, err := app.EditCount(ctx, item.LocalID, count.EditInput{Quantity: &qty})
	require.NoError(t, err)
	assert.True(t, edited.Quantity.Equal(qty))

	_, err = app.EditCount(ctx, item.LocalID, count.EditInput{})
	assert.ErrorIs(t, err, count.ErrInvalidInput)

	res, err = app.RequestSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
}

func TestApp_SendToPeerOverLAN(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeServer(t)
	sender := newTestApp(t, srv.URL, "dev-a")
	receiver := newTestApp(t, srv.URL, "dev-b")

	lan := peer.NewLAN(peer.LANConfig{DeviceName: "dev-b", ConnectionRequestID: "req-1"}, slog.Default())
	rsrv := httptest.NewServer(lan.Router(receiver.MergeCollaboratorBatch))
	t.Cleanup(rsrv.Close)

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(rsrv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	existing, err := receiver.AddCount(ctx, addInput("Leche", "111", "2", "1"))
	require.NoError(t, err)

	var synced []string
	unsubscribe := sender.Subscribe(func(e events.Event) { synced = append(synced, e.LocalID) }, events.ItemSynced)
	defer unsubscribe()

	a, err := sender.AddCount(ctx, addInput("Leche entera", "111", "3", "2"))
	require.NoError(t, err)
	b, err := sender.AddCount(ctx, addInput("Queso", "", "1", "9"))
	require.NoError(t, err)

	res, err := sender.SendToPeer(ctx, peer.Peer{Kind: peer.KindLAN, ID: "dev-b", IP: host, Port: port}, nil)
	require.NoError(t, err)
	assert.False(t, res.Queued)
	assert.ElementsMatch(t, []string{a.LocalID, b.LocalID}, res.Accepted)
	assert.ElementsMatch(t, res.Accepted, synced)

	n, err := sender.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := receiver.storage.GetCount(ctx, existing.LocalID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec("5")))
	assert.True(t, got.UnitCost.Equal(dec("2")))

	all, err := receiver.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestApp_SendToPeerViaRelayIsQueued(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeServer(t)
	app := newTestApp(t, srv.URL, "dev-a")
	require.NoError(t, app.SaveToken("device-token"))

	item, err := app.AddCount(ctx, addInput("Leche", "", "1", "1"))
	require.NoError(t, err)

	res, err := app.SendToPeer(ctx, peer.Peer{Kind: peer.KindRelay}, []string{item.LocalID})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.NotEmpty(t, res.BatchID)

	tasks, err := app.storage.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, count.TaskRelaySend, tasks[0].Kind)

	out, err := app.RequestSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Synced)
	assert.Zero(t, fake.lineCount())

	fake.mu.Lock()
	require.Len(t, fake.relayReqs, 1)
	assert.Equal(t, res.BatchID, fake.relayReqs[0].BatchID)
	fake.mu.Unlock()
}

func TestApp_UnknownPeerKind(t *testing.T) {
	_, srv := newFakeServer(t)
	app := newTestApp(t, srv.URL, "dev-a")

	_, err := app.SendToPeer(context.Background(), peer.Peer{Kind: "nfc"}, []string{"x"})
	assert.ErrorIs(t, err, ErrUnknownPeer)

	_, err = app.DiscoverPeers(context.Background(), peer.KindBLE)
	assert.ErrorIs(t, err, peer.ErrNotSupported)
}

func TestApp_PurgeSession(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeServer(t)
	app := newTestApp(t, srv.URL, "dev-a")
	require.NoError(t, app.SaveToken("device-token"))

	_, err := app.AddCount(ctx, addInput("Leche", "", "1", "1"))
	require.NoError(t, err)

	_, err = app.PurgeSession(ctx, "")
	assert.ErrorIs(t, err, count.ErrSessionOpen)

	_, err = app.RequestSync(ctx)
	require.NoError(t, err)

	n, err := app.PurgeSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
