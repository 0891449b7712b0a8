package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
)

func TestSealOpen(t *testing.T) {
	batch := testBatch(3)

	env, err := Seal(batch, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", env.ConnectionRequestID)
	assert.Equal(t, batch.ID, env.BatchID)

	got, err := env.Open()
	require.NoError(t, err)
	assert.Equal(t, batch.ID, got.ID)
	assert.Len(t, got.Items, 3)

	tampered := env
	tampered.Checksum = "00"
	_, err = tampered.Open()
	assert.Error(t, err)

	mismatch := env
	mismatch.BatchID = "other"
	_, err = mismatch.Open()
	assert.Error(t, err)
}

func postEnvelope(t *testing.T, srv *httptest.Server, env BatchEnvelope) *http.Response {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/peer/batches", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestLANRouter(t *testing.T) {
	var received []count.Batch
	lan := NewLAN(LANConfig{DeviceName: "Caja1", Version: "1.0.0", ConnectionRequestID: "req-1"}, slog.Default())
	srv := httptest.NewServer(lan.Router(func(_ context.Context, b count.Batch) (Ack, error) {
		if b.ID == "boom" {
			return Ack{}, errors.New("disk full")
		}
		received = append(received, b)
		return AckAll(b), nil
	}))
	defer srv.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		var info healthBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, ServiceName, info.Service)
		assert.Equal(t, "Caja1", info.Name)
	})

	t.Run("accepted", func(t *testing.T) {
		env, err := Seal(testBatch(2), "req-1")
		require.NoError(t, err)

		resp := postEnvelope(t, srv, env)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var ack Ack
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
		assert.Equal(t, []string{"t00", "t01"}, ack.Accepted)
		require.Len(t, received, 1)
	})

	t.Run("other connection request", func(t *testing.T) {
		env, err := Seal(testBatch(1), "req-2")
		require.NoError(t, err)

		resp := postEnvelope(t, srv, env)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("bad checksum", func(t *testing.T) {
		env, err := Seal(testBatch(1), "req-1")
		require.NoError(t, err)
		env.Checksum = "ff"

		resp := postEnvelope(t, srv, env)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("handler failure", func(t *testing.T) {
		b := testBatch(1)
		b.ID = "boom"
		env, err := Seal(b, "")
		require.NoError(t, err)

		resp := postEnvelope(t, srv, env)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestLAN_SendAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	receiver := NewLAN(LANConfig{DeviceName: "Bodega"}, slog.Default())
	got := make(chan count.Batch, 1)
	served := make(chan error, 1)
	go func() {
		served <- receiver.Serve(ctx, ln, func(_ context.Context, b count.Batch) (Ack, error) {
			got <- b
			return Ack{BatchID: b.ID, Accepted: []string{"t00"}, Failed: []string{"t01"}}, nil
		})
	}()

	sender := NewLAN(LANConfig{
		Ports:        []int{port},
		ProbeTimeout: time.Second,
		Hosts:        func() ([]string, error) { return []string{"127.0.0.1"}, nil },
	}, slog.Default())

	var peers []Peer
	require.NoError(t, sender.Discover(ctx, func(p Peer) { peers = append(peers, p) }))
	require.Len(t, peers, 1)
	assert.Equal(t, "Bodega", peers[0].Name)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), peers[0].Address())

	ack, err := sender.Send(ctx, peers[0], testBatch(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"t00"}, ack.Accepted)
	assert.Equal(t, []string{"t01"}, ack.Failed)
	assert.Len(t, (<-got).Items, 2)

	cancel()
	assert.NoError(t, <-served)
}

func TestLAN_DiscoverSkipsForeignServices(t *testing.T) {
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(healthBody{Status: "OK", Service: "printer"})
	}))
	defer foreign.Close()
	port := foreign.Listener.Addr().(*net.TCPAddr).Port

	lan := NewLAN(LANConfig{
		Ports: []int{port},
		Hosts: func() ([]string, error) { return []string{"127.0.0.1"}, nil },
	}, slog.Default())

	var peers []Peer
	require.NoError(t, lan.Discover(context.Background(), func(p Peer) { peers = append(peers, p) }))

	assert.Empty(t, peers)
}

func TestLAN_SendStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "server error", status: http.StatusBadGateway, want: ErrTransferFailed},
		{name: "rejected", status: http.StatusForbidden, want: ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"no"}`))
			}))
			defer srv.Close()
			addr := srv.Listener.Addr().(*net.TCPAddr)

			lan := NewLAN(LANConfig{}, slog.Default())
			_, err := lan.Send(context.Background(), Peer{Kind: KindLAN, IP: "127.0.0.1", Port: addr.Port}, testBatch(1))

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCandidateHosts(t *testing.T) {
	own := []net.IP{net.IPv4(192, 168, 1, 37).To4()}

	hosts := candidateHosts(own)

	assert.Equal(t, routerHosts[0], hosts[0])
	assert.Contains(t, hosts, "192.168.1.2")
	assert.NotContains(t, hosts, "192.168.1.37")
	assert.Len(t, hosts, len(routerHosts)+253-2)

	seen := make(map[string]bool)
	for _, h := range hosts {
		assert.False(t, seen[h], h)
		seen[h] = true
	}
}
