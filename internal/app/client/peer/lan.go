package peer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"stockcount/internal/domain/count"
)

const (
	ServiceName = "stockcount"

	DefaultProbeTimeout = 800 * time.Millisecond
	defaultProbeLimit   = 64
)

var DefaultPorts = []int{3000, 3001, 8080, 5000}

// routerHosts типичные адреса роутеров и раздаваемые ими первые адреса; проверяются первыми
var routerHosts = []string{
	"192.168.0.1", "192.168.1.1", "192.168.0.100", "192.168.1.100",
	"192.168.100.1", "10.0.0.1", "10.0.0.2", "172.16.0.1",
}

type LANConfig struct {
	DeviceID      string
	DeviceName    string
	Version       string
	Ports         []int
	ProbeTimeout  time.Duration
	ProbeLimit    int
	ListenAddress string
	// ConnectionRequestID приглашение на сервере, к которому относится обмен
	ConnectionRequestID string
	// Hosts переопределяет список адресов для проверки
	Hosts func() ([]string, error)
}

type LAN struct {
	cfg    LANConfig
	client *http.Client
	log    *slog.Logger
}

func NewLAN(cfg LANConfig, log *slog.Logger) *LAN {
	if len(cfg.Ports) == 0 {
		cfg.Ports = DefaultPorts
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = defaultProbeLimit
	}
	if cfg.Hosts == nil {
		cfg.Hosts = CandidateHosts
	}
	return &LAN{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log.With("component", "lan_adapter"),
	}
}

func (l *LAN) Kind() Kind {
	return KindLAN
}

type healthBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Discover проверяет адреса в порядке приоритета на всех портах; найденным считается
// узел, ответивший на /health телом stockcount.
func (l *LAN) Discover(ctx context.Context, found func(Peer)) error {
	hosts, err := l.cfg.Hosts()
	if err != nil {
		return fmt.Errorf("ошибка получения адресов сети: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.ProbeLimit)

	probed := 0
	for _, host := range hosts {
		for _, port := range l.cfg.Ports {
			if gctx.Err() != nil {
				break
			}
			host, port := host, port
			probed++
			g.Go(func() error {
				info, ok := l.probe(gctx, host, port)
				if !ok {
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				found(Peer{
					Kind:    KindLAN,
					ID:      net.JoinHostPort(host, strconv.Itoa(port)),
					Name:    info.Name,
					IP:      host,
					Port:    port,
					Version: info.Version,
				})
				return nil
			})
		}
	}
	_ = g.Wait()

	l.log.Debug("Поиск в сети завершен", "probes", probed)
	return nil
}

func (l *LAN) probe(ctx context.Context, host string, port int) (healthBody, bool) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ProbeTimeout)
	defer cancel()

	url := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return healthBody{}, false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return healthBody{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return healthBody{}, false
	}
	var info healthBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&info); err != nil {
		return healthBody{}, false
	}
	return info, info.Status == "OK" && info.Service == ServiceName
}

// BatchEnvelope тело POST /peer/batches
type BatchEnvelope struct {
	ConnectionRequestID string `json:"connectionRequestId,omitempty" doc:"Приглашение на сервере, к которому относится обмен"`
	PeerID              string `json:"peerId" minLength:"1"`
	BatchID             string `json:"batchId" minLength:"1"`
	Payload             string `json:"payload" minLength:"1" doc:"Пакет, base64(JSON)"`
	Checksum            string `json:"checksum" doc:"BLAKE2b-256 от JSON пакета, hex"`
}

// Seal кодирует пакет в конверт
func Seal(b count.Batch, connectionRequestID string) (BatchEnvelope, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return BatchEnvelope{}, fmt.Errorf("ошибка кодирования пакета: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return BatchEnvelope{
		ConnectionRequestID: connectionRequestID,
		PeerID:              b.PeerID,
		BatchID:             b.ID,
		Payload:             base64.StdEncoding.EncodeToString(raw),
		Checksum:            hex.EncodeToString(sum[:]),
	}, nil
}

// Open проверяет контрольную сумму и раскодирует пакет
func (e BatchEnvelope) Open() (count.Batch, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return count.Batch{}, fmt.Errorf("неверный base64: %w", err)
	}
	sum := blake2b.Sum256(raw)
	if hex.EncodeToString(sum[:]) != e.Checksum {
		return count.Batch{}, errors.New("контрольная сумма не совпадает")
	}
	var b count.Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return count.Batch{}, fmt.Errorf("неверный пакет: %w", err)
	}
	if b.ID != e.BatchID || b.PeerID != e.PeerID {
		return count.Batch{}, errors.New("заголовок конверта не совпадает с пакетом")
	}
	return b, nil
}

func (l *LAN) Send(ctx context.Context, p Peer, batch count.Batch) (Ack, error) {
	env, err := Seal(batch, l.cfg.ConnectionRequestID)
	if err != nil {
		return Ack{}, err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Ack{}, fmt.Errorf("ошибка кодирования конверта: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+p.Address()+"/peer/batches", bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if resp.StatusCode >= 400 {
		var eb struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(data, &eb)
		if resp.StatusCode >= 500 {
			return Ack{}, fmt.Errorf("%w: статус %d %s", ErrTransferFailed, resp.StatusCode, eb.Detail)
		}
		return Ack{}, fmt.Errorf("%w: статус %d %s", ErrRejected, resp.StatusCode, eb.Detail)
	}

	var ack Ack
	if err := json.Unmarshal(data, &ack); err != nil {
		return Ack{}, fmt.Errorf("%w: неверный ответ: %v", ErrTransferFailed, err)
	}
	l.log.Info("Пакет передан по сети", "peer", p.Address(), "batch", batch.ID, "accepted", len(ack.Accepted))
	return ack, nil
}

// Receive поднимает HTTP-приемник на ListenAddress до отмены ctx
func (l *LAN) Receive(ctx context.Context, onBatch Handler) error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("ошибка запуска приемника: %w", err)
	}
	return l.Serve(ctx, ln, onBatch)
}

// Serve как Receive, но на готовом listener
func (l *LAN) Serve(ctx context.Context, ln net.Listener, onBatch Handler) error {
	srv := &http.Server{
		Handler:           l.Router(onBatch),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	l.log.Info("Прием пакетов по сети", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type lanHealthOutput struct {
	Body healthBody
}

type lanBatchInput struct {
	Body BatchEnvelope
}

type lanBatchOutput struct {
	Body Ack
}

// Router обработчики приемника: /health для поиска и /peer/batches для пакетов
func (l *LAN) Router(onBatch Handler) *chi.Mux {
	mux := chi.NewMux()
	api := humachi.New(mux, huma.DefaultConfig("Stockcount peer", l.cfg.Version))

	huma.Register(api, huma.Operation{
		OperationID: "peer-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Проверка для поиска в сети",
		Tags:        []string{"peer"},
	}, func(_ context.Context, _ *struct{}) (*lanHealthOutput, error) {
		return &lanHealthOutput{Body: healthBody{
			Status:  "OK",
			Service: ServiceName,
			Name:    l.cfg.DeviceName,
			Version: l.cfg.Version,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "peer-batch",
		Method:      http.MethodPost,
		Path:        "/peer/batches",
		Summary:     "Принять пакет позиций коллеги",
		Tags:        []string{"peer"},
	}, func(ctx context.Context, input *lanBatchInput) (*lanBatchOutput, error) {
		env := input.Body
		if l.cfg.ConnectionRequestID != "" && env.ConnectionRequestID != "" &&
			env.ConnectionRequestID != l.cfg.ConnectionRequestID {
			return nil, huma.Error403Forbidden("пакет относится к другому приглашению")
		}

		batch, err := env.Open()
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		ack, err := onBatch(ctx, batch)
		if err != nil {
			l.log.Error("Ошибка приема пакета", "batch", batch.ID, "error", err)
			return nil, huma.Error500InternalServerError("ошибка приема пакета")
		}
		return &lanBatchOutput{Body: ack}, nil
	})

	return mux
}

// CandidateHosts адреса роутеров, затем соседние адреса собственных /24 сетей
func CandidateHosts() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var own []net.IP
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			own = append(own, ip4)
		}
	}
	return candidateHosts(own), nil
}

func candidateHosts(own []net.IP) []string {
	seen := make(map[string]struct{})
	self := make(map[string]struct{})
	for _, ip := range own {
		self[ip.String()] = struct{}{}
	}

	var hosts []string
	add := func(h string) {
		if _, ok := seen[h]; ok {
			return
		}
		if _, ok := self[h]; ok {
			return
		}
		seen[h] = struct{}{}
		hosts = append(hosts, h)
	}

	for _, h := range routerHosts {
		add(h)
	}
	for _, ip := range own {
		for i := 1; i < 255; i++ {
			add(net.IPv4(ip[0], ip[1], ip[2], byte(i)).String())
		}
	}
	return hosts
}
