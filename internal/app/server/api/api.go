//POST /devices/register                  # Регистрация устройства (публичный)
//GET  /health                            # Проверка и обнаружение в LAN (публичный)
//POST /sessions/{id}/products            # Добавить позицию (auth)
//GET  /sessions/{id}/products            # Строки сессии (auth)
//PATCH /sessions/{id}/products/{lineId}  # Изменить позицию (auth)
//POST /products/resolve                  # Найти или создать товар (auth)
//POST /connection-requests               # Приглашение коллеги (auth)
//POST /connection-requests/{id}/sync     # Пакет коллеги через сервер (auth)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api/http/catalog"
	"stockcount/internal/app/server/api/http/device"
	healthAPI "stockcount/internal/app/server/api/http/health"
	"stockcount/internal/app/server/api/http/middleware"
	"stockcount/internal/app/server/api/http/middleware/auth"
	"stockcount/internal/app/server/api/http/middleware/logger"
	relayAPI "stockcount/internal/app/server/api/http/relay"
	sessionAPI "stockcount/internal/app/server/api/http/session"
	"stockcount/internal/app/server/config"
	catalogDomain "stockcount/internal/domain/catalog"
	"stockcount/internal/domain/count"
	deviceDomain "stockcount/internal/domain/device"
	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/relay"
	"stockcount/internal/domain/session"
	"stockcount/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health  *healthAPI.Handler
	Device  *device.Handler
	Session *sessionAPI.Handler
	Catalog *catalog.Handler
	Relay   *relayAPI.Handler
}

// New создает *chi.Mux с ВСЕМИ операциями через huma.Register
func New(cfg *config.Config, storage *postgres.Storage, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("Stockcount API", config.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(cfg, storage, log)
	h.Health.SetupRoutes(API)
	h.Device.SetupRoutes(API)
	h.Session.SetupRoutes(API)
	h.Catalog.SetupRoutes(API)
	h.Relay.SetupRoutes(API)

	return mux
}

func handlers(cfg *config.Config, storage *postgres.Storage, log *slog.Logger) *Handlers {
	deviceRepo := postgres.NewDeviceRepository(storage, log)
	deviceService := deviceDomain.NewService(deviceRepo, cfg.Device.PairingSecretHash, log)
	authMW := auth.New(deviceService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, cfg.Server.Name, config.Version, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	deviceHandler := device.NewHandler(deviceService, log, middlewares.GetAllAndClear())

	catalogRepo := postgres.NewCatalogRepository(storage, log)
	catalogService := catalogDomain.NewService(catalogRepo, log)
	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	catalogHandler := catalog.NewHandler(catalogService, log, middlewares.GetAllAndClear())

	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, catalogService, log)
	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	sessionHandler := sessionAPI.NewHandler(sessionService, log, middlewares.GetAllAndClear())

	mergeService := merge.NewService(postgres.NewMergeStore(storage), catalogService, log)
	relayRepo := postgres.NewRelayRepository(storage, log)
	relayService := relay.NewService(relayRepo, mergeService, count.NewItemValidator(), log)
	middlewares.Add(loggerMW.Middleware())
	middlewares.Add(authMW.Middleware())
	relayHandler := relayAPI.NewHandler(relayService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		Device:  deviceHandler,
		Session: sessionHandler,
		Catalog: catalogHandler,
		Relay:   relayHandler,
	}
}
