package app

import (
	"context"
	"time"

	"codequill/internal/config"
	"codequill/internal/db"
	"codequill/internal/handlers"
	"codequill/internal/logger"
	"codequill/internal/metrics"
	"codequill/internal/repository"
	"codequill/internal/routes"
	"codequill/internal/services"
	"codequill/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func InitApp(cfg *config.Config) (*mux.Router, error) {
	if err := db.RunMigrations(cfg.GetDSN()); err != nil {
		return nil, err
	}

	conn, err := db.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}

	// Репозитории
	userRepo := repository.NewUserRepository(conn)
	emailTokenRepo := repository.NewEmailTokenRepository(conn)
	articleRepo := repository.NewArticleRepo(conn)

	// Шина событий модерации. Если NATS не настроен, события просто не шлём.
	var events services.EventPublisher
	if cfg.NatsURL != "" {
		pub, err := services.NewNatsPublisher(cfg.NatsURL, "codequill.articles")
		if err != nil {
			logger.Log.Warn("NATS недоступен, события модерации отключены", zap.Error(err))
		} else {
			events = pub
		}
	}

	// Сервисы
	authService := services.NewAuthService(userRepo)
	emailService := services.NewEmailService(cfg)
	emailTokenService := services.NewEmailTokenService(emailTokenRepo, userRepo)
	articleSvc := services.NewArticleService(articleRepo, events)
	aiService := services.NewAIService(cfg.AIEndpoint, cfg.AIAPIKey, cfg.AIModel)

	// Хранилище обложек. Без MinIO загрузка обложек отвечает 503.
	var covers *storage.CoverStorage
	if cfg.MinioEndpoint != "" {
		covers, err = storage.NewCoverStorage(cfg)
		if err != nil {
			logger.Log.Warn("MinIO недоступен, загрузка обложек отключена", zap.Error(err))
			covers = nil
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := covers.EnsureBucket(ctx); err != nil {
				logger.Log.Warn("Не удалось создать бакет обложек", zap.Error(err))
			}
			cancel()
		}
	}

	// Метрики
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Хендлеры
	authHandler := handlers.NewAuthHandler(authService, emailTokenService)
	articleH := handlers.NewArticleHandler(articleSvc, collector)
	adminH := handlers.NewAdminHandler(articleSvc, collector)
	aiH := handlers.NewAIHandler(aiService, collector)
	uploadH := handlers.NewUploadHandler(covers)

	// Воркеры отправки писем
	for i := 0; i < 3; i++ {
		go services.StartEmailWorker(emailService)
	}

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, cfg.JWTSecret, collector, registry, authHandler, articleH, adminH, aiH, uploadH)

	return router, nil
}
