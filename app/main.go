// Файл: main.go

package main

import (
	"context"
	"log"
	"net/http"

	"client-portal/internal/integrations/dataverse"
	"client-portal/internal/integrations/graph"
	"client-portal/internal/repositories"
	"client-portal/internal/routes"
	"client-portal/pkg/config"
	apperrors "client-portal/pkg/errors"
	applogger "client-portal/pkg/logger"
	appmiddleware "client-portal/pkg/middleware"
	"client-portal/pkg/service"
	"client-portal/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or could not be loaded.")
	}

	// 1. СНАЧАЛА создаем базовые экземпляры Echo и логгера
	e := echo.New()
	logger := applogger.NewLogger()

	// 2. Инициализируем и проверяем конфиг
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Некорректная конфигурация", zap.Error(err))
	}

	// 3. ПОСЛЕ этого настраиваем middleware, так как они используют logger и echo
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))

	e.Use(appmiddleware.InjectLogger(logger))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Disposition"},
	}))

	// 4. Валидатор входных параметров
	e.Validator = utils.NewValidator(validator.New())

	// 5. Клиенты внешних систем
	graphClient := graph.New(&cfg.Graph, logger)
	dataverseClient := dataverse.New(&cfg.Dataverse, logger)

	// 6. Кеш обогащения имён: redis, memory или выключен
	var cacheRepo repositories.CacheRepositoryInterface
	switch cfg.Cache.Backend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
		}
		cacheRepo = repositories.NewRedisCacheRepository(redisClient)
	case "memory":
		cacheRepo = repositories.NewLruCacheRepository(cfg.Cache.MaxSize, cfg.Cache.TTL)
	default:
		logger.Info("Кеш обогащения имён отключён")
	}

	// 7. Инициализируем сервисы
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)

	loggers := &routes.Loggers{
		Main:      logger,
		Auth:      logger.Named("auth"),
		Inventory: logger.Named("inventory"),
	}

	// 8. Инициализируем роуты
	routes.InitRouter(e, graphClient, dataverseClient, cacheRepo, jwtSvc, loggers, cfg)

	// 9. Запускаем сервер
	logger.Info("🚀 Сервер запущен на :" + cfg.Server.Port)
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Ошибка запуска сервера", zap.Error(err))
	}
}
