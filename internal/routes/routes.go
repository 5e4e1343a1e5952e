package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"client-portal/internal/controllers"
	"client-portal/internal/integrations/dataverse"
	"client-portal/internal/integrations/graph"
	"client-portal/internal/repositories"
	"client-portal/internal/services"
	"client-portal/pkg/config"
	"client-portal/pkg/middleware"
	"client-portal/pkg/service"
)

type Loggers struct {
	Main      *zap.Logger
	Auth      *zap.Logger
	Inventory *zap.Logger
}

func InitRouter(
	e *echo.Echo,
	graphClient graph.ClientInterface,
	dataverseClient dataverse.ClientInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	jwtSvc service.JWTService,
	loggers *Loggers,
	cfg *config.Config,
) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	// --- 0. ОБЩИЕ КОМПОНЕНТЫ ---
	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)

	// --- 1. СЕРВИСЫ ---
	inventoryService := services.NewInventoryService(
		dataverseClient, graphClient, cacheRepo, cfg.Cache.TTL, loggers.Inventory,
	)

	// --- 2. КОНТРОЛЛЕРЫ ---
	inventoryController := controllers.NewInventoryController(inventoryService, loggers.Inventory)

	// --- 3. РОУТЕРЫ ---
	secureGroup := api.Group("", authMW.Auth)
	runInventoryRouter(secureGroup, inventoryController)

	loggers.Main.Info("InitRouter: Создание маршрутов завершено")
}
