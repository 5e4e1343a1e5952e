package routes

import (
	"github.com/labstack/echo/v4"

	"client-portal/internal/controllers"
)

func runInventoryRouter(g *echo.Group, ctrl *controllers.InventoryController) {
	g.GET("/inventory/equipments", ctrl.GetEquipments)
	g.GET("/inventory/catalogs", ctrl.GetCatalogs)
	g.GET("/inventory/equipments/export", ctrl.ExportEquipments)
	g.GET("/inventory/reports", ctrl.GetReportData)
	g.GET("/directory/users", ctrl.ListDirectoryUsers)
}
