package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"client-portal/internal/dto"
	"client-portal/internal/entities"
	"client-portal/internal/services"
	apperrors "client-portal/pkg/errors"
	"client-portal/pkg/utils"
)

// Значения по умолчанию для постраничного списка пользователей.
const (
	defaultUsersPageSize = 20
	maxUsersPageSize     = 100
)

type InventoryController struct {
	inventoryService services.InventoryServiceInterface
	logger           *zap.Logger
}

func NewInventoryController(inventoryService services.InventoryServiceInterface, logger *zap.Logger) *InventoryController {
	return &InventoryController{inventoryService: inventoryService, logger: logger}
}

// GetEquipments возвращает оборудование клиента с именами владельцев.
func (c *InventoryController) GetEquipments(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	items, err := c.inventoryService.GetEquipments(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, items, "Список оборудования успешно получен", http.StatusOK)
}

// GetCatalogs возвращает справочники категорий и локаций для форм инвентаря.
func (c *InventoryController) GetCatalogs(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	catalogs, err := c.inventoryService.GetCatalogs(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, catalogs, "Справочники успешно получены", http.StatusOK)
}

// GetReportData отдаёт данные страницы отчётов одним ответом.
func (c *InventoryController) GetReportData(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	data, err := c.inventoryService.GetReportData(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, data, "Отчет успешно сформирован", http.StatusOK)
}

// ExportEquipments выгружает оборудование файлом: csv по умолчанию,
// xlsx по ?format=xlsx.
func (c *InventoryController) ExportEquipments(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	format := strings.ToLower(ctx.QueryParam("format"))

	if format == "xlsx" {
		items, err := c.inventoryService.GetEquipmentsForExport(reqCtx)
		if err != nil {
			return utils.ErrorResponse(ctx, err, c.logger)
		}
		return c.respondWithXLSX(ctx, items)
	}

	if format != "" && format != "csv" {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неизвестный формат выгрузки: "+format, nil, nil),
			c.logger)
	}

	data, fileName, err := c.inventoryService.ExportEquipmentCSV(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ListDirectoryUsers возвращает страницу пользователей тенанта.
func (c *InventoryController) ListDirectoryUsers(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var query dto.ListUsersQueryDTO
	if err := ctx.Bind(&query); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверные параметры запроса", err, nil),
			c.logger)
	}
	if err := ctx.Validate(&query); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if query.PageSize <= 0 {
		query.PageSize = defaultUsersPageSize
	}
	if query.PageSize > maxUsersPageSize {
		query.PageSize = maxUsersPageSize
	}

	page, err := c.inventoryService.ListDirectoryUsers(reqCtx, query)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	return utils.SuccessResponse(ctx, page, "Список пользователей успешно получен", http.StatusOK)
}

var equipmentHeaders = []string{
	"Бренд", "Модель", "Серийный номер", "Статус", "Дата покупки",
	"Локация", "Закреплено за", "Имя владельца", "Примечания", "Владение",
}

func equipmentRowToSlice(item entities.Equipment) []interface{} {
	var purchaseDate string
	if item.PurchaseDate.Valid {
		purchaseDate = item.PurchaseDate.Time.Format("2006-01-02")
	}

	return []interface{}{
		item.Brand, item.Model, item.Serial, item.Status, purchaseDate,
		item.Location, item.AssignedTo, item.AssignedName, item.Notes,
		item.OwnershipLabel.String,
	}
}

func (c *InventoryController) respondWithXLSX(ctx echo.Context, items []entities.Equipment) error {
	f := excelize.NewFile()
	sheet := "Оборудование"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &equipmentHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "J1", style)

	for i, item := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := equipmentRowToSlice(item)
		f.SetSheetRow(sheet, cell, &row)
	}
	f.SetColWidth(sheet, "A", "C", 20)
	f.SetColWidth(sheet, "F", "H", 25)
	f.SetColWidth(sheet, "I", "I", 40)

	fileName := fmt.Sprintf("equipment_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
