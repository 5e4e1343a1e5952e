package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"client-portal/internal/entities"
)

const equipmentSelectFields = "cr07a_equiposdigitalappid,_cr07a_cliente_value,_cr07a_categoria_value," +
	"cr07a_marca,cr07a_modelo,cr07a_serial,cr07a_estado,cr07a_fechacompra,cr07a_notas," +
	"cr07a_asignadoa,_cr07a_ubicacionid_value,cr07a_ubicacion,cr07a_propioorenta," +
	"cr07a_actadeentrega,cr07a_actadeentrega_name"

// equipmentRow — строка cr07a_equiposdigitalapps из Web API. Метки
// справочников приходят аннотациями FormattedValue рядом с сырым значением.
type equipmentRow struct {
	ID         string `json:"cr07a_equiposdigitalappid"`
	ClientID   string `json:"_cr07a_cliente_value"`
	CategoryID string `json:"_cr07a_categoria_value"`

	Brand  string `json:"cr07a_marca"`
	Model  string `json:"cr07a_modelo"`
	Serial string `json:"cr07a_serial"`
	Notes  string `json:"cr07a_notas"`

	StatusValue *int   `json:"cr07a_estado"`
	StatusLabel string `json:"cr07a_estado@OData.Community.Display.V1.FormattedValue"`

	PurchaseDate string `json:"cr07a_fechacompra"`

	LocationID    string `json:"_cr07a_ubicacionid_value"`
	LocationLabel string `json:"_cr07a_ubicacionid_value@OData.Community.Display.V1.FormattedValue"`
	LocationText  string `json:"cr07a_ubicacion"`

	AssignedTo string `json:"cr07a_asignadoa"`

	OwnershipValue *int64 `json:"cr07a_propioorenta"`
	OwnershipLabel string `json:"cr07a_propioorenta@OData.Community.Display.V1.FormattedValue"`

	HandoverAct     string `json:"cr07a_actadeentrega"`
	HandoverActName string `json:"cr07a_actadeentrega_name"`
}

type equipmentListResponse struct {
	Value []equipmentRow `json:"value"`
}

// GetEquipmentByClient возвращает всё оборудование клиента одним запросом.
func (c *Client) GetEquipmentByClient(ctx context.Context, clientID uuid.UUID) ([]entities.Equipment, error) {
	if clientID == uuid.Nil {
		return []entities.Equipment{}, nil
	}

	filter := url.QueryEscape(fmt.Sprintf("_cr07a_cliente_value eq %s", clientID))
	endpoint := "/cr07a_equiposdigitalapps?$select=" + equipmentSelectFields + "&$filter=" + filter

	raw, err := c.fetchData(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить оборудование клиента: %w", err)
	}

	var parsed equipmentListResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка парсинга списка оборудования: %w", err)
	}

	items := make([]entities.Equipment, 0, len(parsed.Value))
	for _, row := range parsed.Value {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			c.logger.Warn("Запись оборудования с некорректным идентификатором пропущена",
				zap.String("id", row.ID))
			continue
		}

		item := entities.Equipment{
			ID:         id,
			ClientID:   parseGUID(row.ClientID),
			CategoryID: parseGUID(row.CategoryID),
			Brand:      row.Brand,
			Model:      row.Model,
			Serial:     row.Serial,
			Status:     row.StatusLabel,
			Notes:      row.Notes,
			AssignedTo: row.AssignedTo,
			Location:   row.LocationLabel,
		}

		// Без справочной локации используем свободный текст
		if item.Location == "" {
			item.Location = row.LocationText
		}

		item.PurchaseDate = parseDataverseTime(row.PurchaseDate)

		if locID := parseGUID(row.LocationID); locID != uuid.Nil {
			item.LocationID = uuid.NullUUID{UUID: locID, Valid: true}
		}

		if row.OwnershipValue != nil {
			item.OwnershipValue = null.IntFrom(int(*row.OwnershipValue))
			item.OwnershipLabel = null.StringFrom(row.OwnershipLabel)
		}

		if row.HandoverAct != "" {
			item.HasHandoverAct = true
			item.HandoverActName = null.StringFrom(row.HandoverActName)
		}

		items = append(items, item)
	}

	return items, nil
}

type categoryRow struct {
	ID   string `json:"cr07a_categoriasdigitalappid"`
	Name string `json:"cr07a_name"`
}

type categoryListResponse struct {
	Value []categoryRow `json:"value"`
}

// GetCategories возвращает общий справочник категорий оборудования.
func (c *Client) GetCategories(ctx context.Context) ([]entities.Category, error) {
	endpoint := "/cr07a_categoriasdigitalapps?$select=cr07a_categoriasdigitalappid,cr07a_name&$orderby=" +
		url.QueryEscape("cr07a_name asc")

	raw, err := c.fetchData(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить справочник категорий: %w", err)
	}

	var parsed categoryListResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка парсинга справочника категорий: %w", err)
	}

	categories := make([]entities.Category, 0, len(parsed.Value))
	for _, row := range parsed.Value {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			continue
		}
		categories = append(categories, entities.Category{ID: id, Name: row.Name})
	}

	return categories, nil
}

type locationRow struct {
	ID          string `json:"cr07a_ubicacionesdigitalappid"`
	Name        string `json:"cr07a_name"`
	Description string `json:"cr07a_descripcion"`
}

type locationListResponse struct {
	Value []locationRow `json:"value"`
}

// GetLocations возвращает локации, заведённые для конкретного клиента.
func (c *Client) GetLocations(ctx context.Context, clientID uuid.UUID) ([]entities.Location, error) {
	if clientID == uuid.Nil {
		return []entities.Location{}, nil
	}

	filter := url.QueryEscape(fmt.Sprintf("_cr07a_cliente_value eq %s", clientID))
	endpoint := "/cr07a_ubicacionesdigitalapps?$select=cr07a_ubicacionesdigitalappid,cr07a_name,cr07a_descripcion" +
		"&$filter=" + filter + "&$orderby=" + url.QueryEscape("cr07a_name asc")

	raw, err := c.fetchData(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить локации клиента: %w", err)
	}

	var parsed locationListResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("ошибка парсинга списка локаций: %w", err)
	}

	locations := make([]entities.Location, 0, len(parsed.Value))
	for _, row := range parsed.Value {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			continue
		}
		loc := entities.Location{ID: id, Name: row.Name}
		if row.Description != "" {
			loc.Description = null.StringFrom(row.Description)
		}
		locations = append(locations, loc)
	}

	return locations, nil
}

func parseGUID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Дата покупки хранится как Date Only, но старые записи встречаются
// и с полным timestamp.
func parseDataverseTime(s string) null.Time {
	if s == "" {
		return null.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return null.TimeFrom(t)
		}
	}
	return null.Time{}
}
