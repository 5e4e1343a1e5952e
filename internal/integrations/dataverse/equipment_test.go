package dataverse

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEquipmentByClientParsesAnnotations(t *testing.T) {
	clientID := uuid.New()
	equipmentID := uuid.New()
	categoryID := uuid.New()
	locationID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_equiposdigitalapps", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Prefer"), "FormattedValue")
		assert.Equal(t, fmt.Sprintf("_cr07a_cliente_value eq %s", clientID), r.URL.Query().Get("$filter"))
		assert.NotContains(t, r.RequestURI, " ", "параметры OData должны быть URL-экранированы")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[
			{
				"cr07a_equiposdigitalappid": "%s",
				"_cr07a_cliente_value": "%s",
				"_cr07a_categoria_value": "%s",
				"cr07a_marca": "Lenovo",
				"cr07a_modelo": "ThinkPad T14",
				"cr07a_serial": "SN-001",
				"cr07a_estado": 100000001,
				"cr07a_estado@OData.Community.Display.V1.FormattedValue": "В работе",
				"cr07a_fechacompra": "2024-03-15",
				"cr07a_notas": "выдан со склада",
				"cr07a_asignadoa": "ivanov@example.com",
				"_cr07a_ubicacionid_value": "%s",
				"_cr07a_ubicacionid_value@OData.Community.Display.V1.FormattedValue": "Главный офис",
				"cr07a_propioorenta": 100000000,
				"cr07a_propioorenta@OData.Community.Display.V1.FormattedValue": "Собственное",
				"cr07a_actadeentrega": "11111111-1111-1111-1111-111111111111",
				"cr07a_actadeentrega_name": "act-001.pdf"
			},
			{
				"cr07a_equiposdigitalappid": "%s",
				"_cr07a_cliente_value": "%s",
				"cr07a_marca": "HP",
				"cr07a_modelo": "LaserJet",
				"cr07a_serial": "SN-002"
			}
		]}`, equipmentID, clientID, categoryID, locationID, uuid.New(), clientID)
	})

	client := newTestDataverse(t, mux)

	items, err := client.GetEquipmentByClient(context.Background(), clientID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	full := items[0]
	assert.Equal(t, equipmentID, full.ID)
	assert.Equal(t, clientID, full.ClientID)
	assert.Equal(t, categoryID, full.CategoryID)
	assert.Equal(t, "Lenovo", full.Brand)
	assert.Equal(t, "В работе", full.Status, "статус берётся из форматированной метки")
	assert.Equal(t, "Главный офис", full.Location)
	require.True(t, full.LocationID.Valid)
	assert.Equal(t, locationID, full.LocationID.UUID)
	require.True(t, full.PurchaseDate.Valid)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), full.PurchaseDate.Time)
	assert.Equal(t, "ivanov@example.com", full.AssignedTo)
	require.True(t, full.OwnershipValue.Valid)
	assert.Equal(t, 100000000, full.OwnershipValue.Int)
	assert.Equal(t, "Собственное", full.OwnershipLabel.String)
	assert.True(t, full.HasHandoverAct)
	assert.Equal(t, "act-001.pdf", full.HandoverActName.String)

	bare := items[1]
	assert.Equal(t, uuid.Nil, bare.CategoryID)
	assert.False(t, bare.LocationID.Valid)
	assert.False(t, bare.PurchaseDate.Valid)
	assert.False(t, bare.OwnershipValue.Valid)
	assert.False(t, bare.HasHandoverAct)
}

func TestGetEquipmentByClientLocationFreeTextFallback(t *testing.T) {
	clientID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_equiposdigitalapps", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[
			{
				"cr07a_equiposdigitalappid": "%s",
				"cr07a_marca": "Dell",
				"cr07a_ubicacion": "Склад поставщика"
			},
			{
				"cr07a_equiposdigitalappid": "%s",
				"cr07a_marca": "HP",
				"_cr07a_ubicacionid_value": "%s",
				"_cr07a_ubicacionid_value@OData.Community.Display.V1.FormattedValue": "Главный офис",
				"cr07a_ubicacion": "устаревший текст"
			}
		]}`, uuid.New(), uuid.New(), uuid.New())
	})

	client := newTestDataverse(t, mux)

	items, err := client.GetEquipmentByClient(context.Background(), clientID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Без справочной локации берётся свободный текст
	assert.Equal(t, "Склад поставщика", items[0].Location)
	// Метка справочника имеет приоритет над свободным текстом
	assert.Equal(t, "Главный офис", items[1].Location)
}

func TestGetEquipmentByClientNilClient(t *testing.T) {
	client := newTestDataverse(t, nil)

	items, err := client.GetEquipmentByClient(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetEquipmentByClientSkipsBrokenRows(t *testing.T) {
	clientID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_equiposdigitalapps", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[
			{"cr07a_equiposdigitalappid": "не-guid", "cr07a_marca": "Broken"},
			{"cr07a_equiposdigitalappid": "%s", "cr07a_marca": "Dell"}
		]}`, uuid.New())
	})

	client := newTestDataverse(t, mux)

	items, err := client.GetEquipmentByClient(context.Background(), clientID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dell", items[0].Brand)
}

func TestGetCategories(t *testing.T) {
	catID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_categoriasdigitalapps", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cr07a_name asc", r.URL.Query().Get("$orderby"))
		assert.NotContains(t, r.RequestURI, " ", "параметры OData должны быть URL-экранированы")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[{"cr07a_categoriasdigitalappid":"%s","cr07a_name":"Ноутбуки"}]}`, catID)
	})

	client := newTestDataverse(t, mux)

	categories, err := client.GetCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, catID, categories[0].ID)
	assert.Equal(t, "Ноутбуки", categories[0].Name)
}

func TestGetLocations(t *testing.T) {
	clientID := uuid.New()
	locID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_ubicacionesdigitalapps", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("$filter"), clientID.String())
		assert.NotContains(t, r.RequestURI, " ", "параметры OData должны быть URL-экранированы")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[{"cr07a_ubicacionesdigitalappid":"%s","cr07a_name":"Склад","cr07a_descripcion":"Основной склад"}]}`, locID)
	})

	client := newTestDataverse(t, mux)

	locations, err := client.GetLocations(context.Background(), clientID)
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "Склад", locations[0].Name)
	assert.Equal(t, "Основной склад", locations[0].Description.String)
}
