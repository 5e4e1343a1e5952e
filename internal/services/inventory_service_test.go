package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"client-portal/internal/dto"
	"client-portal/internal/entities"
	"client-portal/internal/integrations/graph"
	"client-portal/internal/repositories"
	"client-portal/pkg/contextkeys"
	apperrors "client-portal/pkg/errors"
)

// fakeDataverse — система учёта в памяти.
type fakeDataverse struct {
	clientID   uuid.UUID
	equipment  []entities.Equipment
	categories []entities.Category
	locations  []entities.Location
	lookupErr  error
}

func (f *fakeDataverse) GetClientIDByEmail(_ context.Context, _ string) (uuid.UUID, error) {
	return f.clientID, f.lookupErr
}

func (f *fakeDataverse) GetEquipmentByClient(_ context.Context, _ uuid.UUID) ([]entities.Equipment, error) {
	out := make([]entities.Equipment, len(f.equipment))
	copy(out, f.equipment)
	return out, nil
}

func (f *fakeDataverse) GetCategories(_ context.Context) ([]entities.Category, error) {
	return f.categories, nil
}

func (f *fakeDataverse) GetLocations(_ context.Context, _ uuid.UUID) ([]entities.Location, error) {
	return f.locations, nil
}

// fakeGraph — каталог с фиксированной картой имён и счётчиком обращений.
type fakeGraph struct {
	names        map[string]string
	resolveCalls int
	unlicensed   graph.UnlicensedUsersResult
	listErr      error
}

func (f *fakeGraph) ListUsers(_ context.Context, _ graph.ListUsersOptions) (*graph.UsersPage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &graph.UsersPage{}, nil
}

func (f *fakeGraph) ResolveDisplayNames(_ context.Context, upns []string) map[string]string {
	f.resolveCalls++
	result := make(map[string]string)
	for _, upn := range upns {
		key := strings.ToLower(upn)
		if name, ok := f.names[key]; ok {
			result[key] = name
		}
	}
	return result
}

func (f *fakeGraph) CountUnlicensedUsers(_ context.Context) graph.UnlicensedUsersResult {
	return f.unlicensed
}

func authCtx(email string) context.Context {
	return context.WithValue(context.Background(), contextkeys.UserEmailKey, email)
}

func newTestService(dv *fakeDataverse, g *fakeGraph, cache repositories.CacheRepositoryInterface) InventoryServiceInterface {
	return NewInventoryService(dv, g, cache, time.Minute, zap.NewNop())
}

func TestGetEquipmentsEnrichesNames(t *testing.T) {
	dv := &fakeDataverse{
		clientID: uuid.New(),
		equipment: []entities.Equipment{
			{ID: uuid.New(), Brand: "Lenovo", AssignedTo: "Ivanov@Example.com"},
			{ID: uuid.New(), Brand: "HP", AssignedTo: "ghost@example.com"},
			{ID: uuid.New(), Brand: "Dell"},
		},
	}
	g := &fakeGraph{names: map[string]string{"ivanov@example.com": "Иван Иванов"}}

	svc := newTestService(dv, g, nil)

	items, err := svc.GetEquipments(authCtx("client@example.com"))
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "Иван Иванов", items[0].AssignedName)
	// Неразрешённый UPN показывается как есть
	assert.Equal(t, "ghost@example.com", items[1].AssignedName)
	assert.Equal(t, "", items[2].AssignedName)
}

func TestGetEquipmentsUnauthorizedWithoutEmail(t *testing.T) {
	svc := newTestService(&fakeDataverse{}, &fakeGraph{}, nil)

	_, err := svc.GetEquipments(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetEquipmentsClientNotFound(t *testing.T) {
	svc := newTestService(&fakeDataverse{clientID: uuid.Nil}, &fakeGraph{}, nil)

	_, err := svc.GetEquipments(authCtx("unknown@example.com"))
	assert.ErrorIs(t, err, apperrors.ErrClientNotFound)
}

func TestGetEquipmentsWrapsLookupError(t *testing.T) {
	dv := &fakeDataverse{lookupErr: errors.New("connection refused")}
	svc := newTestService(dv, &fakeGraph{}, nil)

	_, err := svc.GetEquipments(authCtx("client@example.com"))

	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.Code)
}

func TestEnrichmentUsesCache(t *testing.T) {
	dv := &fakeDataverse{
		clientID: uuid.New(),
		equipment: []entities.Equipment{
			{ID: uuid.New(), AssignedTo: "ivanov@example.com"},
		},
	}
	g := &fakeGraph{names: map[string]string{"ivanov@example.com": "Иван Иванов"}}
	cache := repositories.NewLruCacheRepository(100, time.Minute)

	svc := newTestService(dv, g, cache)

	_, err := svc.GetEquipments(authCtx("client@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, g.resolveCalls)

	// Повторный запрос берёт имя из кеша, каталог не трогается
	items, err := svc.GetEquipments(authCtx("client@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 1, g.resolveCalls)
	assert.Equal(t, "Иван Иванов", items[0].AssignedName)
}

func TestGetReportDataAggregates(t *testing.T) {
	laptops := uuid.New()
	dv := &fakeDataverse{
		clientID:   uuid.New(),
		categories: []entities.Category{{ID: laptops, Name: "Ноутбуки"}},
		equipment: []entities.Equipment{
			{ID: uuid.New(), CategoryID: laptops, Brand: "Lenovo", Location: "Склад"},
			{ID: uuid.New(), CategoryID: laptops, Brand: "Lenovo", Location: "склад"},
			{ID: uuid.New(), Brand: "HP"},
		},
	}
	g := &fakeGraph{
		unlicensed: graph.UnlicensedUsersResult{
			Count:   5,
			Warning: "Использован альтернативный метод.",
			Users:   []entities.UnlicensedUserSummary{{UserPrincipalName: "u@example.com"}},
		},
	}

	svc := newTestService(dv, g, nil)

	data, err := svc.GetReportData(authCtx("client@example.com"))
	require.NoError(t, err)

	require.Len(t, data.ByCategory, 2)
	assert.Equal(t, "Ноутбуки", data.ByCategory[0].Label)
	assert.Equal(t, 2, data.ByCategory[0].Count)

	require.Len(t, data.ByLocation, 2)
	assert.Equal(t, "Склад", data.ByLocation[0].Label)
	assert.Equal(t, 2, data.ByLocation[0].Count)

	assert.Equal(t, 5, data.UnlicensedCount)
	assert.Equal(t, "Использован альтернативный метод.", data.UnlicensedWarning)
	require.Len(t, data.UnlicensedUsers, 1)
}

func TestGetCatalogs(t *testing.T) {
	dv := &fakeDataverse{
		clientID:   uuid.New(),
		categories: []entities.Category{{ID: uuid.New(), Name: "Ноутбуки"}},
	}
	svc := newTestService(dv, &fakeGraph{}, nil)

	catalogs, err := svc.GetCatalogs(authCtx("client@example.com"))
	require.NoError(t, err)
	require.Len(t, catalogs.Categories, 1)
	assert.NotNil(t, catalogs.Locations, "пустой список локаций не должен быть nil")
}

func TestExportEquipmentCSV(t *testing.T) {
	dv := &fakeDataverse{
		clientID: uuid.New(),
		equipment: []entities.Equipment{
			{ID: uuid.New(), Brand: "Lenovo", Serial: "SN-1"},
		},
	}
	svc := newTestService(dv, &fakeGraph{}, nil)

	data, fileName, err := svc.ExportEquipmentCSV(authCtx("client@example.com"))
	require.NoError(t, err)
	assert.Contains(t, fileName, "equipment_")
	assert.Contains(t, fileName, ".csv")
	assert.Contains(t, string(data), "Lenovo")
	assert.Contains(t, string(data), "Бренд")
}

func TestListDirectoryUsersRequiresAuth(t *testing.T) {
	svc := newTestService(&fakeDataverse{}, &fakeGraph{}, nil)

	_, err := svc.ListDirectoryUsers(context.Background(), dto.ListUsersQueryDTO{PageSize: 20})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestListDirectoryUsersMissingCredentialsIs401(t *testing.T) {
	g := &fakeGraph{listErr: fmt.Errorf("токен: %w", apperrors.ErrGraphCredentialsMissing)}
	svc := newTestService(&fakeDataverse{}, g, nil)

	_, err := svc.ListDirectoryUsers(authCtx("client@example.com"), dto.ListUsersQueryDTO{PageSize: 20})

	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 401, httpErr.Code)
}

func TestListDirectoryUsersUpstreamFailureIs502(t *testing.T) {
	g := &fakeGraph{listErr: errors.New("connection refused")}
	svc := newTestService(&fakeDataverse{}, g, nil)

	_, err := svc.ListDirectoryUsers(authCtx("client@example.com"), dto.ListUsersQueryDTO{PageSize: 20})

	var httpErr *apperrors.HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 502, httpErr.Code)
}
