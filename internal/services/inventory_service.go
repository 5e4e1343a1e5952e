package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"client-portal/internal/dto"
	"client-portal/internal/entities"
	"client-portal/internal/integrations/dataverse"
	"client-portal/internal/integrations/graph"
	"client-portal/internal/repositories"
	apperrors "client-portal/pkg/errors"
	"client-portal/pkg/utils"
)

type InventoryServiceInterface interface {
	GetEquipments(ctx context.Context) ([]dto.EquipmentDTO, error)
	GetCatalogs(ctx context.Context) (*dto.CatalogsDTO, error)
	GetReportData(ctx context.Context) (*dto.ReportDataDTO, error)
	ExportEquipmentCSV(ctx context.Context) ([]byte, string, error)
	GetEquipmentsForExport(ctx context.Context) ([]entities.Equipment, error)
	ListDirectoryUsers(ctx context.Context, query dto.ListUsersQueryDTO) (*dto.UsersPageDTO, error)
}

type inventoryService struct {
	dataverseClient dataverse.ClientInterface
	graphClient     graph.ClientInterface
	cacheRepo       repositories.CacheRepositoryInterface // nil, если кеш отключён
	cacheTTL        time.Duration
	logger          *zap.Logger
}

func NewInventoryService(
	dataverseClient dataverse.ClientInterface,
	graphClient graph.ClientInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	cacheTTL time.Duration,
	logger *zap.Logger,
) InventoryServiceInterface {
	return &inventoryService{
		dataverseClient: dataverseClient,
		graphClient:     graphClient,
		cacheRepo:       cacheRepo,
		cacheTTL:        cacheTTL,
		logger:          logger,
	}
}

// resolveClientID определяет клиента по e-mail аутентифицированного
// пользователя. Отсутствие e-mail в контексте или клиента в Dataverse —
// жёсткий отказ: без привязки к клиенту данных не существует.
func (s *inventoryService) resolveClientID(ctx context.Context) (uuid.UUID, error) {
	email, err := utils.GetEmailFromCtx(ctx)
	if err != nil {
		return uuid.Nil, apperrors.ErrUnauthorized
	}

	clientID, err := s.dataverseClient.GetClientIDByEmail(ctx, email)
	if err != nil {
		s.logger.Error("Ошибка поиска клиента в Dataverse", zap.Error(err))
		return uuid.Nil, apperrors.NewHttpError(500, "Не удалось обратиться к системе учёта.", err, nil)
	}
	if clientID == uuid.Nil {
		s.logger.Warn("Клиент для аутентифицированного email не найден", zap.String("email", email))
		return uuid.Nil, apperrors.ErrClientNotFound
	}

	return clientID, nil
}

// GetEquipments возвращает оборудование клиента с именами владельцев.
func (s *inventoryService) GetEquipments(ctx context.Context) ([]dto.EquipmentDTO, error) {
	items, err := s.fetchClientEquipment(ctx)
	if err != nil {
		return nil, err
	}

	enriched := s.enrichEquipments(ctx, items)

	result := make([]dto.EquipmentDTO, len(enriched))
	for i, item := range enriched {
		result[i] = equipmentToDTO(item)
	}
	return result, nil
}

// GetCatalogs возвращает справочники категорий и локаций клиента.
func (s *inventoryService) GetCatalogs(ctx context.Context) (*dto.CatalogsDTO, error) {
	clientID, err := s.resolveClientID(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.dataverseClient.GetCategories(ctx)
	if err != nil {
		s.logger.Error("Ошибка получения справочника категорий", zap.Error(err))
		return nil, apperrors.NewHttpError(500, "Не удалось получить справочник категорий.", err, nil)
	}

	locations, err := s.dataverseClient.GetLocations(ctx, clientID)
	if err != nil {
		s.logger.Error("Ошибка получения локаций клиента", zap.Error(err))
		return nil, apperrors.NewHttpError(500, "Не удалось получить список локаций.", err, nil)
	}

	if categories == nil {
		categories = []entities.Category{}
	}
	if locations == nil {
		locations = []entities.Location{}
	}

	return &dto.CatalogsDTO{Categories: categories, Locations: locations}, nil
}

// GetReportData собирает данные страницы отчётов: распределения по
// категориям, локациям и брендам плюс счётчик пользователей без лицензии.
func (s *inventoryService) GetReportData(ctx context.Context) (*dto.ReportDataDTO, error) {
	items, err := s.fetchClientEquipment(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.dataverseClient.GetCategories(ctx)
	if err != nil {
		s.logger.Error("Ошибка получения справочника категорий", zap.Error(err))
		return nil, apperrors.NewHttpError(500, "Не удалось получить справочник категорий.", err, nil)
	}

	unlicensed := s.graphClient.CountUnlicensedUsers(ctx)
	if unlicensed.Warning != "" {
		s.logger.Warn("Подсчёт пользователей без лицензии завершился с предупреждением",
			zap.String("warning", unlicensed.Warning))
	}

	return &dto.ReportDataDTO{
		ByCategory:        GroupByCategory(items, categories),
		ByLocation:        GroupByLocation(items),
		ByBrand:           GroupByBrand(items),
		UnlicensedCount:   unlicensed.Count,
		UnlicensedWarning: unlicensed.Warning,
		UnlicensedUsers:   unlicensed.Users,
	}, nil
}

// GetEquipmentsForExport отдаёт сырой список для табличных выгрузок.
func (s *inventoryService) GetEquipmentsForExport(ctx context.Context) ([]entities.Equipment, error) {
	items, err := s.fetchClientEquipment(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrichEquipments(ctx, items), nil
}

// ExportEquipmentCSV возвращает готовый CSV и имя файла выгрузки.
func (s *inventoryService) ExportEquipmentCSV(ctx context.Context) ([]byte, string, error) {
	items, err := s.GetEquipmentsForExport(ctx)
	if err != nil {
		return nil, "", err
	}

	data, err := BuildEquipmentCSV(items)
	if err != nil {
		s.logger.Error("Ошибка формирования CSV-выгрузки", zap.Error(err))
		return nil, "", apperrors.NewHttpError(500, "Не удалось сформировать CSV-файл.", err, nil)
	}

	fileName := fmt.Sprintf("equipment_%s.csv", time.Now().UTC().Format("20060102_150405"))
	return data, fileName, nil
}

// ListDirectoryUsers проксирует постраничный список пользователей тенанта.
func (s *inventoryService) ListDirectoryUsers(ctx context.Context, query dto.ListUsersQueryDTO) (*dto.UsersPageDTO, error) {
	if _, err := utils.GetEmailFromCtx(ctx); err != nil {
		return nil, apperrors.ErrUnauthorized
	}

	page, err := s.graphClient.ListUsers(ctx, graph.ListUsersOptions{
		PageSize:  query.PageSize,
		SkipToken: query.SkipToken,
		Term:      strings.TrimSpace(query.Term),
	})
	if err != nil {
		s.logger.Error("Ошибка получения страницы пользователей из Graph", zap.Error(err))
		if errors.Is(err, apperrors.ErrGraphCredentialsMissing) {
			return nil, apperrors.NewHttpError(401, "Не удалось инициализировать клиент Microsoft Graph.", err, nil)
		}
		return nil, apperrors.NewHttpError(502, "Не удалось получить список пользователей из каталога.", err, nil)
	}

	return &dto.UsersPageDTO{
		Users:         page.Users,
		NextSkipToken: page.NextSkipToken,
		PageSize:      query.PageSize,
		Term:          strings.TrimSpace(query.Term),
	}, nil
}

func (s *inventoryService) fetchClientEquipment(ctx context.Context) ([]entities.Equipment, error) {
	clientID, err := s.resolveClientID(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.dataverseClient.GetEquipmentByClient(ctx, clientID)
	if err != nil {
		s.logger.Error("Ошибка получения оборудования из Dataverse",
			zap.String("client_id", clientID.String()), zap.Error(err))
		return nil, apperrors.NewHttpError(500, "Не удалось получить список оборудования.", err, nil)
	}

	return items, nil
}

// enrichEquipments заполняет AssignedName по UPN владельца.
// Неразрешённые UPN показываются как есть — это честнее пустой строки.
func (s *inventoryService) enrichEquipments(ctx context.Context, items []entities.Equipment) []entities.Equipment {
	// Собираем уникальные UPN без учёта регистра
	seen := make(map[string]struct{})
	var upns []string
	for _, item := range items {
		upn := strings.TrimSpace(item.AssignedTo)
		if upn == "" {
			continue
		}
		key := strings.ToLower(upn)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		upns = append(upns, upn)
	}

	if len(upns) == 0 {
		return items
	}

	names := make(map[string]string, len(upns))

	// Сначала пробуем кеш, в каталог идём только за недостающими
	var missing []string
	if s.cacheRepo != nil {
		for _, upn := range upns {
			cached, err := s.cacheRepo.Get(ctx, displayNameCacheKey(upn))
			if err == nil && cached != "" {
				names[strings.ToLower(upn)] = cached
				continue
			}
			if err != nil && !errors.Is(err, repositories.ErrCacheMiss) {
				s.logger.Warn("Ошибка чтения из кеша имён", zap.Error(err))
			}
			missing = append(missing, upn)
		}
	} else {
		missing = upns
	}

	if len(missing) > 0 {
		resolved := s.graphClient.ResolveDisplayNames(ctx, missing)
		for key, name := range resolved {
			names[key] = name
			if s.cacheRepo != nil {
				if err := s.cacheRepo.Set(ctx, displayNameCacheKey(key), name, s.cacheTTL); err != nil {
					s.logger.Warn("Ошибка записи в кеш имён", zap.Error(err))
				}
			}
		}
	}

	for i := range items {
		upn := strings.TrimSpace(items[i].AssignedTo)
		if upn == "" {
			continue
		}
		if name, ok := names[strings.ToLower(upn)]; ok && name != "" {
			items[i].AssignedName = name
		} else {
			items[i].AssignedName = upn
		}
	}

	return items
}

func displayNameCacheKey(upn string) string {
	return "directory:display_name:" + strings.ToLower(upn)
}

func equipmentToDTO(item entities.Equipment) dto.EquipmentDTO {
	result := dto.EquipmentDTO{
		ID:             item.ID.String(),
		Brand:          item.Brand,
		Model:          item.Model,
		Serial:         item.Serial,
		Status:         item.Status,
		Location:       item.Location,
		Notes:          item.Notes,
		AssignedTo:     item.AssignedTo,
		AssignedName:   item.AssignedName,
		HasHandoverAct: item.HasHandoverAct,
	}

	if item.CategoryID != uuid.Nil {
		result.CategoryID = item.CategoryID.String()
	}
	if item.LocationID.Valid {
		result.LocationID = item.LocationID.UUID.String()
	}
	if item.PurchaseDate.Valid {
		result.PurchaseDate = item.PurchaseDate.Time.Format("2006-01-02")
	}
	if item.OwnershipLabel.Valid {
		result.OwnershipLabel = item.OwnershipLabel.String
	}
	if item.HandoverActName.Valid {
		result.HandoverActName = item.HandoverActName.String
	}

	return result
}
