package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strings"

	"github.com/google/uuid"

	"client-portal/internal/dto"
	"client-portal/internal/entities"
)

// Метки пустых групп в отчётах.
const (
	noCategoryLabel = "(без категории)"
	noLocationLabel = "(без локации)"
	noBrandLabel    = "(без бренда)"
)

// В отчёте по брендам показываем только верхушку: длинный хвост
// одиночных брендов не несёт информации.
const maxBrandBuckets = 30

// GroupByCategory считает оборудование по категориям. Метки берутся из
// справочника; неизвестная или пустая категория попадает в одну общую группу.
func GroupByCategory(items []entities.Equipment, categories []entities.Category) []dto.ReportBucketDTO {
	names := make(map[uuid.UUID]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	counts := make(map[string]int)
	for _, item := range items {
		label := noCategoryLabel
		if item.CategoryID != uuid.Nil {
			if name, ok := names[item.CategoryID]; ok && name != "" {
				label = name
			}
		}
		counts[label]++
	}

	return sortBuckets(bucketsFromCounts(counts))
}

// GroupByLocation группирует по текстовой локации без учёта регистра.
// Меткой группы становится написание из первой встреченной записи.
func GroupByLocation(items []entities.Equipment) []dto.ReportBucketDTO {
	counts := make(map[string]int)
	labels := make(map[string]string)

	for _, item := range items {
		location := strings.TrimSpace(item.Location)
		if location == "" {
			counts[noLocationLabel]++
			labels[noLocationLabel] = noLocationLabel
			continue
		}

		key := strings.ToLower(location)
		if _, ok := labels[key]; !ok {
			labels[key] = location
		}
		counts[key]++
	}

	buckets := make([]dto.ReportBucketDTO, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, dto.ReportBucketDTO{Label: labels[key], Count: count})
	}
	return sortBuckets(buckets)
}

// GroupByBrand считает оборудование по брендам и обрезает список до топа.
func GroupByBrand(items []entities.Equipment) []dto.ReportBucketDTO {
	counts := make(map[string]int)
	for _, item := range items {
		brand := strings.TrimSpace(item.Brand)
		if brand == "" {
			brand = noBrandLabel
		}
		counts[brand]++
	}

	buckets := sortBuckets(bucketsFromCounts(counts))
	if len(buckets) > maxBrandBuckets {
		buckets = buckets[:maxBrandBuckets]
	}
	return buckets
}

func bucketsFromCounts(counts map[string]int) []dto.ReportBucketDTO {
	buckets := make([]dto.ReportBucketDTO, 0, len(counts))
	for label, count := range counts {
		buckets = append(buckets, dto.ReportBucketDTO{Label: label, Count: count})
	}
	return buckets
}

// sortBuckets упорядочивает группы по убыванию количества; равные по
// количеству — по метке без учёта регистра, чтобы порядок был детерминирован.
func sortBuckets(buckets []dto.ReportBucketDTO) []dto.ReportBucketDTO {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return strings.ToLower(buckets[i].Label) < strings.ToLower(buckets[j].Label)
	})
	return buckets
}

// BuildEquipmentCSV собирает CSV-выгрузку оборудования.
// Кавычки и переводы строк экранируются по правилам RFC 4180,
// даты — в формате YYYY-MM-DD.
func BuildEquipmentCSV(items []entities.Equipment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"Бренд", "Модель", "Серийный номер", "Статус", "Дата покупки",
		"Локация", "Закреплено за", "Примечания",
		"ИД категории", "ИД локации", "ИД оборудования",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, item := range items {
		purchaseDate := ""
		if item.PurchaseDate.Valid {
			purchaseDate = item.PurchaseDate.Time.Format("2006-01-02")
		}

		categoryID := ""
		if item.CategoryID != uuid.Nil {
			categoryID = item.CategoryID.String()
		}
		locationID := ""
		if item.LocationID.Valid {
			locationID = item.LocationID.UUID.String()
		}

		record := []string{
			item.Brand,
			item.Model,
			item.Serial,
			item.Status,
			purchaseDate,
			item.Location,
			item.AssignedTo,
			item.Notes,
			categoryID,
			locationID,
			item.ID.String(),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
