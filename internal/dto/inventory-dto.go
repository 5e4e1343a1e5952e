package dto

import (
	"client-portal/internal/entities"
)

// ReportBucketDTO — ячейка отчёта: метка группы и количество записей.
type ReportBucketDTO struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ReportDataDTO — полный набор данных для страницы отчётов.
type ReportDataDTO struct {
	ByCategory []ReportBucketDTO `json:"by_category"`
	ByLocation []ReportBucketDTO `json:"by_location"`
	ByBrand    []ReportBucketDTO `json:"by_brand"`

	UnlicensedCount   int                              `json:"unlicensed_count"`
	UnlicensedWarning string                           `json:"unlicensed_warning,omitempty"`
	UnlicensedUsers   []entities.UnlicensedUserSummary `json:"unlicensed_users"`
}

// CatalogsDTO — справочники для страницы инвентаря.
type CatalogsDTO struct {
	Categories []entities.Category `json:"categories"`
	Locations  []entities.Location `json:"locations"`
}

type EquipmentDTO struct {
	ID           string `json:"id"`
	CategoryID   string `json:"category_id,omitempty"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Status       string `json:"status"`
	PurchaseDate string `json:"purchase_date,omitempty"` // YYYY-MM-DD
	LocationID   string `json:"location_id,omitempty"`
	Location     string `json:"location"`
	Notes        string `json:"notes"`

	AssignedTo   string `json:"assigned_to"`
	AssignedName string `json:"assigned_name"`

	OwnershipLabel  string `json:"ownership_label,omitempty"`
	HasHandoverAct  bool   `json:"has_handover_act"`
	HandoverActName string `json:"handover_act_name,omitempty"`
}
