package entities

import (
	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
)

// Equipment — единица оборудования клиента из Dataverse.
// Ядро её только читает и обогащает, никогда не изменяет.
type Equipment struct {
	ID         uuid.UUID `json:"id"`
	ClientID   uuid.UUID `json:"client_id"`
	CategoryID uuid.UUID `json:"category_id"` // uuid.Nil, если категория не задана

	Brand  string `json:"brand"`
	Model  string `json:"model"`
	Serial string `json:"serial"`

	// Статус жизненного цикла — форматированная метка справочника
	// ("В работе" / "На складе" / "Списано", коды задаются тенантом).
	Status string `json:"status"`

	PurchaseDate null.Time `json:"purchase_date"`

	// LocationID приоритетнее; Location — свободный текст / форматированная
	// проекция, используется как запасной вариант.
	LocationID uuid.NullUUID `json:"location_id"`
	Location   string        `json:"location"`

	Notes string `json:"notes"`

	// AssignedTo — UPN пользователя каталога (может быть пустым).
	// AssignedName заполняется конвейером обогащения.
	AssignedTo   string `json:"assigned_to"`
	AssignedName string `json:"assigned_name"`

	OwnershipValue null.Int    `json:"ownership_value"` // Собственное/Аренда (код опции)
	OwnershipLabel null.String `json:"ownership_label"`

	HasHandoverAct  bool        `json:"has_handover_act"`
	HandoverActName null.String `json:"handover_act_name"`
}

type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Location struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description null.String `json:"description"`
}
