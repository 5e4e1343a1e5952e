package entities

// DirectoryUser — профиль пользователя из каталога (Microsoft Graph).
// Никогда не сохраняется на нашей стороне.
type DirectoryUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	UserPrincipalName string `json:"user_principal_name"`
	Mail              string `json:"mail"`
	JobTitle          string `json:"job_title"`
	Department        string `json:"department"`
	MobilePhone       string `json:"mobile_phone"`
}

// UnlicensedUserSummary — краткая карточка пользователя без лицензии
// для отображения в отчёте.
type UnlicensedUserSummary struct {
	DisplayName       string `json:"display_name"`
	UserPrincipalName string `json:"user_principal_name"`
	Mail              string `json:"mail"`
	Department        string `json:"department"`
}
