package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type clientRow struct {
	ID string `json:"cr07a_clienteid"`
}

type clientListResponse struct {
	Value []clientRow `json:"value"`
}

// GetClientIDByEmail ищет запись клиента по e-mail из токена портала.
// Если клиент не найден, возвращается uuid.Nil без ошибки — решение
// "пускать или нет" принимает сервисный слой.
func (c *Client) GetClientIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return uuid.Nil, nil
	}

	// Одинарные кавычки в OData-литерале экранируются удвоением
	safeEmail := strings.ReplaceAll(trimmed, "'", "''")
	filter := url.QueryEscape(fmt.Sprintf("cr07a_correoelectronico eq '%s'", safeEmail))
	endpoint := "/cr07a_clientes?$select=cr07a_clienteid&$filter=" + filter + "&$top=1"

	raw, err := c.fetchData(ctx, endpoint)
	if err != nil {
		return uuid.Nil, fmt.Errorf("не удалось найти клиента по email: %w", err)
	}

	var parsed clientListResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return uuid.Nil, fmt.Errorf("ошибка парсинга ответа со списком клиентов: %w", err)
	}

	if len(parsed.Value) == 0 {
		c.logger.Warn("Клиент с указанным email не найден в Dataverse", zap.String("email", trimmed))
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(parsed.Value[0].ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("Dataverse вернул некорректный идентификатор клиента: %w", err)
	}

	return id, nil
}
