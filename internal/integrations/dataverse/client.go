package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"client-portal/internal/entities"
	"client-portal/pkg/config"
)

// Dataverse — система учёта: клиенты, оборудование, справочники.
// Ядро портала только читает её через Web API (OData).
type ClientInterface interface {
	GetClientIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	GetEquipmentByClient(ctx context.Context, clientID uuid.UUID) ([]entities.Equipment, error)
	GetCategories(ctx context.Context) ([]entities.Category, error)
	GetLocations(ctx context.Context, clientID uuid.UUID) ([]entities.Location, error)
}

// Повторяем только транспортные сбои: 3 попытки с линейно растущей задержкой.
// Неуспешный HTTP-статус не повторяется — это ответ сервера, а не сбой сети.
const (
	maxAttempts = 3
	retryDelay  = 500 * time.Millisecond
)

type Client struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	logger       *zap.Logger

	// Поля для кэширования токена
	token       string
	tokenExpiry time.Time
	tokenMutex  sync.RWMutex
}

func New(cfg *config.DataverseConfig, logger *zap.Logger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")

	// Скоуп client credentials — корень окружения Dataverse
	scope := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		scope = u.Scheme + "://" + u.Host
	}

	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      base,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        scope + "/.default",
		logger:       logger.Named("dataverse_client"),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	c.tokenMutex.RLock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		defer c.tokenMutex.RUnlock()
		return c.token, nil
	}
	c.tokenMutex.RUnlock()

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	// Повторная проверка внутри Lock на случай, если другой поток уже получил токен
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", c.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("ошибка создания запроса на аутентификацию: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ошибка выполнения запроса на аутентификацию: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API аутентификации Dataverse вернул статус: %s, тело ответа: %s", resp.Status, string(bodyBytes))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("ошибка парсинга ответа с токеном: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("API аутентификации Dataverse не вернул access_token")
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Second * time.Duration(tokenResp.ExpiresIn))

	return c.token, nil
}

// fetchData выполняет GET к Web API и возвращает сырое тело ответа.
// Форматированные значения справочников запрашиваются аннотациями OData.
func (c *Client) fetchData(ctx context.Context, endpoint string) (json.RawMessage, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить токен аутентификации: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryDelay):
			}
			c.logger.Warn("Повторная попытка запроса к Dataverse",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
			)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания GET-запроса: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Prefer", `odata.include-annotations="OData.Community.Display.V1.FormattedValue"`)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("ошибка выполнения GET-запроса для '%s': %w", endpoint, err)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("ошибка чтения ответа Dataverse для '%s': %w", endpoint, readErr)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("Dataverse для эндпоинта '%s' вернул статус: %s", endpoint, resp.Status)
		}

		return raw, nil
	}

	return nil, lastErr
}
