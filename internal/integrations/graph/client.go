package graph

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

	"go.uber.org/zap"

	"client-portal/pkg/config"
	apperrors "client-portal/pkg/errors"
)

type ClientInterface interface {
	ListUsers(ctx context.Context, opts ListUsersOptions) (*UsersPage, error)
	ResolveDisplayNames(ctx context.Context, upns []string) map[string]string
	CountUnlicensedUsers(ctx context.Context) UnlicensedUsersResult
}

// Client - это "чистый фасад" для Microsoft Graph.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	logger       *zap.Logger

	// Поля для кэширования токена
	token       string
	tokenExpiry time.Time
	tokenMutex  sync.RWMutex
}

func New(cfg *config.GraphConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       logger.Named("graph_client"),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// getToken возвращает закэшированный app-only токен или запрашивает новый.
// Повторная проверка внутри Lock — на случай, если другой поток уже обновил токен.
func (c *Client) getToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.clientSecret == "" || c.tokenURL == "" {
		return "", apperrors.ErrGraphCredentialsMissing
	}

	c.tokenMutex.RLock()
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		defer c.tokenMutex.RUnlock()
		return c.token, nil
	}
	c.tokenMutex.RUnlock()

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-1*time.Minute)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", "https://graph.microsoft.com/.default")

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
		return "", fmt.Errorf("API аутентификации Graph вернул статус: %s, тело ответа: %s", resp.Status, string(bodyBytes))
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("ошибка парсинга ответа с токеном: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("API аутентификации Graph не вернул access_token")
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Second * time.Duration(tokenResp.ExpiresIn))

	return c.token, nil
}
