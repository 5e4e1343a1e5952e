package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Жёсткий лимит Graph: не больше 20 подзапросов в одном $batch.
const (
	batchChunkSize = 20
	batchWorkers   = 4
)

type batchSubRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type batchPayload struct {
	Requests []batchSubRequest `json:"requests"`
}

type batchSubResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Body   struct {
		DisplayName       string `json:"displayName"`
		UserPrincipalName string `json:"userPrincipalName"`
	} `json:"body"`
}

type batchResponse struct {
	Responses []batchSubResponse `json:"responses"`
}

// ResolveDisplayNames резолвит набор UPN в отображаемые имена через $batch.
// Ключи результата нормализованы в нижний регистр; значение — displayName,
// который вернул каталог. Неудачные подзапросы и целые чанки молча
// пропускаются: решать, что делать с неразрешёнными UPN, должен вызывающий.
// Без настроенных учётных данных возвращается пустая карта без ошибки.
func (c *Client) ResolveDisplayNames(ctx context.Context, upns []string) map[string]string {
	result := make(map[string]string)

	// Дедупликация без учёта регистра
	seen := make(map[string]struct{}, len(upns))
	unique := make([]string, 0, len(upns))
	for _, upn := range upns {
		trimmed := strings.TrimSpace(upn)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, trimmed)
	}

	if len(unique) == 0 {
		return result
	}

	if _, err := c.getToken(ctx); err != nil {
		c.logger.Warn("Клиент Graph недоступен, имена останутся необогащёнными", zap.Error(err))
		return result
	}

	// Сквозная нумерация подзапросов — id нужен только для корреляции ответа
	var chunks [][]batchSubRequest
	requestID := 1
	for start := 0; start < len(unique); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk := make([]batchSubRequest, 0, end-start)
		for _, upn := range unique[start:end] {
			chunk = append(chunk, batchSubRequest{
				ID:     strconv.Itoa(requestID),
				Method: http.MethodGet,
				URL:    "/users/" + url.PathEscape(upn) + "?$select=displayName,userPrincipalName",
			})
			requestID++
		}
		chunks = append(chunks, chunk)
	}

	// Чанки независимы — обходим их небольшим пулом воркеров
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, batchWorkers)
	)
	for _, chunk := range chunks {
		wg.Add(1)
		go func(requests []batchSubRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entries := c.resolveChunk(ctx, requests)

			mu.Lock()
			for k, v := range entries {
				result[k] = v
			}
			mu.Unlock()
		}(chunk)
	}
	wg.Wait()

	return result
}

func (c *Client) resolveChunk(ctx context.Context, requests []batchSubRequest) map[string]string {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil
	}

	payload, err := json.Marshal(batchPayload{Requests: requests})
	if err != nil {
		c.logger.Warn("Не удалось сериализовать $batch-запрос", zap.Error(err))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/$batch", bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Ошибка выполнения $batch-запроса к Graph", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Graph отклонил $batch-запрос, чанк пропущен",
			zap.Int("status", resp.StatusCode),
			zap.Int("chunk_size", len(requests)),
		)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	var parsed batchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.logger.Warn("Не удалось разобрать ответ $batch", zap.Error(err))
		return nil
	}

	entries := make(map[string]string, len(parsed.Responses))
	for _, item := range parsed.Responses {
		// Неуспешные подзапросы молча пропускаем
		if item.Status < 200 || item.Status >= 300 {
			continue
		}
		upn := item.Body.UserPrincipalName
		displayName := item.Body.DisplayName
		if upn == "" || displayName == "" {
			continue
		}
		// Ключ — UPN из ответа каталога, а не исходная строка
		entries[strings.ToLower(upn)] = displayName
	}

	if len(entries) < len(requests) {
		c.logger.Debug(fmt.Sprintf("Разрешено %d из %d UPN в чанке", len(entries), len(requests)))
	}

	return entries
}
