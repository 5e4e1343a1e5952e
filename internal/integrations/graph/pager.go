package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Graph не принимает $top вне этих границ — подрезаем до ближайшей.
const (
	minPageSize = 1
	maxPageSize = 999
)

func clampPageSize(n int) int {
	if n < minPageSize {
		return minPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// page — сырая страница ответа Graph.
type page struct {
	Value    []json.RawMessage `json:"value"`
	Count    *int64            `json:"@odata.count"`
	NextLink string            `json:"@odata.nextLink"`
}

// StatusError — неуспешный ответ Graph. Статус и сырое тело отдаются
// вызывающему как есть: политика повторов живёт уровнем выше.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Graph вернул статус %d", e.StatusCode)
}

var (
	errTransport         = errors.New("транспортная ошибка при обращении к Graph")
	errMalformedResponse = errors.New("Graph вернул некорректное тело ответа")
)

// walkPages последовательно обходит страницы, следуя @odata.nextLink, пока
// токен продолжения не исчезнет или fn не вернёт false. Между независимыми
// вызовами состояние не сохраняется.
func (c *Client) walkPages(ctx context.Context, firstURL string, headers map[string]string, fn func(p page) (bool, error)) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	nextURL := firstURL
	for nextURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, nextURL, nil)
		if err != nil {
			return fmt.Errorf("ошибка создания GET-запроса к Graph: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", errTransport, err)
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: %v", errTransport, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: raw}
		}

		var p page
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("%w: %v", errMalformedResponse, err)
		}

		cont, err := fn(p)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}

		nextURL = p.NextLink
	}

	return nil
}

// ExtractSkipToken извлекает $skiptoken из @odata.nextLink.
func ExtractSkipToken(nextLink string) string {
	if nextLink == "" {
		return ""
	}

	u, err := url.Parse(nextLink)
	if err == nil && u.Host != "" {
		return u.Query().Get("$skiptoken")
	}

	// Запасной вариант, если nextLink — не валидный URL
	idx := strings.Index(strings.ToLower(nextLink), "$skiptoken=")
	if idx < 0 {
		return ""
	}
	val := nextLink[idx+len("$skiptoken="):]
	if amp := strings.IndexByte(val, '&'); amp >= 0 {
		val = val[:amp]
	}
	unescaped, err := url.QueryUnescape(val)
	if err != nil {
		return val
	}
	return unescaped
}
