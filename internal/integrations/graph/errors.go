package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Предупреждения видит пользователь портала — без технических деталей сверх нужного.
const (
	warnUnauthorized = "Токен Microsoft Graph недействителен (401). Войдите в систему повторно, чтобы обновить его."
	warnForbidden    = "Microsoft Graph вернул 403 (Forbidden). Убедитесь, что приложению выдано согласие администратора на User.Read.All или Directory.Read.All."

	warnCancelled = "Подсчёт пользователей без лицензии был отменён до завершения."
	warnTransport = "Не удалось связаться с Microsoft Graph для получения пользователей без лицензии. Проверьте подключение или обновите сессию."
	warnMalformed = "Microsoft Graph вернул неожиданный ответ при запросе пользователей без лицензии."

	fallbackNotice    = "Будет использован альтернативный метод подсчёта пользователей без лицензии."
	enumerationNotice = "Использован альтернативный метод перебора пользователей, так как расширенный фильтр Microsoft Graph недоступен."
)

type graphErrorBody struct {
	Error struct {
		Message    string `json:"message"`
		InnerError struct {
			Message string `json:"message"`
		} `json:"innerError"`
	} `json:"error"`
}

// extractErrorDetail достаёт человекочитаемое сообщение из тела ошибки Graph.
func extractErrorDetail(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	var parsed graphErrorBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}

	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return parsed.Error.InnerError.Message
}

func statusWarning(status int, detail string) string {
	var base string
	switch status {
	case http.StatusUnauthorized:
		base = warnUnauthorized
	case http.StatusForbidden:
		base = warnForbidden
	default:
		base = fmt.Sprintf("Microsoft Graph вернул %d.", status)
	}

	if detail != "" {
		return base + " Детали: " + detail
	}
	return base + " Подробности см. в журнале сервера."
}

// isUnindexedFilterError определяет отказ "фильтр по непроиндексированному
// свойству" — единственный случай, когда включается перебор (Tier 2).
// Эвристика завязана на текущий текст ошибки Graph: если upstream сменит
// формулировку, fallback незаметно перестанет срабатывать.
func isUnindexedFilterError(status int, detail string) bool {
	return status == http.StatusBadRequest &&
		detail != "" &&
		strings.Contains(strings.ToLower(detail), "filter property that is not indexed")
}

// classifyCountError переводит ошибку обхода страниц в предупреждение.
// Подсчёт никогда не падает наружу: любой сбой — это ноль плюс пояснение.
func classifyCountError(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return warnCancelled
	case errors.Is(err, errMalformedResponse):
		return warnMalformed
	default:
		return warnTransport
	}
}
