package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "client-portal/pkg/errors"
)

type HTTPResponse struct {
	Status  bool        `json:"status"`
	Body    interface{} `json:"body,omitempty"`
	Message string      `json:"message"`
}

func SuccessResponse(ctx echo.Context, body interface{}, message string, code int) error {
	response := &HTTPResponse{Status: true, Message: message, Body: body}
	return ctx.JSON(code, response)
}

func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		if httpErr.Err != nil {
			logger.Error("HTTP Error",
				zap.Int("code", httpErr.Code),
				zap.String("message", httpErr.Message),
				zap.Error(httpErr.Err),
				zap.Any("context", httpErr.Context),
			)
		}

		response := map[string]interface{}{
			"status":  false,
			"message": httpErr.Message,
		}

		if httpErr.Details != nil {
			response["body"] = httpErr.Details
		}

		return c.JSON(httpErr.Code, response)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var msgs []string
		for _, e := range validationErrors {
			msgs = append(msgs, fmt.Sprintf("Поле '%s' не прошло проверку '%s'", e.Field(), e.Tag()))
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"status": false, "message": "Ошибка валидации: " + strings.Join(msgs, "; ")})
	}

	// Известные sentinel-ошибки авторизации отдаем с корректным статусом
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized),
		errors.Is(err, apperrors.ErrEmptyAuthHeader),
		errors.Is(err, apperrors.ErrInvalidAuthHeader),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrEmailNotFoundInContext),
		errors.Is(err, apperrors.ErrClientNotFound):
		code = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperrors.ErrBadRequest):
		code = http.StatusBadRequest
	}

	if code == http.StatusInternalServerError {
		logger.Error("Unexpected Error", zap.Error(err))
		return c.JSON(code, map[string]interface{}{
			"status":  false,
			"message": "Внутренняя ошибка сервера",
		})
	}

	return c.JSON(code, map[string]interface{}{
		"status":  false,
		"message": err.Error(),
	})
}
