package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"client-portal/pkg/contextkeys"
	apperrors "client-portal/pkg/errors"
	"client-portal/pkg/service"
	"client-portal/pkg/utils"
)

type AuthMiddleware struct {
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtSvc,
		logger:     logger,
	}
}

// Auth - это основная функция middleware.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// 1. Извлекаем токен из заголовка
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			m.logger.Warn("AuthMiddleware: Пустой заголовок Authorization")
			return utils.ErrorResponse(c, apperrors.ErrEmptyAuthHeader, m.logger)
		}

		// 2. Проверяем формат заголовка "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Warn("AuthMiddleware: Неверный формат заголовка Authorization")
			return utils.ErrorResponse(c, apperrors.ErrInvalidAuthHeader, m.logger)
		}

		tokenString := parts[1]

		// 3. Валидируем токен
		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn("AuthMiddleware: Ошибка валидации токена", zap.Error(err))
			return utils.ErrorResponse(c, err, m.logger)
		}

		// 4. Записываем email в контекст запроса для дальнейшего использования
		ctx := c.Request().Context()
		newCtx := context.WithValue(ctx, contextkeys.UserEmailKey, claims.Email)
		newCtx = context.WithValue(newCtx, contextkeys.UserNameKey, claims.Name)
		c.SetRequest(c.Request().WithContext(newCtx))

		m.logger.Debug("AuthMiddleware: Пользователь успешно аутентифицирован", zap.String("email", claims.Email))

		// 5. Если все в порядке, передаем управление следующему обработчику
		return next(c)
	}
}
