package errors

import "fmt"

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")
	ErrTokenIsNotAccess     = fmt.Errorf("токен не является access-токеном")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")
	ErrUnauthorized      = fmt.Errorf("неавторизован")
	ErrForbidden         = fmt.Errorf("доступ запрещён")

	// Контекст
	ErrEmailNotFoundInContext = fmt.Errorf("email пользователя не найден в контексте запроса")

	// Интеграции
	ErrGraphCredentialsMissing = fmt.Errorf("учётные данные Microsoft Graph не настроены")
	ErrClientNotFound          = fmt.Errorf("клиент не найден в Dataverse для авторизованного пользователя")

	// Общие
	ErrNotFound       = fmt.Errorf("запись не найдена")
	ErrBadRequest     = fmt.Errorf("неверный запрос")
	ErrInternalServer = fmt.Errorf("внутренняя ошибка сервера")
)

// HttpError — ошибка с HTTP-статусом и пользовательским сообщением.
// Message уходит клиенту, Err и Context — только в лог.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Details interface{}
	Context map[string]interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error {
	return e.Err
}

func NewHttpError(code int, message string, err error, context map[string]interface{}) *HttpError {
	return &HttpError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: context,
	}
}

func NewInternalError(message string) *HttpError {
	return &HttpError{Code: 500, Message: message}
}
