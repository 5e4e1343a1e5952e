package utils

import (
	"context"

	"client-portal/pkg/contextkeys"
	apperrors "client-portal/pkg/errors"
)

func GetEmailFromCtx(ctx context.Context) (string, error) {
	email, ok := ctx.Value(contextkeys.UserEmailKey).(string)
	if !ok || email == "" {
		return "", apperrors.ErrEmailNotFoundInContext
	}
	return email, nil
}
