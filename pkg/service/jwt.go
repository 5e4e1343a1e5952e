package service

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	apperrors "client-portal/pkg/errors"
)

// JwtCustomClaim — клеймы портала. Email (preferred_username) — стабильный
// идентификатор пользователя, по нему резолвится клиент в Dataverse.
type JwtCustomClaim struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type JWTService interface {
	GenerateToken(email, name string) (string, error)
	ValidateToken(tokenString string) (*JwtCustomClaim, error)
}

type jwtService struct {
	SecretKey      string
	AccessTokenExp time.Duration
}

func NewJWTService(secretKey string, accessTokenExp time.Duration) JWTService {
	return &jwtService{
		SecretKey:      secretKey,
		AccessTokenExp: accessTokenExp,
	}
}

func (s *jwtService) GenerateToken(email, name string) (string, error) {
	claims := &JwtCustomClaim{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.AccessTokenExp)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(s.SecretKey))
}

func (s *jwtService) ValidateToken(tokenString string) (*JwtCustomClaim, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaim{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return []byte(s.SecretKey), nil
		default:
			return nil, apperrors.ErrInvalidSigningMethod
		}
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*JwtCustomClaim)
	if !ok || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, apperrors.ErrInvalidToken
	}

	return claims, nil
}
