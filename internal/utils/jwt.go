package utils

import (
	"errors"
	"time"

	"adforge/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "adforge-api"

// GenerateToken signs claims with HS256. Registered claims left empty are
// filled in from ttl.
func GenerateToken(claims *models.UserClaims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	signed := *claims
	if signed.IssuedAt == nil {
		signed.IssuedAt = jwt.NewNumericDate(now)
	}
	if signed.ExpiresAt == nil && ttl > 0 {
		signed.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if signed.Issuer == "" {
		signed.Issuer = tokenIssuer
	}
	if signed.Subject == "" {
		signed.Subject = claims.UserID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, signed)
	return token.SignedString([]byte(secret))
}

// ParseToken parses and validates a JWT token string.
func ParseToken(tokenStr, secret string) (*models.UserClaims, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &models.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.UserClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}
