package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminScope    = "admin"
	adminTokenTTL = 24 * time.Hour
)

var ErrNoSecret = errors.New("jwt secret is not configured")

// GenerateAdminToken signs an HS256 token for the admin inspection routes.
func GenerateAdminToken(secret, subject string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": adminScope,
		"iat":   now.Unix(),
		"exp":   now.Add(adminTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAdminToken returns the token subject when the token is valid and carries the admin scope.
func ValidateAdminToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if scope, _ := claims["scope"].(string); scope != adminScope {
		return "", fmt.Errorf("token lacks admin scope")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
