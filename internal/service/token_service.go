package service

import (
	"fmt"

	"storefront-payments/internal/core/ports"
	"storefront-payments/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
)

// JWTTokenVerifier implements ports.TokenVerifier for HS256 admin tokens
// issued by the upstream auth service.
type JWTTokenVerifier struct {
	secret []byte
	issuer string
}

// NewJWTTokenVerifier creates a new JWT token verifier.
func NewJWTTokenVerifier(secret, issuer string) *JWTTokenVerifier {
	return &JWTTokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Verify parses and validates an admin bearer token, returning the claims.
// Every failure collapses to the same invalid-token error so callers leak
// nothing about why verification failed.
func (s *JWTTokenVerifier) Verify(tokenString string) (*ports.AdminClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperror.ErrInvalidToken()
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperror.ErrInvalidToken()
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, apperror.ErrInvalidToken()
	}
	role, _ := claims["role"].(string)
	if role != "admin" {
		return nil, apperror.ErrInvalidToken()
	}

	return &ports.AdminClaims{
		Subject: sub,
		Role:    role,
	}, nil
}
