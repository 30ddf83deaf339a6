package realtime

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthManager validates HMAC-signed JWTs
type AuthManager struct {
	jwtSecret []byte
}

// NewAuthManager creates a new auth manager; an empty secret disables checks
func NewAuthManager(jwtSecret string) *AuthManager {
	return &AuthManager{
		jwtSecret: []byte(jwtSecret),
	}
}

// Enabled reports whether a secret is configured
func (a *AuthManager) Enabled() bool {
	return a != nil && len(a.jwtSecret) > 0
}

// ValidateToken validates a JWT token and returns the user ID
func (a *AuthManager) ValidateToken(tokenString string) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("token validation is not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		// Try "sub" (subject) as fallback
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// ExtractTokenFromHeader extracts JWT token from Authorization header
func (a *AuthManager) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	// Support both "Bearer <token>" and just "<token>"
	parts := strings.Fields(authHeader)
	switch len(parts) {
	case 2:
		if !strings.EqualFold(parts[0], "bearer") {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return parts[1], nil
	case 1:
		return parts[0], nil
	}

	return "", fmt.Errorf("invalid authorization header format")
}
