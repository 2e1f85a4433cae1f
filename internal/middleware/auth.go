package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const userIDKey = "userID"

// JWTManager issues and verifies HS256 access tokens whose subject is the
// user id.
type JWTManager struct {
	secret   string
	tokenTTL time.Duration
}

// NewJWTManager constructs a JWTManager.
func NewJWTManager(secret string, tokenTTL time.Duration) *JWTManager {
	return &JWTManager{secret: secret, tokenTTL: tokenTTL}
}

// Generate signs a token for the user.
func (m *JWTManager) Generate(userID int) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secret))
}

// Verify parses the token and returns the user id it was issued for.
func (m *JWTManager) Verify(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.secret), nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token")
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, errors.New("invalid token subject")
	}
	return userID, nil
}

// RequireAuth validates the access token and stores the user id in the gin
// context. Browsers cannot set headers on websocket upgrades, so a token
// query parameter is accepted as a fallback.
func RequireAuth(manager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		userID, err := manager.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	hdr := c.GetHeader("Authorization")
	parts := strings.SplitN(hdr, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return c.Query("token")
}

// UserIDFromContext returns the authenticated user id, or zero when the
// request was not authenticated.
func UserIDFromContext(c *gin.Context) int {
	return c.GetInt(userIDKey)
}
