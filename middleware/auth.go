package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/licito/backend/config"
	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/policy"
	"github.com/licito/backend/store"
)

// Claims represents the session token claims
type Claims struct {
	UserID string     `json:"id"`
	Role   model.Role `json:"role"`
	Name   string     `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new session token for a user
func GenerateToken(u *model.User, cfg *config.AuthConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(cfg.TokenExpireHours) * time.Hour)

	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		Name:   u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ParseToken validates a session token and returns its claims
func ParseToken(tokenString string, cfg *config.AuthConfig) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// tokenFromRequest reads the session cookie, falling back to a bearer header
func tokenFromRequest(c *gin.Context, cfg *config.AuthConfig) (string, bool) {
	if cookie, err := c.Cookie(cfg.CookieName); err == nil && cookie != "" {
		return cookie, true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware validates the session and extracts user info
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := tokenFromRequest(c, cfg)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Não autenticado"})
			c.Abort()
			return
		}

		claims, err := ParseToken(tokenString, cfg)
		if err != nil || !claims.Role.Valid() || claims.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida ou expirada"})
			c.Abort()
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("name", claims.Name)

		ctx := context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, logger.RoleKey, string(claims.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserLookup loads the current state of an account
type UserLookup interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// ActiveUser rejects sessions whose account was deactivated or removed after
// the token was issued. The stored role and name replace the token's.
func ActiveUser(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		u, err := users.Get(ctx, GetUserID(c))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Error(ctx, "failed to load session user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro interno do servidor"})
			c.Abort()
			return
		}
		if err != nil || !u.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Sessão inválida ou expirada"})
			c.Abort()
			return
		}

		c.Set("role", u.Role)
		c.Set("name", u.Name)
		c.Request = c.Request.WithContext(context.WithValue(ctx, logger.RoleKey, string(u.Role)))

		c.Next()
	}
}

// Require rejects the request unless the role holds the action for at
// least its own fiscal type. Finer checks happen in the services.
func Require(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if !policy.Allow(role, action, role.FiscalType()) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Acesso negado"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID gets the user id from context
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		return id.(string)
	}
	return ""
}

// GetRole gets the role from context
func GetRole(c *gin.Context) model.Role {
	if role, exists := c.Get("role"); exists {
		return role.(model.Role)
	}
	return ""
}

// GetName gets the display name from context
func GetName(c *gin.Context) string {
	if name, exists := c.Get("name"); exists {
		return name.(string)
	}
	return ""
}
