package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/middleware"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/service"
	"github.com/licito/backend/store"
)

// actor builds the service caller from the authenticated session
func actor(c *gin.Context) service.Actor {
	return service.Actor{
		ID:   middleware.GetUserID(c),
		Role: middleware.GetRole(c),
		Name: middleware.GetName(c),
	}
}

// respondError maps service and store errors to the JSON error envelope
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Registro não encontrado"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "A operação conflita com o estado atual do registro"})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Registro já existe"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Usuário inativo ou senha inválida"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Acesso negado"})
	case errors.Is(err, service.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Integração não configurada"})
	default:
		logger.Error(c.Request.Context(), "request failed",
			"error", err,
			"path", c.Request.URL.Path,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Erro interno do servidor",
			"request_id": middleware.GetRequestID(c),
		})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Requisição inválida"})
}
