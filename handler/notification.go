package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/model"
	"github.com/licito/backend/service"
)

type NotificationHandler struct {
	dispatcher *service.Dispatcher
}

func NewNotificationHandler(d *service.Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: d}
}

// NotifyContract emails the responsibles of a contract about an update
func (h *NotificationHandler) NotifyContract(c *gin.Context) {
	var req model.ContractUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	deliveries, err := h.dispatcher.NotifyResponsibles(c.Request.Context(), req)
	if errors.Is(err, service.ErrNotDelivered) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Não foi possível entregar a notificação",
			"deliveries": deliveries,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deliveries": deliveries})
}

type whatsAppRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (h *NotificationHandler) SendWhatsApp(c *gin.Context) {
	var req whatsAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := h.dispatcher.SendWhatsApp(c.Request.Context(), req.Phone, req.Message)
	if err != nil {
		// a filled recipient means validation passed and the gateway failed
		if res.Recipient != "" && !errors.Is(err, service.ErrNotConfigured) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Não foi possível enviar a mensagem", "delivery": res})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "delivery": res})
}
