package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/service"
)

type NoticeHandler struct {
	notices *service.NoticeService
}

func NewNoticeHandler(notices *service.NoticeService) *NoticeHandler {
	return &NoticeHandler{notices: notices}
}

type noticeRequest struct {
	FiscalType string `json:"fiscal_type" binding:"required"`
	Message    string `json:"message"`
}

func (h *NoticeHandler) Send(c *gin.Context) {
	var req noticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	t, ok := parseType(c, req.FiscalType)
	if !ok {
		return
	}
	res, err := h.notices.Send(c.Request.Context(), actor(c), c.Param("id"), t, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *NoticeHandler) List(c *gin.Context) {
	notices, err := h.notices.List(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}
