package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/service"
)

type ChatHandler struct {
	chats     *service.ChatService
	assistant *service.Assistant
}

func NewChatHandler(chats *service.ChatService, assistant *service.Assistant) *ChatHandler {
	return &ChatHandler{chats: chats, assistant: assistant}
}

type createChatRequest struct {
	Title string `json:"title"`
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req createChatRequest
	// an empty body creates an untitled chat
	_ = c.ShouldBindJSON(&req)

	chat, err := h.chats.Create(c.Request.Context(), actor(c), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chats.List(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) Messages(c *gin.Context) {
	msgs, err := h.chats.Messages(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Save persists one assembled message; saving the same id twice is a no-op
func (h *ChatHandler) Save(c *gin.Context) {
	var req service.SaveMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.chats.SaveMessage(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type chatStreamRequest struct {
	Messages []service.ChatInput `json:"messages" binding:"required"`
}

// Stream answers the conversation as server-sent events
func (h *ChatHandler) Stream(c *gin.Context) {
	var req chatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	ctx := c.Request.Context()
	started := false
	err := h.assistant.Run(ctx, actor(c), req.Messages, func(e service.Event) error {
		if !started {
			started = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
		}
		c.SSEvent(e.Type, e)
		c.Writer.Flush()
		return ctx.Err()
	})
	if err == nil {
		return
	}
	if !started {
		respondError(c, err)
		return
	}
	logger.Warn(ctx, "chat stream ended with error", "error", err)
}
