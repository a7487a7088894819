package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/model"
	"github.com/licito/backend/service"
)

type ChecklistHandler struct {
	checklist *service.ChecklistService
}

func NewChecklistHandler(checklist *service.ChecklistService) *ChecklistHandler {
	return &ChecklistHandler{checklist: checklist}
}

// parseType reads a checklist type from a route or query value. Empty and
// "todos" select every type the user may see.
func parseType(c *gin.Context, raw string) (model.FiscalType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "todos", "all":
		return "", true
	}
	t, ok := model.ParseFiscalType(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tipo de checklist inválido"})
		return "", false
	}
	return t, true
}

// List returns the checklist items of a contract for the type in the route
func (h *ChecklistHandler) List(c *gin.Context) {
	t, ok := parseType(c, c.Param("type"))
	if !ok {
		return
	}
	items, err := h.checklist.ListItems(c.Request.Context(), actor(c), c.Param("id"), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"progress": model.Progress(items),
	})
}

type statusRequest struct {
	Status      model.ItemStatus `json:"status" binding:"required"`
	Observation string           `json:"observation"`
}

func (h *ChecklistHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	item, err := h.checklist.UpdateStatus(c.Request.Context(), actor(c), c.Param("id"), req.Status, req.Observation)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type observationRequest struct {
	Observation string `json:"observation"`
}

func (h *ChecklistHandler) AddObservation(c *gin.Context) {
	var req observationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	item, err := h.checklist.AddObservation(c.Request.Context(), actor(c), c.Param("id"), req.Observation)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type questionRequest struct {
	Question string `json:"question"`
}

func (h *ChecklistHandler) RequestClarification(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	clar, err := h.checklist.RequestClarification(c.Request.Context(), actor(c), c.Param("id"), req.Question)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clar)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *ChecklistHandler) AnswerClarification(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	clar, err := h.checklist.AnswerClarification(c.Request.Context(), actor(c), c.Param("id"), req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clar)
}

func (h *ChecklistHandler) Progress(c *gin.Context) {
	report, err := h.checklist.Progress(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Pending lists open clarifications, optionally narrowed by ?type=
func (h *ChecklistHandler) Pending(c *gin.Context) {
	t, ok := parseType(c, c.Query("type"))
	if !ok {
		return
	}
	pending, err := h.checklist.PendingClarifications(c.Request.Context(), actor(c), c.Param("id"), t)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clarifications": pending})
}
