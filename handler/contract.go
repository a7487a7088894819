package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licito/backend/model"
	"github.com/licito/backend/service"
)

type ContractHandler struct {
	contracts *service.ContractService
}

func NewContractHandler(contracts *service.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// List returns the contracts visible to the current user
func (h *ContractHandler) List(c *gin.Context) {
	contracts, err := h.contracts.List(c.Request.Context(), actor(c), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

func (h *ContractHandler) Stats(c *gin.Context) {
	stats, err := h.contracts.Stats(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get returns a single contract with its responsibles
func (h *ContractHandler) Get(c *gin.Context) {
	contract, err := h.contracts.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (h *ContractHandler) Create(c *gin.Context) {
	var req model.Contract
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	contract, err := h.contracts.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *ContractHandler) Update(c *gin.Context) {
	var req model.Contract
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	contract, err := h.contracts.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

// Delete deletes a contract together with its checklist
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.contracts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contrato excluído"})
}
