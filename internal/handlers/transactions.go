package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/models"
	"realestate-platform/internal/transactions"

	"github.com/gin-gonic/gin"
)

// TransactionHandler exposes the deal stage tracker
type TransactionHandler struct {
	transactions *transactions.Service
}

func NewTransactionHandler(t *transactions.Service) *TransactionHandler {
	return &TransactionHandler{transactions: t}
}

// UpdateStage moves a transaction (or the transaction of a lead) to a new stage
func (h *TransactionHandler) UpdateStage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		Stage string `json:"stage"`
	}
	if !bind(c, &req) {
		return
	}
	tr, err := h.transactions.UpdateStage(c.Request.Context(), c.Param("id"), req.Stage, p.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transaction": tr,
		"stageLabel":  tr.Stage.Label(),
	})
}

// List is the admin view over all transactions
func (h *TransactionHandler) List(c *gin.Context) {
	list, total, err := h.transactions.List(c.Request.Context(), transactions.ListFilter{
		Stage:  c.Query("stage"),
		Status: c.Query("status"),
		UserID: c.Query("userId"),
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": list, "total": total})
}

// Get returns one transaction to a party or an admin
func (h *TransactionHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	tr, err := h.transactions.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tr})
}

// Progress returns the stage history of a transaction
func (h *TransactionHandler) Progress(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	history, err := h.transactions.Progress(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": history, "stages": models.Stages})
}
