package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/support"

	"github.com/gin-gonic/gin"
)

// SupportHandler handles support tickets and their message threads
type SupportHandler struct {
	support *support.Service
}

func NewSupportHandler(s *support.Service) *SupportHandler {
	return &SupportHandler{support: s}
}

func (h *SupportHandler) CreateTicket(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req support.CreateTicketRequest
	if !bind(c, &req) {
		return
	}
	ticket, err := h.support.CreateTicket(c.Request.Context(), p, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": ticket})
}

func (h *SupportHandler) ListTickets(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	tickets, err := h.support.ListTickets(c.Request.Context(), p, support.TicketFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	})
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *SupportHandler) GetTicket(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ticket, err := h.support.GetTicket(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// UpdateTicket changes status and/or priority; admins only
func (h *SupportHandler) UpdateTicket(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req support.UpdateTicketRequest
	if !bind(c, &req) {
		return
	}
	ticket, err := h.support.UpdateTicket(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (h *SupportHandler) Messages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	messages, err := h.support.Messages(c.Request.Context(), p, c.Query("ticketId"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *SupportHandler) PostMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req support.PostMessageRequest
	if !bind(c, &req) {
		return
	}
	msg, err := h.support.PostMessage(c.Request.Context(), p, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
