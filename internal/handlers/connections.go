package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/leads"
	"realestate-platform/internal/models"
	"strings"

	"github.com/gin-gonic/gin"
)

// ConnectionHandler handles buyer/agent connections and buyer interest
type ConnectionHandler struct {
	leads *leads.Service
}

func NewConnectionHandler(l *leads.Service) *ConnectionHandler {
	return &ConnectionHandler{leads: l}
}

// Connect either connects the signed-in buyer directly, or, when the body
// names a buyer e-mail, starts an agent introduction with an OTP
func (h *ConnectionHandler) Connect(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req leads.IntroduceRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if strings.TrimSpace(req.BuyerEmail) == "" {
		deal, err := h.leads.DirectConnect(ctx, p.UserID, req.AgentID, req.PropertyID)
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "connection": deal.Connection, "lead": deal.Lead, "transaction": deal.Transaction})
		return
	}

	if p.Role != models.RoleAgent && !p.IsAdmin() {
		apperror.Respond(c, apperror.Forbidden("Only agents can add buyers"))
		return
	}
	challenge, err := h.leads.Introduce(ctx, p, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "requiresOtp": true, "challenge": challenge})
}

// VerifyOTP confirms an introduced connection
func (h *ConnectionHandler) VerifyOTP(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req leads.VerifyRequest
	if !bind(c, &req) {
		return
	}
	deal, err := h.leads.VerifyOTP(c.Request.Context(), p, req)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connection": deal.Connection, "lead": deal.Lead, "transaction": deal.Transaction})
}

// ResendOTP issues a fresh code for a pending connection
func (h *ConnectionHandler) ResendOTP(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		ConnectionID string `json:"connectionId"`
		OTPMethod    string `json:"otpMethod"`
	}
	if !bind(c, &req) {
		return
	}
	if req.ConnectionID == "" {
		apperror.Respond(c, apperror.Validation("connectionId is required"))
		return
	}
	challenge, err := h.leads.ResendOTP(c.Request.Context(), p, req.ConnectionID, req.OTPMethod)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "challenge": challenge})
}

// Connections lists the caller's active connections
func (h *ConnectionHandler) Connections(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := h.leads.ConnectionsFor(c.Request.Context(), p)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": list})
}

// Check reports whether the caller already has a connection with an agent
// for a property
func (h *ConnectionHandler) Check(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	conn, err := h.leads.Check(c.Request.Context(), p.UserID, c.Query("agentId"), c.Query("propertyId"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": conn != nil, "connection": conn})
}

// InterestedProperties lists the buyer's leads
func (h *ConnectionHandler) InterestedProperties(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := h.leads.InterestedProperties(c.Request.Context(), p.UserID, queryBool(c, "includeCancelled"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": list})
}

// CancelInterest withdraws the buyer's interest in a property
func (h *ConnectionHandler) CancelInterest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	change, err := h.leads.CancelInterest(c.Request.Context(), p.UserID, c.Param("propertyId"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Interest cancelled", "change": change})
}

// RestoreInterest brings back a cancelled interest
func (h *ConnectionHandler) RestoreInterest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	change, err := h.leads.RestoreInterest(c.Request.Context(), p.UserID, c.Param("propertyId"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Interest restored", "change": change})
}
