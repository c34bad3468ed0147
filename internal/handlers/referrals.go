package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/referrals"

	"github.com/gin-gonic/gin"
)

// ReferralHandler serves the points ledger and leaderboard
type ReferralHandler struct {
	referrals *referrals.Service
}

func NewReferralHandler(r *referrals.Service) *ReferralHandler {
	return &ReferralHandler{referrals: r}
}

// Leaderboard returns the top users and the caller's own rank
func (h *ReferralHandler) Leaderboard(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	// only admins may look at someone else's position
	currentUserID := p.UserID
	if userID := c.Query("userId"); userID != "" && p.IsAdmin() {
		currentUserID = userID
	}
	board, err := h.referrals.Leaderboard(c.Request.Context(), currentUserID, queryInt(c, "limit", 0))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// Stats returns a user's points summary
func (h *ReferralHandler) Stats(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	userID := c.Query("userId")
	if userID == "" {
		userID = p.UserID
	}
	stats, err := h.referrals.Stats(c.Request.Context(), p, userID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ProcessRegistration applies a referral code to a registered user. Called by
// the sign-up flow with the internal token, or by admins.
func (h *ReferralHandler) ProcessRegistration(c *gin.Context) {
	var req struct {
		ReferralCode string `json:"referralCode"`
		UserID       string `json:"userId"`
	}
	if !bind(c, &req) {
		return
	}
	result, err := h.referrals.ProcessRegistration(c.Request.Context(), req.ReferralCode, req.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessProperty awards listing points to the owner of a property
func (h *ReferralHandler) ProcessProperty(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		PropertyID string `json:"propertyId"`
		UserID     string `json:"userId"`
	}
	if !bind(c, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = p.UserID
	}
	if !p.CanAccessUser(req.UserID) {
		apperror.Respond(c, apperror.Forbidden("Access denied"))
		return
	}
	award, err := h.referrals.ProcessProperty(c.Request.Context(), req.PropertyID, req.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, award)
}

// GenerateLink returns the caller's referral code and sign-up link
func (h *ReferralHandler) GenerateLink(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	link, err := h.referrals.GenerateLink(c.Request.Context(), p.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// UserReferral reports who referred the caller
func (h *ReferralHandler) UserReferral(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ref, err := h.referrals.UserReferral(c.Request.Context(), p.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}
