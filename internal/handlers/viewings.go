package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/properties"

	"github.com/gin-gonic/gin"
)

func viewingFilter(c *gin.Context) properties.ViewingFilter {
	return properties.ViewingFilter{
		Status:     c.Query("status"),
		PropertyID: c.Query("propertyId"),
		BuyerID:    c.Query("buyerId"),
		SellerID:   c.Query("sellerId"),
		Search:     c.Query("search"),
		Limit:      queryInt(c, "limit", 50),
		Offset:     queryInt(c, "offset", 0),
	}
}

// ScheduleViewing books an availability slot for the caller
func (h *PropertyHandler) ScheduleViewing(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in properties.ViewingInput
	if !bind(c, &in) {
		return
	}
	viewing, err := h.properties.ScheduleViewing(c.Request.Context(), p, in)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "viewingRequest": viewing})
}

// MyViewings lists the caller's own viewing requests
func (h *PropertyHandler) MyViewings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	viewings, total, err := h.properties.MyViewings(c.Request.Context(), p, viewingFilter(c))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewingRequests": viewings, "total": total})
}

// SellerAppointments lists the requests for the caller's listings
func (h *PropertyHandler) SellerAppointments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	viewings, total, err := h.properties.SellerViewings(c.Request.Context(), p, viewingFilter(c))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": viewings, "total": total})
}

// AdminAppointments lists every request with the query-string filters
func (h *PropertyHandler) AdminAppointments(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	viewings, total, err := h.properties.AllViewings(c.Request.Context(), p, viewingFilter(c))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": viewings, "total": total})
}

// UpdateAppointmentStatus accepts, rejects or cancels a viewing request
func (h *PropertyHandler) UpdateAppointmentStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !bind(c, &req) {
		return
	}
	viewing, err := h.properties.UpdateViewingStatus(c.Request.Context(), p, c.Param("appointmentId"), req.Status)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointment": viewing})
}

// ToggleFavorite saves or unsaves a listing
func (h *PropertyHandler) ToggleFavorite(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	saved, err := h.properties.ToggleFavorite(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFavorite": saved})
}

// Favorites lists the caller's saved listings
func (h *PropertyHandler) Favorites(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := h.properties.Favorites(c.Request.Context(), p)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": list})
}

// Moderate applies an admin decision named by the :action path segment
func (h *PropertyHandler) Moderate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	action, ok := properties.ParseModerationAction(c.Param("action"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown moderation action"})
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	res, err := h.properties.Moderate(c.Request.Context(), p, c.Param("id"), action, req.Message)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
