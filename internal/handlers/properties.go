package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/properties"
	"realestate-platform/internal/search"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PropertyHandler serves the listing catalog
type PropertyHandler struct {
	properties *properties.Service
}

func NewPropertyHandler(p *properties.Service) *PropertyHandler {
	return &PropertyHandler{properties: p}
}

// filterParams reads the catalog filters from the query string
func filterParams(c *gin.Context) search.FilterParams {
	f := search.FilterParams{
		Query:    c.Query("q"),
		MinPrice: queryFloat(c, "minPrice"),
		MaxPrice: queryFloat(c, "maxPrice"),
		MinArea:  queryFloat(c, "minArea"),
		MaxArea:  queryFloat(c, "maxArea"),
		Types:    queryList(c, "type"),
		Location: c.Query("location"),
		Status:   c.Query("status"),
		SortBy:   c.Query("sort"),
		Limit:    int64(queryInt(c, "limit", 20)),
		Offset:   int64(queryInt(c, "offset", 0)),
	}
	if n, err := strconv.Atoi(c.Query("bedrooms")); err == nil {
		f.Bedrooms = &n
	}
	return f
}

// List returns listings matching the query-string filters
func (h *PropertyHandler) List(c *gin.Context) {
	res, err := h.properties.List(c.Request.Context(), viewer(c), filterParams(c), c.Query("ownerId"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search runs a full-text search over the catalog
func (h *PropertyHandler) Search(c *gin.Context) {
	res, err := h.properties.Search(c.Request.Context(), viewer(c), filterParams(c))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PropertyHandler) Get(c *gin.Context) {
	property, err := h.properties.Get(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"property": property})
}

func (h *PropertyHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in properties.Input
	if !bind(c, &in) {
		return
	}
	created, err := h.properties.Create(c.Request.Context(), p, in)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *PropertyHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in properties.Input
	if !bind(c, &in) {
		return
	}
	property, err := h.properties.Update(c.Request.Context(), p, c.Param("id"), in)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"property": property})
}

func (h *PropertyHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.properties.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PropertyHandler) Availability(c *gin.Context) {
	slots, err := h.properties.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": slots})
}

func (h *PropertyHandler) AddSlot(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in properties.SlotInput
	if !bind(c, &in) {
		return
	}
	slot, err := h.properties.AddSlot(c.Request.Context(), p, c.Param("id"), in)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"slot": slot})
}

func (h *PropertyHandler) RemoveSlot(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.properties.RemoveSlot(c.Request.Context(), p, c.Param("id"), c.Param("slotId")); err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// History lists the recorded changes of one listing
func (h *PropertyHandler) History(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	changes, err := h.properties.History(c.Request.Context(), p, c.Param("id"), queryInt(c, "limit", 100))
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

// RecentChanges lists the latest listing changes across the catalog
func (h *PropertyHandler) RecentChanges(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	changes, err := h.properties.RecentChanges(c.Request.Context(), limit)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes, "count": len(changes)})
}
