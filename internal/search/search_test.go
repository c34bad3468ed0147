package search

import (
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/models"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterRequest(t *testing.T) {
	minPrice, maxArea, beds := 100000.0, 150.5, 2
	req := FilterParams{
		Query:    "μεζονέτα",
		MinPrice: &minPrice,
		MaxArea:  &maxArea,
		Bedrooms: &beds,
		Types:    []string{"apartment", "maisonette"},
		Location: `Νέα "Σμύρνη"`,
		SortBy:   "-price",
	}.Request()

	assert.Equal(t, "μεζονέτα", req.Query)
	assert.Equal(t, []string{
		"price >= 100000",
		"area <= 150.5",
		"bedrooms >= 2",
		`(type = "apartment" OR type = "maisonette")`,
		`location = "Νέα \"Σμύρνη\""`,
	}, req.Filter)
	assert.Equal(t, []string{"price:desc"}, req.Sort)
}

func TestFilterRequestIgnoresUnknownSort(t *testing.T) {
	req := FilterParams{SortBy: "owner_id"}.Request()
	assert.Empty(t, req.Sort)
	assert.Empty(t, req.Filter)

	req = FilterParams{SortBy: "area"}.Request()
	assert.Equal(t, []string{"area:asc"}, req.Sort)
}

func TestNewDocument(t *testing.T) {
	beds := 3
	p := &models.Property{
		ID:         "p1",
		UserID:     "u1",
		Title:      "Μονοκατοικία",
		Price:      decimal.RequireFromString("325000.50"),
		Area:       180,
		Location:   "Πειραιάς",
		Bedrooms:   &beds,
		Status:     models.PropertyStatusActive,
		IsVerified: true,
		CreatedAt:  time.Unix(1700000000, 0),
	}
	doc := NewDocument(p)
	assert.Equal(t, 325000.5, doc.Price)
	assert.Equal(t, 3, doc.Bedrooms)
	assert.Equal(t, "u1", doc.OwnerID)
	assert.True(t, doc.Verified)
	assert.Equal(t, int64(1700000000), doc.CreatedAt)

	parsed, ok := parseHit(map[string]interface{}{"id": "p1", "title": "Μονοκατοικία", "area": 180.0})
	require.True(t, ok)
	assert.Equal(t, "p1", parsed.ID)
	assert.Equal(t, 180.0, parsed.Area)

	_, ok = parseHit(map[string]interface{}{"title": "no id"})
	assert.False(t, ok)
}

func TestEnqueueAll(t *testing.T) {
	db := dbtest.New(t)
	owner := dbtest.CreateUser(t, db, "owner", models.RoleSeller)
	dbtest.CreateProperty(t, db, owner.ID, "a")
	dbtest.CreateProperty(t, db, owner.ID, "b")

	n, err := EnqueueAll(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var pending int64
	require.NoError(t, db.Model(&models.SearchIndexTask{}).Where("status = ?", models.TaskStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(2), pending)
}
