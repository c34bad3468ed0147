package search

import (
	"encoding/json"
	"realestate-platform/internal/config"
	"realestate-platform/internal/models"
	"strings"

	"github.com/meilisearch/meilisearch-go"
)

// Document is the indexed form of a property
type Document struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
	Location    string  `json:"location"`
	Address     string  `json:"address,omitempty"`
	Price       float64 `json:"price"`
	Area        float64 `json:"area"`
	Bedrooms    int     `json:"bedrooms"`
	Status      string  `json:"status"`
	Verified    bool    `json:"verified"`
	OwnerID     string  `json:"owner_id"`
	CreatedAt   int64   `json:"created_at"`
}

// NewDocument converts a property into its search document
func NewDocument(p *models.Property) Document {
	price, _ := p.Price.Float64()
	doc := Document{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Type:        p.Type,
		Location:    p.Location,
		Address:     p.Address,
		Price:       price,
		Area:        p.Area,
		Status:      string(p.Status),
		Verified:    p.IsVerified,
		OwnerID:     p.UserID,
		CreatedAt:   p.CreatedAt.Unix(),
	}
	if p.Bedrooms != nil {
		doc.Bedrooms = *p.Bedrooms
	}
	return doc
}

// Engine is the search backend used by the catalog and the index worker
type Engine interface {
	IndexDocuments(docs []Document) error
	DeleteDocument(id string) error
	Search(req SearchRequest) (*SearchResult, error)
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(cfg config.MeilisearchConfig) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.Host,
		APIKey: cfg.APIKey,
	})

	index := cfg.Index
	if index == "" {
		index = "properties"
	}
	return &SearchClient{
		client: client,
		index:  index,
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"location",
		"address",
		"description",
		"type",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"price",
		"area",
		"bedrooms",
		"type",
		"location",
		"status",
		"owner_id",
		"verified",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"area",
		"created_at",
	})
	return err
}

// Healthy reports whether the Meilisearch server answers
func (s *SearchClient) Healthy() bool {
	return s.client.IsHealthy()
}

// IndexDocuments adds or replaces documents
func (s *SearchClient) IndexDocuments(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := s.client.Index(s.index).AddDocuments(docs, "id")
	return err
}

// DeleteDocument removes one property from the index
func (s *SearchClient) DeleteDocument(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query  string
	Limit  int64
	Offset int64
	Filter []string
	Sort   []string
	Facets []string
}

// SearchResult holds matching documents in relevance order
type SearchResult struct {
	Hits           []Document
	TotalHits      int64
	Facets         map[string]interface{}
	ProcessingTime int64
}

// IDs returns the hit ids in order
func (r *SearchResult) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

// Search performs a search with filters, sorting and facets
func (s *SearchClient) Search(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if len(req.Filter) > 0 {
		searchReq.Filter = strings.Join(req.Filter, " AND ")
	}
	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}
	if len(req.Facets) > 0 {
		searchReq.Facets = req.Facets
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		doc, ok := parseHit(hit)
		if !ok {
			continue
		}
		docs = append(docs, doc)
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	return &SearchResult{
		Hits:           docs,
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// parseHit converts a search hit to a Document via its JSON form
func parseHit(hit interface{}) (Document, bool) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Document{}, false
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil || doc.ID == "" {
		return Document{}, false
	}
	return doc, true
}
