package search

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterParams are the catalog's search filters
type FilterParams struct {
	Query    string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	Bedrooms *int
	Types    []string
	Location string
	Status   string
	SortBy   string // price, area or created_at; prefix "-" for descending
	Limit    int64
	Offset   int64
}

var sortable = map[string]bool{"price": true, "area": true, "created_at": true}

// Request translates the filters into a Meilisearch request
func (p FilterParams) Request() SearchRequest {
	var filters []string

	if p.MinPrice != nil {
		filters = append(filters, "price >= "+num(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		filters = append(filters, "price <= "+num(*p.MaxPrice))
	}
	if p.MinArea != nil {
		filters = append(filters, "area >= "+num(*p.MinArea))
	}
	if p.MaxArea != nil {
		filters = append(filters, "area <= "+num(*p.MaxArea))
	}
	if p.Bedrooms != nil {
		filters = append(filters, fmt.Sprintf("bedrooms >= %d", *p.Bedrooms))
	}

	if len(p.Types) > 0 {
		typeFilters := make([]string, len(p.Types))
		for i, t := range p.Types {
			typeFilters[i] = fmt.Sprintf("type = %s", quote(t))
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(typeFilters, " OR ")))
	}
	if p.Location != "" {
		filters = append(filters, fmt.Sprintf("location = %s", quote(p.Location)))
	}
	if p.Status != "" {
		filters = append(filters, fmt.Sprintf("status = %s", quote(p.Status)))
	}

	req := SearchRequest{
		Query:  p.Query,
		Limit:  p.Limit,
		Offset: p.Offset,
		Filter: filters,
	}
	if sort := sortClause(p.SortBy); sort != "" {
		req.Sort = []string{sort}
	}
	return req
}

func sortClause(sortBy string) string {
	field, dir := sortBy, "asc"
	if strings.HasPrefix(sortBy, "-") {
		field, dir = sortBy[1:], "desc"
	}
	if !sortable[field] {
		return ""
	}
	return field + ":" + dir
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// quote wraps a filter value in double quotes, escaping embedded quotes
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// FilterSearch performs a filtered search
func (s *SearchClient) FilterSearch(params FilterParams) (*SearchResult, error) {
	return s.Search(params.Request())
}
