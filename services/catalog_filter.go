// File: /services/catalog_filter.go
package services

import (
	"net/url"
	"strings"

	"trailcatalog-api/models"
)

// FacetAny matches every value of a facet.
const FacetAny = "any"

// CatalogFilter is the visitor's filter state. Facets hold a normalized
// value or FacetAny.
type CatalogFilter struct {
	SearchTerm  string `json:"searchTerm"`
	Difficulty  string `json:"difficulty"`
	RouteType   string `json:"routeType"`
	SuitableFor string `json:"suitableFor"`
}

// AnyFilter passes every record.
func AnyFilter() CatalogFilter {
	return CatalogFilter{Difficulty: FacetAny, RouteType: FacetAny, SuitableFor: FacetAny}
}

// Matches reports whether route satisfies every predicate of f.
func (f CatalogFilter) Matches(route models.RoutePoint) bool {
	if f.SearchTerm != "" && !strings.Contains(strings.ToLower(route.Name), strings.ToLower(f.SearchTerm)) {
		return false
	}
	if !isAny(f.Difficulty) && string(route.Difficulty) != f.Difficulty {
		return false
	}
	if !isAny(f.RouteType) && string(route.RouteType) != f.RouteType {
		return false
	}
	if !isAny(f.SuitableFor) && !route.HasSuitability(f.SuitableFor) {
		return false
	}
	return true
}

// FilterRoutes returns the records that match f, keeping their input order.
func FilterRoutes(routes []models.RoutePoint, f CatalogFilter) []models.RoutePoint {
	out := make([]models.RoutePoint, 0, len(routes))
	for _, r := range routes {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// ParseCatalogFilter reads the filter from query parameters. Facets accept
// the native label, the English key or "any"; missing facets mean any.
func ParseCatalogFilter(q url.Values) (CatalogFilter, error) {
	f := AnyFilter()
	f.SearchTerm = strings.TrimSpace(q.Get("search"))

	if v := q.Get("difficulty"); !isAny(v) {
		d, err := models.ParseDifficulty(v)
		if err != nil {
			return CatalogFilter{}, err
		}
		f.Difficulty = string(d)
	}
	if v := q.Get("routeType"); !isAny(v) {
		t, err := models.ParseRouteType(v)
		if err != nil {
			return CatalogFilter{}, err
		}
		f.RouteType = string(t)
	}
	if v := q.Get("suitableFor"); !isAny(v) {
		s, err := models.ParseSuitability(v)
		if err != nil {
			return CatalogFilter{}, err
		}
		f.SuitableFor = s
	}
	return f, nil
}

func isAny(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, FacetAny)
}
