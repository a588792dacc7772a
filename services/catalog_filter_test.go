package services

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trailcatalog-api/models"
)

func catalogFixture() []models.RoutePoint {
	return []models.RoutePoint{
		{ID: "1", Name: "Sněžka z Pece", Difficulty: models.DifficultyHard, RouteType: models.RouteTypeTraverse,
			SuitableFor: models.StringSlice{models.SuitablePedestrians}},
		{ID: "2", Name: "Okolo Máchova jezera", Difficulty: models.DifficultyEasy, RouteType: models.RouteTypeLoop,
			SuitableFor: models.StringSlice{models.SuitableCyclists, models.SuitableFamilies}},
		{ID: "3", Name: "Jezerní stezka", Difficulty: models.DifficultyMedium, RouteType: models.RouteTypeLoop,
			SuitableFor: models.StringSlice{models.SuitablePedestrians, models.SuitableFamilies}},
		{ID: "4", Name: "Pálava", Difficulty: models.DifficultyMedium, RouteType: models.RouteTypeTraverse,
			SuitableFor: models.StringSlice{}},
	}
}

func ids(routes []models.RoutePoint) []string {
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterRoutesIdentity(t *testing.T) {
	routes := catalogFixture()
	assert.Equal(t, routes, FilterRoutes(routes, AnyFilter()))
	assert.Equal(t, routes, FilterRoutes(routes, CatalogFilter{}))
}

func TestFilterRoutesIsPure(t *testing.T) {
	routes := catalogFixture()
	f := CatalogFilter{SearchTerm: "JEZER", Difficulty: FacetAny, RouteType: string(models.RouteTypeLoop), SuitableFor: FacetAny}
	first := FilterRoutes(routes, f)
	second := FilterRoutes(routes, f)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"2", "3"}, ids(first))
	assert.Len(t, routes, 4)
}

func TestFilterRoutesConjunction(t *testing.T) {
	routes := catalogFixture()
	tests := []struct {
		name   string
		filter CatalogFilter
		want   []string
	}{
		{"search only", CatalogFilter{SearchTerm: "sněž"}, []string{"1"}},
		{"difficulty", CatalogFilter{Difficulty: string(models.DifficultyMedium)}, []string{"3", "4"}},
		{"route type", CatalogFilter{RouteType: string(models.RouteTypeTraverse)}, []string{"1", "4"}},
		{"suitability", CatalogFilter{SuitableFor: models.SuitableFamilies}, []string{"2", "3"}},
		{"all facets", CatalogFilter{
			SearchTerm:  "stezka",
			Difficulty:  string(models.DifficultyMedium),
			RouteType:   string(models.RouteTypeLoop),
			SuitableFor: models.SuitablePedestrians,
		}, []string{"3"}},
		{"no match", CatalogFilter{Difficulty: string(models.DifficultyHard), SuitableFor: models.SuitableCyclists}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRoutes(routes, tt.filter)
			assert.Equal(t, tt.want, ids(got))
			for _, r := range routes {
				assert.Equal(t, tt.filter.Matches(r), contains(ids(got), r.ID))
			}
		})
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestParseCatalogFilter(t *testing.T) {
	f, err := ParseCatalogFilter(url.Values{
		"search":      {"  jezero "},
		"difficulty":  {"easy"},
		"routeType":   {"Okružní"},
		"suitableFor": {"any"},
	})
	require.NoError(t, err)
	assert.Equal(t, CatalogFilter{
		SearchTerm:  "jezero",
		Difficulty:  string(models.DifficultyEasy),
		RouteType:   string(models.RouteTypeLoop),
		SuitableFor: FacetAny,
	}, f)

	empty, err := ParseCatalogFilter(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, AnyFilter(), empty)

	_, err = ParseCatalogFilter(url.Values{"difficulty": {"extreme"}})
	assert.ErrorIs(t, err, models.ErrUnknownFacet)
}
