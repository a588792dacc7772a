package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trailcatalog-api/models"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func listPtr(l ...string) *[]string { return &l }

func fieldNames(errs FieldErrors) []string {
	out := []string{}
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestRouteFormResolveComplete(t *testing.T) {
	form := NewRouteForm()
	route, errs := form.Resolve(RouteFormInput{
		Name:        strPtr("  Sněžka  "),
		Latitude:    floatPtr(50.7359),
		Longitude:   floatPtr(15.7400),
		EmbedURL:    strPtr(`<iframe src="https://mapy.cz/s/abc"></iframe>`),
		Images:      listPtr("data:image/png;base64,iVBORw0KGgo="),
		Difficulty:  strPtr("hard"),
		SuitableFor: listPtr("pedestrians", "pěší", "families"),
	})
	require.Empty(t, errs)
	assert.Equal(t, "Sněžka", route.Name)
	assert.Equal(t, models.DifficultyHard, route.Difficulty)
	assert.Equal(t, models.RouteTypeLoop, route.RouteType)
	assert.Equal(t, []string{models.SuitablePedestrians, models.SuitableFamilies}, []string(route.SuitableFor))
	assert.Len(t, route.Images, 1)
}

func TestRouteFormRequiredFields(t *testing.T) {
	_, errs := NewRouteForm().Resolve(RouteFormInput{Description: strPtr("jen popis")})
	assert.Equal(t, []string{"name", "latitude", "longitude"}, fieldNames(errs))
}

func TestRouteFormRejectsBadValues(t *testing.T) {
	tooMany := make([]string, models.MaxImages+1)
	for i := range tooMany {
		tooMany[i] = "data:image/png;base64,iVBORw0KGgo="
	}

	_, errs := NewRouteForm().Resolve(RouteFormInput{
		Name:        strPtr("   "),
		Latitude:    floatPtr(91),
		Longitude:   floatPtr(-181),
		EmbedURL:    strPtr("javascript:alert(1)"),
		Images:      &tooMany,
		Difficulty:  strPtr("extreme"),
		RouteType:   strPtr("circle"),
		SuitableFor: listPtr("horses"),
	})
	assert.Equal(t, []string{"name", "latitude", "longitude", "embedUrl", "images", "difficulty", "routeType", "suitableFor"}, fieldNames(errs))
	assert.Contains(t, errs.Error(), "latitude: must be between -90 and 90")
}

func TestRouteFormRejectsMalformedImage(t *testing.T) {
	_, errs := NewRouteForm().ResolvePatch(RouteFormInput{Images: listPtr("not-a-data-uri")})
	require.Len(t, errs, 1)
	assert.Equal(t, "images", errs[0].Field)
}

func TestRouteFormResolvePatch(t *testing.T) {
	form := NewRouteForm()
	patch, errs := form.ResolvePatch(RouteFormInput{Description: strPtr("Nový popis")})
	require.Empty(t, errs)
	require.NotNil(t, patch.Description)
	assert.Equal(t, "Nový popis", *patch.Description)
	assert.Nil(t, patch.Name)
	assert.Nil(t, patch.Latitude)

	_, errs = form.ResolvePatch(RouteFormInput{})
	require.Len(t, errs, 1)
	assert.Equal(t, "form", errs[0].Field)
}

func TestIsValidEmbed(t *testing.T) {
	assert.True(t, IsValidEmbed("https://mapy.cz/s/abc"))
	assert.True(t, IsValidEmbed(`<iframe src="https://www.google.com/maps/embed?pb=1"></iframe>`))
	assert.False(t, IsValidEmbed("ftp://example.com/x"))
	assert.False(t, IsValidEmbed("<iframe></iframe>"))
	assert.False(t, IsValidEmbed(strings.Repeat(" ", 3)))
}
