// File: /models/route_point_test.go
package models

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func images(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("data:image/png;base64,%04d", i)
	}
	return out
}

func TestAppendImagesRejectsWholeBatch(t *testing.T) {
	existing := images(4)
	snapshot := append([]string(nil), existing...)

	got, err := AppendImages(existing, images(3))
	assert.ErrorIs(t, err, ErrImageLimit)
	assert.Equal(t, snapshot, got)
	assert.Equal(t, snapshot, existing)
}

func TestAppendImagesUpToLimit(t *testing.T) {
	existing := images(4)

	got, err := AppendImages(existing, images(2))
	require.NoError(t, err)
	assert.Len(t, got, MaxImages)
	assert.Len(t, existing, 4)
}

func TestValidateRejectsNonFiniteCoordinates(t *testing.T) {
	r := RoutePoint{Name: "Sněžka", Latitude: math.NaN(), Longitude: 15.7}
	assert.ErrorIs(t, r.Validate(), ErrUnrepresentable)

	r.Latitude = 50.7
	r.Longitude = math.Inf(1)
	assert.ErrorIs(t, r.Validate(), ErrUnrepresentable)
}
