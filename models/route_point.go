// File: /models/route_point.go
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MaxImages is the number of photos a single route point may carry.
const MaxImages = 6

var (
	ErrImageLimit      = fmt.Errorf("a route point may hold at most %d images", MaxImages)
	ErrUnrepresentable = errors.New("coordinates must be finite numbers")
	ErrUnknownFacet    = errors.New("unknown facet value")
	ErrEmptyName       = errors.New("name is required")
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Lehká"
	DifficultyMedium Difficulty = "Střední"
	DifficultyHard   Difficulty = "Obtížná"
)

type RouteType string

const (
	RouteTypeLoop     RouteType = "Okružní"
	RouteTypeTraverse RouteType = "Přechod"
)

// Suitability tags, stored by their native-language label.
const (
	SuitablePedestrians = "pěší"
	SuitableCyclists    = "cyklisté"
	SuitableFamilies    = "rodiny"
)

var difficultyAliases = map[string]Difficulty{
	"easy":    DifficultyEasy,
	"medium":  DifficultyMedium,
	"hard":    DifficultyHard,
	"lehká":   DifficultyEasy,
	"střední": DifficultyMedium,
	"obtížná": DifficultyHard,
}

var routeTypeAliases = map[string]RouteType{
	"loop":     RouteTypeLoop,
	"traverse": RouteTypeTraverse,
	"okružní":  RouteTypeLoop,
	"přechod":  RouteTypeTraverse,
}

var suitabilityAliases = map[string]string{
	"pedestrians": SuitablePedestrians,
	"cyclists":    SuitableCyclists,
	"families":    SuitableFamilies,
	"pěší":        SuitablePedestrians,
	"cyklisté":    SuitableCyclists,
	"rodiny":      SuitableFamilies,
}

// SuitabilityVocabulary lists the accepted suitableFor tags in display order.
var SuitabilityVocabulary = []string{SuitablePedestrians, SuitableCyclists, SuitableFamilies}

// RoutePoint is a single catalog entry. JSON names follow the layout of the
// browser storage slot so that exported slots load unchanged.
type RoutePoint struct {
	ID          string      `json:"id" gorm:"primaryKey;size:191"`
	Name        string      `json:"name" gorm:"not null;size:255"`
	Latitude    float64     `json:"latitude" gorm:"not null"`
	Longitude   float64     `json:"longitude" gorm:"not null"`
	EmbedURL    string      `json:"embedUrl" gorm:"type:text"`
	Description string      `json:"description" gorm:"type:text"`
	Images      StringSlice `json:"images" gorm:"type:json"`
	Difficulty  Difficulty  `json:"difficulty" gorm:"size:32;default:'Střední'"`
	RouteType   RouteType   `json:"routeType" gorm:"size:32;default:'Okružní'"`
	SuitableFor StringSlice `json:"suitableFor" gorm:"type:json"`
	CreatedAt   time.Time   `json:"createdAt" gorm:"index"`
	CreatedBy   string      `json:"createdBy,omitempty" gorm:"size:191;index"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty" gorm:"autoUpdateTime:false"`
}

// ParseDifficulty accepts a native label or its English key.
func ParseDifficulty(value string) (Difficulty, error) {
	if d, ok := difficultyAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("difficulty %q: %w", value, ErrUnknownFacet)
}

// ParseRouteType accepts a native label or its English key.
func ParseRouteType(value string) (RouteType, error) {
	if t, ok := routeTypeAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("route type %q: %w", value, ErrUnknownFacet)
}

// ParseSuitability accepts a native tag or its English key.
func ParseSuitability(value string) (string, error) {
	if s, ok := suitabilityAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return s, nil
	}
	return "", fmt.Errorf("suitable for %q: %w", value, ErrUnknownFacet)
}

// NormalizeSuitableFor maps every tag onto the vocabulary and drops
// duplicates, keeping first-seen order.
func NormalizeSuitableFor(tags []string) (StringSlice, error) {
	out := make(StringSlice, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		s, err := ParseSuitability(tag)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// AppendImages adds a batch of images. A batch that would push the total past
// MaxImages is rejected whole and existing is returned untouched.
func AppendImages(existing []string, batch []string) ([]string, error) {
	if len(existing)+len(batch) > MaxImages {
		return existing, ErrImageLimit
	}
	out := make([]string, 0, len(existing)+len(batch))
	out = append(out, existing...)
	return append(out, batch...), nil
}

// ApplyDefaults fills the enum fields left empty by older records.
func (r *RoutePoint) ApplyDefaults() {
	if r.Difficulty == "" {
		r.Difficulty = DifficultyMedium
	}
	if r.RouteType == "" {
		r.RouteType = RouteTypeLoop
	}
	if r.Images == nil {
		r.Images = StringSlice{}
	}
	if r.SuitableFor == nil {
		r.SuitableFor = StringSlice{}
	}
}

// Normalize maps suitableFor onto the vocabulary and drops duplicates.
func (r *RoutePoint) Normalize() error {
	tags, err := NormalizeSuitableFor(r.SuitableFor)
	if err != nil {
		return err
	}
	r.SuitableFor = tags
	return nil
}

// Validate checks the structural invariants shared by every backend.
func (r *RoutePoint) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if !isFinite(r.Latitude) || !isFinite(r.Longitude) {
		return ErrUnrepresentable
	}
	if len(r.Images) > MaxImages {
		return ErrImageLimit
	}
	return nil
}

// HasSuitability reports whether tag is in the record's suitableFor set.
func (r *RoutePoint) HasSuitability(tag string) bool {
	for _, s := range r.SuitableFor {
		if s == tag {
			return true
		}
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// RoutePatch carries a partial update. Nil fields are left alone.
type RoutePatch struct {
	Name        *string     `json:"name,omitempty"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	EmbedURL    *string     `json:"embedUrl,omitempty"`
	Description *string     `json:"description,omitempty"`
	Images      *[]string   `json:"images,omitempty"`
	Difficulty  *Difficulty `json:"difficulty,omitempty"`
	RouteType   *RouteType  `json:"routeType,omitempty"`
	SuitableFor *[]string   `json:"suitableFor,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p RoutePatch) IsEmpty() bool {
	return p.Name == nil && p.Latitude == nil && p.Longitude == nil && p.EmbedURL == nil &&
		p.Description == nil && p.Images == nil && p.Difficulty == nil && p.RouteType == nil &&
		p.SuitableFor == nil
}

// Apply merges the set fields into r. Identity and creation fields are never touched.
func (p RoutePatch) Apply(r *RoutePoint) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Latitude != nil {
		r.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		r.Longitude = *p.Longitude
	}
	if p.EmbedURL != nil {
		r.EmbedURL = *p.EmbedURL
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Images != nil {
		r.Images = append(StringSlice{}, (*p.Images)...)
	}
	if p.Difficulty != nil {
		r.Difficulty = *p.Difficulty
	}
	if p.RouteType != nil {
		r.RouteType = *p.RouteType
	}
	if p.SuitableFor != nil {
		r.SuitableFor = append(StringSlice{}, (*p.SuitableFor)...)
	}
}

// Columns returns the column updates for the set fields, used by gorm Updates.
func (p RoutePatch) Columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Latitude != nil {
		updates["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		updates["longitude"] = *p.Longitude
	}
	if p.EmbedURL != nil {
		updates["embed_url"] = *p.EmbedURL
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Images != nil {
		updates["images"] = StringSlice(*p.Images)
	}
	if p.Difficulty != nil {
		updates["difficulty"] = *p.Difficulty
	}
	if p.RouteType != nil {
		updates["route_type"] = *p.RouteType
	}
	if p.SuitableFor != nil {
		updates["suitable_for"] = StringSlice(*p.SuitableFor)
	}
	return updates
}
