// File: /services/route_form.go
package services

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"trailcatalog-api/models"
	"trailcatalog-api/utils"
)

// RouteFormInput is the submitted route form. Nil fields were not submitted.
type RouteFormInput struct {
	Name        *string   `json:"name"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	EmbedURL    *string   `json:"embedUrl"`
	Description *string   `json:"description"`
	Images      *[]string `json:"images"`
	Difficulty  *string   `json:"difficulty"`
	RouteType   *string   `json:"routeType"`
	SuitableFor *[]string `json:"suitableFor"`
}

type FieldError = utils.FieldError

// FieldErrors lists every field that failed, in form order.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

// FormField describes one input of the route form.
type FormField struct {
	Name     string
	Required bool
	// Tag is a validator tag checked against the submitted value.
	Tag    string
	value  func(in RouteFormInput) (interface{}, bool)
	assign func(raw interface{}, patch *models.RoutePatch) error
}

// RouteForm is the single description of the route form used by create and
// update. Every field is listed with its required flag and validator.
type RouteForm struct {
	fields   []FormField
	validate *validator.Validate
}

func NewRouteForm() *RouteForm {
	v := validator.New()
	v.RegisterValidation("lat", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && utils.IsValidLatitude(f)
	})
	v.RegisterValidation("lng", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && utils.IsValidLongitude(f)
	})
	v.RegisterValidation("embed", func(fl validator.FieldLevel) bool {
		return IsValidEmbed(fl.Field().String())
	})

	return &RouteForm{validate: v, fields: []FormField{
		{
			Name: "name", Required: true, Tag: "required,max=255",
			value: func(in RouteFormInput) (interface{}, bool) { return derefString(in.Name) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				name := strings.TrimSpace(raw.(string))
				if name == "" {
					return models.ErrEmptyName
				}
				p.Name = &name
				return nil
			},
		},
		{
			Name: "latitude", Required: true, Tag: "lat",
			value: func(in RouteFormInput) (interface{}, bool) { return derefFloat(in.Latitude) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				lat := raw.(float64)
				p.Latitude = &lat
				return nil
			},
		},
		{
			Name: "longitude", Required: true, Tag: "lng",
			value: func(in RouteFormInput) (interface{}, bool) { return derefFloat(in.Longitude) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				lng := raw.(float64)
				p.Longitude = &lng
				return nil
			},
		},
		{
			Name: "embedUrl", Tag: "omitempty,embed",
			value: func(in RouteFormInput) (interface{}, bool) { return derefString(in.EmbedURL) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				embed := strings.TrimSpace(raw.(string))
				p.EmbedURL = &embed
				return nil
			},
		},
		{
			Name: "description", Tag: "max=20000",
			value: func(in RouteFormInput) (interface{}, bool) { return derefString(in.Description) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				desc := raw.(string)
				p.Description = &desc
				return nil
			},
		},
		{
			Name: "images", Tag: fmt.Sprintf("max=%d,dive,datauri", models.MaxImages),
			value: func(in RouteFormInput) (interface{}, bool) {
				if in.Images == nil {
					return nil, false
				}
				return *in.Images, true
			},
			assign: func(raw interface{}, p *models.RoutePatch) error {
				images := append([]string{}, raw.([]string)...)
				p.Images = &images
				return nil
			},
		},
		{
			Name:  "difficulty",
			value: func(in RouteFormInput) (interface{}, bool) { return derefString(in.Difficulty) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				d, err := models.ParseDifficulty(raw.(string))
				if err != nil {
					return err
				}
				p.Difficulty = &d
				return nil
			},
		},
		{
			Name:  "routeType",
			value: func(in RouteFormInput) (interface{}, bool) { return derefString(in.RouteType) },
			assign: func(raw interface{}, p *models.RoutePatch) error {
				t, err := models.ParseRouteType(raw.(string))
				if err != nil {
					return err
				}
				p.RouteType = &t
				return nil
			},
		},
		{
			Name: "suitableFor",
			value: func(in RouteFormInput) (interface{}, bool) {
				if in.SuitableFor == nil {
					return nil, false
				}
				return *in.SuitableFor, true
			},
			assign: func(raw interface{}, p *models.RoutePatch) error {
				tags, err := models.NormalizeSuitableFor(raw.([]string))
				if err != nil {
					return err
				}
				list := []string(tags)
				p.SuitableFor = &list
				return nil
			},
		},
	}}
}

// Fields returns the form description, for clients that render the form.
func (f *RouteForm) Fields() []FormField {
	return f.fields
}

// Resolve validates a complete submission and builds the record to create.
func (f *RouteForm) Resolve(in RouteFormInput) (models.RoutePoint, FieldErrors) {
	patch, errs := f.resolve(in, true)
	if len(errs) > 0 {
		return models.RoutePoint{}, errs
	}
	var route models.RoutePoint
	patch.Apply(&route)
	route.ApplyDefaults()
	return route, nil
}

// ResolvePatch validates a partial submission. Only submitted fields are checked.
func (f *RouteForm) ResolvePatch(in RouteFormInput) (models.RoutePatch, FieldErrors) {
	patch, errs := f.resolve(in, false)
	if len(errs) > 0 {
		return models.RoutePatch{}, errs
	}
	if patch.IsEmpty() {
		return models.RoutePatch{}, FieldErrors{{Field: "form", Message: "no fields to update"}}
	}
	return patch, nil
}

func (f *RouteForm) resolve(in RouteFormInput, complete bool) (models.RoutePatch, FieldErrors) {
	var patch models.RoutePatch
	var errs FieldErrors

	for _, field := range f.fields {
		raw, present := field.value(in)
		if !present {
			if complete && field.Required {
				errs = append(errs, FieldError{Field: field.Name, Message: "is required"})
			}
			continue
		}
		if field.Tag != "" {
			if err := f.validate.Var(raw, field.Tag); err != nil {
				errs = append(errs, FieldError{Field: field.Name, Message: describeValidation(err)})
				continue
			}
		}
		if err := field.assign(raw, &patch); err != nil {
			errs = append(errs, FieldError{Field: field.Name, Message: err.Error()})
		}
	}
	return patch, errs
}

// IsValidEmbed accepts an http(s) URL or iframe markup.
func IsValidEmbed(embed string) bool {
	embed = strings.TrimSpace(embed)
	if strings.HasPrefix(strings.ToLower(embed), "<iframe") {
		return strings.Contains(strings.ToLower(embed), "src=")
	}
	u, err := url.Parse(embed)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "exceeds the maximum of " + fe.Param()
	case "lat":
		return "must be between -90 and 90"
	case "lng":
		return "must be between -180 and 180"
	case "embed":
		return "must be an http(s) URL or iframe markup"
	case "datauri":
		return "must be a base64 data URI"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func derefString(s *string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func derefFloat(f *float64) (interface{}, bool) {
	if f == nil {
		return nil, false
	}
	return *f, true
}
