// File: /services/prompts.go
package services

import (
	"bytes"
	"fmt"
	"text/template"
)

// PromptVersion identifies the prompt wording. Bump it whenever a template changes.
const PromptVersion = "route-assist/2"

var descriptionPrompt = template.Must(template.New("description").Parse(
	`You write guidebook entries for hiking and tourist routes.

Write an inviting description of the route point below. Cover what makes it special,
the views a visitor can expect, how the walk feels, and any natural or historical
background that fits the place.

Route point: {{.Name}}
GPS: {{printf "%.6f" .Latitude}}, {{printf "%.6f" .Longitude}}

Write 3 to 5 paragraphs. Return JSON with a single "description" field.`))

var captionPrompt = template.Must(template.New("caption").Parse(
	`You caption photos from outdoor tourist routes for a photo gallery.
Write one short caption for the attached photo. Mention what is visible, the mood
and what a visitor could do there.
Return JSON with a single "caption" field and nothing else.`))

func renderPrompt(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
