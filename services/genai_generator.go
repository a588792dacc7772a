// File: /services/genai_generator.go
package services

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenerationRequest is one structured-output call. The model must answer with
// a JSON object holding a single string property named OutputField.
type GenerationRequest struct {
	Prompt      string
	Image       *InlineImage
	OutputField string
}

// TextGenerator is the hosted model behind the assist operations.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GenAIGenerator calls Gemini through the genai SDK.
type GenAIGenerator struct {
	client      *genai.Client
	textModel   string
	visionModel string
}

func NewGenAIGenerator(ctx context.Context, apiKey, textModel, visionModel string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	if visionModel == "" {
		visionModel = textModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client:      client,
		textModel:   textModel,
		visionModel: visionModel,
	}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	model := g.textModel
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		model = g.visionModel
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				req.OutputField: {Type: genai.TypeString},
			},
			Required: []string{req.OutputField},
		},
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("GenAI returned no content")
	}
	return text, nil
}

// DisabledGenerator stands in when no API key is configured.
type DisabledGenerator struct{}

func (DisabledGenerator) Generate(context.Context, GenerationRequest) (string, error) {
	return "", fmt.Errorf("text generation is not configured")
}
