// File: /services/assist_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrAssistPrecondition = errors.New("assist request is incomplete")
	ErrAssistUnavailable  = errors.New("assist service failed")
)

type DescriptionInput struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type DescriptionOutput struct {
	Description   string `json:"description"`
	PromptVersion string `json:"promptVersion"`
}

type CaptionInput struct {
	Images []string `json:"images"`
}

// CaptionOutput holds the captions of the images that succeeded, in input
// order. Captions do not line up with input positions when some failed.
type CaptionOutput struct {
	Captions      []string `json:"captions"`
	Requested     int      `json:"requested"`
	Succeeded     int      `json:"succeeded"`
	PromptVersion string   `json:"promptVersion"`
}

type AssistService struct {
	generator TextGenerator
	guard     *Guard
	log       *zap.Logger
}

func NewAssistService(generator TextGenerator, log *zap.Logger) *AssistService {
	return &AssistService{
		generator: generator,
		guard:     NewGuard(),
		log:       log,
	}
}

// GenerateDescription asks the model for a multi-paragraph description.
// actorKey scopes the stale-response guard; an empty key disables it.
func (s *AssistService) GenerateDescription(ctx context.Context, actorKey string, in DescriptionInput) (DescriptionOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return DescriptionOutput{}, fmt.Errorf("%w: name is required", ErrAssistPrecondition)
	}
	if in.Latitude == nil || in.Longitude == nil || !finite(*in.Latitude) || !finite(*in.Longitude) {
		return DescriptionOutput{}, fmt.Errorf("%w: numeric latitude and longitude are required", ErrAssistPrecondition)
	}

	prompt, err := renderPrompt(descriptionPrompt, struct {
		Name                string
		Latitude, Longitude float64
	}{name, *in.Latitude, *in.Longitude})
	if err != nil {
		return DescriptionOutput{}, err
	}

	key, gen := s.begin(actorKey, "description")
	text, err := s.generate(ctx, GenerationRequest{Prompt: prompt, OutputField: "description"})
	if !s.finish(key, gen) {
		return DescriptionOutput{}, ErrSuperseded
	}
	if err != nil {
		s.log.Warn("description generation failed", zap.String("name", name), zap.Error(err))
		return DescriptionOutput{}, err
	}

	return DescriptionOutput{Description: text, PromptVersion: PromptVersion}, nil
}

// SuggestCaptions captions each image with its own model call, one after
// another. Failed images are left out and counted.
func (s *AssistService) SuggestCaptions(ctx context.Context, actorKey string, in CaptionInput) (CaptionOutput, error) {
	if len(in.Images) == 0 {
		return CaptionOutput{}, fmt.Errorf("%w: at least one image is required", ErrAssistPrecondition)
	}
	prompt, err := renderPrompt(captionPrompt, nil)
	if err != nil {
		return CaptionOutput{}, err
	}

	key, gen := s.begin(actorKey, "captions")
	out := CaptionOutput{Captions: []string{}, Requested: len(in.Images), PromptVersion: PromptVersion}

	for i, uri := range in.Images {
		if ctx.Err() != nil {
			break
		}
		image, err := DecodeDataURI(uri)
		if err != nil {
			s.log.Warn("skipping malformed image", zap.Int("index", i), zap.Error(err))
			continue
		}
		caption, err := s.generate(ctx, GenerationRequest{Prompt: prompt, Image: &image, OutputField: "caption"})
		if err != nil {
			s.log.Warn("caption generation failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		out.Captions = append(out.Captions, caption)
	}
	out.Succeeded = len(out.Captions)

	if !s.finish(key, gen) {
		return CaptionOutput{}, ErrSuperseded
	}
	if out.Succeeded == 0 {
		return out, fmt.Errorf("%w: no caption could be generated", ErrAssistUnavailable)
	}
	return out, nil
}

// generate runs one call and extracts the single output field.
func (s *AssistService) generate(ctx context.Context, req GenerationRequest) (string, error) {
	raw, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssistUnavailable, err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", fmt.Errorf("%w: response is not JSON: %v", ErrAssistUnavailable, err)
	}
	value, _ := payload[req.OutputField].(string)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: response has no %s", ErrAssistUnavailable, req.OutputField)
	}
	return value, nil
}

func (s *AssistService) begin(actorKey, op string) (string, uint64) {
	if actorKey == "" {
		return "", 0
	}
	key := actorKey + ":" + op
	return key, s.guard.Begin(key)
}

func (s *AssistService) finish(key string, gen uint64) bool {
	if key == "" {
		return true
	}
	return s.guard.Finish(key, gen)
}

// MergeCaptions appends captions below description. The description is never replaced.
func MergeCaptions(description string, captions []string) string {
	if len(captions) == 0 {
		return description
	}
	block := strings.Join(captions, "\n")
	if strings.TrimSpace(description) == "" {
		return block
	}
	return strings.TrimRight(description, "\n") + "\n\n" + block
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
