package model

import (
	"errors"
	"fmt"
	"strings"

	"genmedia-studio/internal/domain"

	"github.com/go-playground/validator/v10"
)

const (
	MinPromptLength = 5
	MaxPromptLength = 4000
	MaxEditImages   = 10
	MaxBatchSize    = 10
)

// GenerationParams are the immutable inputs of a generation job.
type GenerationParams struct {
	Prompt      string   `json:"prompt"`
	Duration    string   `json:"duration,omitempty"`
	AspectRatio string   `json:"aspectRatio,omitempty"`
	Resolution  string   `json:"resolution,omitempty"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
}

func (p GenerationParams) Copy() GenerationParams {
	if p.ImageURLs != nil {
		p.ImageURLs = append([]string(nil), p.ImageURLs...)
	}
	return p
}

// WithDefaults trims the prompt and fills the per-kind defaults.
func (p GenerationParams) WithDefaults(kind Kind) GenerationParams {
	p = p.Copy()
	p.Prompt = strings.TrimSpace(p.Prompt)
	if kind.IsVideo() {
		if p.Duration == "" {
			p.Duration = "10"
		}
		if p.AspectRatio == "" {
			p.AspectRatio = "9:16"
		}
	}
	return p
}

var validate = validator.New()

type textToVideoRules struct {
	Prompt      string `validate:"required,min=5,max=4000"`
	Duration    string `validate:"oneof=10 15"`
	AspectRatio string `validate:"oneof=9:16 16:9"`
}

type imageToVideoRules struct {
	Prompt      string   `validate:"max=4000"`
	Duration    string   `validate:"oneof=10 15"`
	AspectRatio string   `validate:"oneof=9:16 16:9"`
	ImageURLs   []string `validate:"len=1,dive,required,url"`
}

type imageToImageRules struct {
	Prompt      string   `validate:"required,min=5,max=4000"`
	AspectRatio string   `validate:"omitempty,oneof=9:16 16:9 1:1"`
	Resolution  string   `validate:"omitempty,oneof=1k 2k 4k"`
	ImageURLs   []string `validate:"min=1,max=10,dive,required,url"`
}

// Validate checks p against the rules of kind. It never touches the network.
func (p GenerationParams) Validate(kind Kind) error {
	var rules any
	switch kind {
	case KindTextToVideo:
		rules = textToVideoRules{Prompt: strings.TrimSpace(p.Prompt), Duration: p.Duration, AspectRatio: p.AspectRatio}
	case KindImageToVideo:
		rules = imageToVideoRules{Prompt: strings.TrimSpace(p.Prompt), Duration: p.Duration, AspectRatio: p.AspectRatio, ImageURLs: p.ImageURLs}
	case KindImageToImage:
		rules = imageToImageRules{Prompt: strings.TrimSpace(p.Prompt), AspectRatio: p.AspectRatio, Resolution: p.Resolution, ImageURLs: p.ImageURLs}
	default:
		return domain.Validationf("unknown task kind %q", kind)
	}
	if err := validate.Struct(rules); err != nil {
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	fe := verrs[0]
	field := fe.Field()
	switch {
	case field == "Prompt" && fe.Tag() == "required":
		return domain.Validationf("prompt is required")
	case field == "Prompt" && fe.Tag() == "min":
		return domain.Validationf("prompt needs at least %d characters", MinPromptLength)
	case field == "Prompt" && fe.Tag() == "max":
		return domain.Validationf("prompt exceeds %d characters", MaxPromptLength)
	case field == "ImageURLs" && fe.Tag() == "max":
		return domain.Validationf("at most %d images are allowed", MaxEditImages)
	case field == "ImageURLs":
		return domain.Validationf("image reference required")
	case strings.HasPrefix(field, "ImageURLs["):
		return domain.Validationf("invalid image reference %v", fe.Value())
	}
	return domain.Validationf("%s %q is not allowed", strings.ToLower(field[:1])+field[1:], fmt.Sprint(fe.Value()))
}
