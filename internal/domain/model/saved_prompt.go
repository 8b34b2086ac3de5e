package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SavedPrompt is a reusable parameter preset.
type SavedPrompt struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Kind Kind   `json:"kind"`
	GenerationParams
	CreatedAt time.Time `json:"createdAt"`
}

// NewSavedPrompt validates the preset and assigns a sortable local id.
func NewSavedPrompt(name string, kind Kind, params GenerationParams, now time.Time) (*SavedPrompt, error) {
	params = params.WithDefaults(kind)
	if err := params.Validate(kind); err != nil {
		return nil, err
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = summarize(params.Prompt, 24)
	}
	return &SavedPrompt{
		ID:               id.String(),
		Name:             name,
		Kind:             kind,
		GenerationParams: params,
		CreatedAt:        now.UTC(),
	}, nil
}

func (p SavedPrompt) Key() string        { return p.ID }
func (p SavedPrompt) Created() time.Time { return p.CreatedAt }

func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
