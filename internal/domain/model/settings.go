package model

import "genmedia-studio/internal/domain"

const DefaultMaxConcurrent = 5

// Settings are the user preferences persisted on this device.
type Settings struct {
	MaxConcurrent int    `json:"maxConcurrent" validate:"min=1,max=20"`
	Theme         string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
}

func DefaultSettings() Settings {
	return Settings{MaxConcurrent: DefaultMaxConcurrent}
}

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return domain.Validationf("invalid settings: %v", err)
	}
	return nil
}
