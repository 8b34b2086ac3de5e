package repository

import "context"

// Keys used in the device-local store.
const (
	KeyCredential   = "credential"
	KeySettings     = "settings"
	KeyTasks        = "tasks"
	KeySavedPrompts = "saved_prompts"
	KeyDeviceToken  = "device_token"
	KeyDeviceSecret = "device_secret"
)

// LocalStore is a device-local key-value store holding JSON text.
// Get returns domain.ErrNotFound for a missing key.
type LocalStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
