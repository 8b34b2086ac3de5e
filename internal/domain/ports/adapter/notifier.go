package adapter

import "context"

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient user-facing message.
type Notice struct {
	TaskID string
	Level  NoticeLevel
	Text   string
}

// Notifier delivers notices. Delivery failures never affect task state.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Thumbnailer renders a preview image for a video result as a data URL.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, videoURL string) (string, error)
}
