//go:build !integration

package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestThumbnailDataURL(t *testing.T) {
	f := NewFFmpegThumbnailer("", time.Second, nil)
	var gotArgs []string
	f.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffmpeg" {
			t.Errorf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte{0xff, 0xd8, 0xff}, nil
	}

	u, err := f.Thumbnail(context.Background(), "https://r/v.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if u != "data:image/jpeg;base64,/9j/" {
		t.Errorf("unexpected data url %q", u)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "-ss 0.1 -i https://r/v.mp4") || !strings.HasSuffix(joined, "pipe:1") {
		t.Errorf("unexpected args %q", joined)
	}
}

func TestThumbnailFailures(t *testing.T) {
	f := NewFFmpegThumbnailer("ffmpeg", time.Second, nil)
	f.run = func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, nil }
	if _, err := f.Thumbnail(context.Background(), "u"); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame, got %v", err)
	}

	boom := errors.New("exit 1")
	f.run = func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, boom }
	if _, err := f.Thumbnail(context.Background(), "u"); !errors.Is(err, boom) {
		t.Errorf("expected runner error, got %v", err)
	}

	if _, err := (NoopThumbnailer{}).Thumbnail(context.Background(), "u"); err == nil {
		t.Error("noop thumbnailer should report no frame")
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine("a\nb\nlast\n"); got != "last" {
		t.Errorf("got %q", got)
	}
}
