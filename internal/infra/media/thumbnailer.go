package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

var (
	_ adapter.Thumbnailer = (*FFmpegThumbnailer)(nil)
	_ adapter.Thumbnailer = NoopThumbnailer{}
)

var ErrNoFrame = errors.New("no frame extracted")

// runner executes a command and returns its stdout. Swapped in tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(lastLine(stderr.String())))
	}
	return stdout.Bytes(), nil
}

// FFmpegThumbnailer grabs the frame at 0.1s of a remote video as a JPEG data URL.
type FFmpegThumbnailer struct {
	path    string
	timeout time.Duration
	run     runner
	log     *zerolog.Logger
}

func NewFFmpegThumbnailer(ffmpegPath string, timeout time.Duration, logger *zerolog.Logger) *FFmpegThumbnailer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFmpegThumbnailer{path: ffmpegPath, timeout: timeout, run: execRunner, log: logging.Component(logger, "Thumbnailer")}
}

func (f *FFmpegThumbnailer) Thumbnail(ctx context.Context, videoURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", "0.1",
		"-i", videoURL,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "4",
		"pipe:1",
	}
	out, err := f.run(ctx, f.path, args...)
	if err != nil {
		f.log.Debug().Err(err).Str("url", videoURL).Msg("frame extraction failed")
		return "", err
	}
	if len(out) == 0 {
		return "", ErrNoFrame
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out), nil
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpegThumbnailer) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

// NoopThumbnailer never produces a preview.
type NoopThumbnailer struct{}

func (NoopThumbnailer) Thumbnail(ctx context.Context, videoURL string) (string, error) {
	return "", ErrNoFrame
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
