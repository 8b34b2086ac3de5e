package usecase

import (
	"context"
	"strings"

	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

var imageOutputs = map[string]bool{"png": true, "jpg": true, "jpeg": true, "webp": true, "gif": true}

func isImageOutput(outputType, url string) bool {
	if imageOutputs[strings.ToLower(strings.TrimPrefix(outputType, "."))] {
		return true
	}
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexByte(u, '.'); i >= 0 {
		return imageOutputs[u[i+1:]]
	}
	return false
}

// PreviewDeriver produces the preview shown next to a finished task.
type PreviewDeriver struct {
	thumbs adapter.Thumbnailer
	log    *zerolog.Logger
}

func NewPreviewDeriver(thumbs adapter.Thumbnailer, logger *zerolog.Logger) *PreviewDeriver {
	return &PreviewDeriver{thumbs: thumbs, log: logging.Component(logger, "Preview")}
}

// Derive returns the result itself for images and a frame data URL for
// videos. Failures yield an empty preview.
func (d *PreviewDeriver) Derive(ctx context.Context, kind model.Kind, resultURL, outputType string) string {
	if resultURL == "" {
		return ""
	}
	if kind == model.KindImageToImage || isImageOutput(outputType, resultURL) {
		return resultURL
	}
	if d == nil || d.thumbs == nil {
		return ""
	}
	p, err := d.thumbs.Thumbnail(ctx, resultURL)
	if err != nil {
		d.log.Debug().Err(err).Str("url", resultURL).Msg("no preview")
		return ""
	}
	return p
}
