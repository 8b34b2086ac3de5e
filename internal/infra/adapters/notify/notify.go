package notify

import (
	"context"

	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"

	"github.com/rs/zerolog"
)

var (
	_ adapter.Notifier = (*LogNotifier)(nil)
	_ adapter.Notifier = Fanout(nil)
)

// LogNotifier writes notices to the structured log.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logging.Component(logger, "Notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notice adapter.Notice) error {
	ev := n.log.Info()
	if notice.Level == adapter.NoticeError {
		ev = n.log.Warn()
	}
	ev.Str("task_id", notice.TaskID).Str("notice", string(notice.Level)).Msg(notice.Text)
	return nil
}

// Fanout delivers to every notifier and reports the first failure.
type Fanout []adapter.Notifier

func (f Fanout) Notify(ctx context.Context, notice adapter.Notice) error {
	var first error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, notice); err != nil && first == nil {
			first = err
		}
	}
	return first
}
