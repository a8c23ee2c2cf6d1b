package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/KNICEX/listing-agent/internal/schedule"
)

var _ schedule.Task = (*Task)(nil)

// Task 重放一个消息日志文件, 结果以 JSON lines 写入 out
type Task struct {
	replayer *Replayer
	path     string
	out      io.Writer
}

func NewTask(replayer *Replayer, path string, out io.Writer) *Task {
	return &Task{
		replayer: replayer,
		path:     path,
		out:      out,
	}
}

func (t *Task) Name() string {
	return "message log replay"
}

func (t *Task) Run(ctx context.Context) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	summary, results, err := t.replayer.Replay(ctx, f)
	if err != nil {
		return err
	}
	if t.out != nil {
		enc := json.NewEncoder(t.out)
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				return err
			}
		}
	}
	slog.Info("replay finished", "file", t.path, "messages", summary.Messages, "skipped", summary.Skipped, "irrelevant", summary.Irrelevant,
		"classified", summary.Classified, "tokens", summary.Tokens, "exchanges", summary.TopExchanges())
	return nil
}
