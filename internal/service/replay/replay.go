package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/KNICEX/listing-agent/internal/service/classifier"
	"github.com/samber/lo"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Record 消息日志中的一行
type Record struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	Date    string `json:"date"`
}

func (r Record) Time() (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(r.Date)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type Result struct {
	Line            int                         `json:"line"`
	Channel         string                      `json:"channel,omitempty"`
	Date            string                      `json:"date,omitempty"`
	Classifications []classifier.Classification `json:"classifications"`
}

type Summary struct {
	Messages   int            `json:"messages"`
	Skipped    int            `json:"skipped"`
	Irrelevant int            `json:"irrelevant"`
	Classified int            `json:"classified"`
	Tokens     int            `json:"tokens"`
	Exchanges  map[string]int `json:"exchanges"`
	Markets    map[string]int `json:"markets"`
}

// Replayer 用分类器重放历史消息, 不写库不通知
type Replayer struct {
	classifier classifier.Classifier
	// 与线上一致, 不提到任何交易所的消息不进入分类器
	exchanges []string
	since     time.Time
}

type Option func(r *Replayer)

// WithSince 只重放该时间之后的消息, 没有日期的消息不受影响
func WithSince(t time.Time) Option {
	return func(r *Replayer) {
		r.since = t
	}
}

func NewReplayer(c classifier.Classifier, exchanges []string, opts ...Option) *Replayer {
	r := &Replayer{classifier: c, exchanges: exchanges}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replay 逐行读取 JSON lines, 只返回识别出上币的行
func (r *Replayer) Replay(ctx context.Context, in io.Reader) (Summary, []Result, error) {
	summary := Summary{Exchanges: map[string]int{}, Markets: map[string]int{}}
	var results []Result

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return summary, results, err
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			slog.Warn("skip malformed replay line", "line", line, "error", err)
			summary.Skipped++
			continue
		}
		if strings.TrimSpace(rec.Text) == "" {
			summary.Skipped++
			continue
		}
		if t, ok := rec.Time(); ok && !r.since.IsZero() && t.Before(r.since) {
			summary.Skipped++
			continue
		}

		summary.Messages++
		text := strings.TrimSpace(rec.Text)
		if !classifier.IsRelevant(text, r.exchanges) {
			summary.Irrelevant++
			continue
		}
		cls, err := r.classifier.Classify(ctx, text)
		if err != nil {
			slog.Error("replay classify failed", "line", line, "error", err)
			continue
		}
		if len(cls) == 0 {
			continue
		}
		summary.Classified++
		for _, cl := range cls {
			summary.Exchanges[cl.Exchange]++
			summary.Markets[cl.Market.ToString()] += len(cl.Tokens)
			summary.Tokens += len(cl.Tokens)
		}
		results = append(results, Result{Line: line, Channel: rec.Channel, Date: rec.Date, Classifications: cls})
	}
	if err := scanner.Err(); err != nil {
		return summary, results, fmt.Errorf("read replay input: %w", err)
	}
	return summary, results, nil
}

// TopExchanges 按识别次数排序的交易所
func (s Summary) TopExchanges() []string {
	names := lo.Keys(s.Exchanges)
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if s.Exchanges[a] != s.Exchanges[b] {
			return s.Exchanges[a] > s.Exchanges[b]
		}
		return a < b
	})
	return names
}
