package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/repo"
	"github.com/KNICEX/listing-agent/internal/service/classifier"
	"github.com/KNICEX/listing-agent/internal/service/exchange"
	"github.com/KNICEX/listing-agent/internal/service/feed"
	"github.com/KNICEX/listing-agent/internal/service/notification"
	"github.com/KNICEX/listing-agent/internal/service/subscription"
	"github.com/shopspring/decimal"
)

// NameSource 相关性过滤使用的交易所名称, 每条消息读取一次
type NameSource interface {
	Names(ctx context.Context) ([]string, error)
}

type Message struct {
	Channel    string
	Text       string
	ReceivedAt time.Time
}

var _ subscription.Processor = (*Pipeline)(nil)

type Pipeline struct {
	classifier classifier.Classifier
	names      NameSource
	repo       repo.ListingRepo

	notifier     notification.Notifier
	priceProbe   exchange.PriceProbe
	priceTimeout time.Duration
	now          func() time.Time
}

type Option func(p *Pipeline)

func WithNotifier(n notification.Notifier) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithPriceProbe 保存前记录代币当前价格, 查询失败不影响保存
func WithPriceProbe(probe exchange.PriceProbe) Option {
	return func(p *Pipeline) {
		p.priceProbe = probe
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func NewPipeline(c classifier.Classifier, names NameSource, listingRepo repo.ListingRepo, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier:   c,
		names:        names,
		repo:         listingRepo,
		notifier:     notification.Log(),
		priceTimeout: 3 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Process(ctx context.Context, channel string, evt feed.Event) error {
	_, err := p.OnMessage(ctx, Message{Channel: channel, Text: evt.Text, ReceivedAt: evt.ReceivedAt})
	return err
}

// OnMessage 返回保存成功的记录. 单条记录的校验或保存失败只记录日志,
// 返回的错误仅表示 ctx 已结束
func (p *Pipeline) OnMessage(ctx context.Context, msg Message) ([]entity.Listing, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, nil
	}

	names, err := p.names.Names(ctx)
	if err != nil {
		slog.Error("load exchange names failed", "error", err)
		return nil, nil
	}
	if !classifier.IsRelevant(msg.Text, names) {
		return nil, nil
	}

	classifications, err := p.classifier.Classify(ctx, msg.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("classify message failed", "channel", msg.Channel, "error", err)
		return nil, nil
	}
	if len(classifications) == 0 {
		slog.Debug("message is not a listing", "channel", msg.Channel)
		return nil, nil
	}

	var saved []entity.Listing
	for _, cl := range classifications {
		for _, token := range cl.Tokens {
			if ctx.Err() != nil {
				return saved, ctx.Err()
			}
			record, err := p.build(ctx, msg, cl, token)
			if err != nil {
				slog.Warn("drop listing record", "channel", msg.Channel, "exchange", cl.Exchange,
					"token", token, "error", err)
				continue
			}
			record, err = p.repo.Create(ctx, record)
			if err != nil {
				slog.Error("save listing failed", "exchange", record.Exchange, "token", record.Token, "error", err)
				continue
			}
			slog.Info("listing saved", "id", record.Id, "token", record.Token, "exchange", record.Exchange,
				"market", record.Market, "strategy", record.Strategy)
			saved = append(saved, record)

			if err := p.notifier.Notify(ctx, record); err != nil {
				slog.Error("notify listing failed", "id", record.Id, "error", err)
			}
		}
	}
	return saved, nil
}

func (p *Pipeline) build(ctx context.Context, msg Message, cl classifier.Classification, token string) (entity.Listing, error) {
	token = strings.TrimSpace(token)
	name := strings.TrimSpace(cl.Exchange)
	if token == "" || name == "" {
		return entity.Listing{}, fmt.Errorf("%w: token and exchange are required", classifier.ErrInvalidRecord)
	}
	market := cl.Market
	if market == "" {
		market = exchange.MarketUnknown
	}
	return entity.Listing{
		Token:         token,
		Exchange:      name,
		Market:        market.ToString(),
		Channel:       msg.Channel,
		Strategy:      cl.Strategy,
		PriceUSDT:     p.price(ctx, token, market),
		SourceMessage: msg.Text,
		ObservedAt:    p.now().UTC(),
	}, nil
}

func (p *Pipeline) price(ctx context.Context, token string, market exchange.Market) decimal.NullDecimal {
	if p.priceProbe == nil {
		return decimal.NullDecimal{}
	}
	ctx, cancel := context.WithTimeout(ctx, p.priceTimeout)
	defer cancel()
	price, err := p.priceProbe.PriceUSDT(ctx, token, market)
	if err != nil {
		if !errors.Is(err, exchange.ErrSymbolNotFound) {
			slog.Debug("price snapshot failed", "token", token, "error", err)
		}
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price)
}
