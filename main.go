package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KNICEX/listing-agent/internal/repo"
	"github.com/KNICEX/listing-agent/internal/service/classifier"
	"github.com/KNICEX/listing-agent/internal/service/listing"
	"github.com/KNICEX/listing-agent/internal/service/notification"
	"github.com/KNICEX/listing-agent/internal/service/notification/ws"
	"github.com/KNICEX/listing-agent/internal/service/replay"
	"github.com/KNICEX/listing-agent/internal/service/subscription"
	"github.com/KNICEX/listing-agent/internal/web"
	"github.com/KNICEX/listing-agent/ioc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	replayFile string
	since      string
}

func initViper() flags {
	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.dev.yaml", "specify config file")
	replayFile := pflag.String("replay", "", "classify a JSON lines message log and exit")
	since := pflag.String("since", "", "with --replay, skip messages before this date (2006-01-02)")
	pflag.Parse()

	viper.SetConfigFile(*file)
	viper.SetEnvPrefix("LISTING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
	return flags{replayFile: *replayFile, since: *since}
}

func main() {
	f := initViper()
	ioc.InitLogger()

	ruleClassifier := ioc.InitRuleClassifier()
	var generative *classifier.GenerativeClassifier
	if ioc.ClassifierNeedsLLM() {
		llmSvc := ioc.InitLLMService(ioc.InitGeminiCli())
		generative = classifier.NewGenerativeClassifier(llmSvc, ruleClassifier.Exchanges())
	}
	cls := ioc.InitClassifier(ruleClassifier, generative)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.replayFile != "" {
		if err := runReplay(ctx, cls, ruleClassifier.Exchanges(), f); err != nil {
			slog.Error("replay failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cls, ruleClassifier.Exchanges()); err != nil {
		slog.Error("listing agent exited", "error", err)
		os.Exit(1)
	}
}

func runReplay(ctx context.Context, cls classifier.Classifier, exchanges []string, f flags) error {
	var opts []replay.Option
	if f.since != "" {
		since, err := time.Parse(time.DateOnly, f.since)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		opts = append(opts, replay.WithSince(since))
	}
	return replay.NewTask(replay.NewReplayer(cls, exchanges, opts...), f.replayFile, os.Stdout).Run(ctx)
}

func run(ctx context.Context, cls classifier.Classifier, knownExchanges []string) error {
	db := ioc.InitDB()
	channelRepo := repo.NewChannelRepo(db)
	exchangeRepo := repo.NewExchangeRepo(db)
	listingRepo := repo.NewListingRepo(db)
	if err := seed(ctx, channelRepo, exchangeRepo, knownExchanges); err != nil {
		return err
	}

	hub := ws.NewHub()
	notifiers := []notification.Notifier{notification.Log(), hub}
	if rn := ioc.InitRedisNotifier(); rn != nil {
		notifiers = append(notifiers, rn)
	}
	pipelineOpts := []listing.Option{listing.WithNotifier(notification.Multi(notifiers...))}
	if probe := ioc.InitPriceProbe(); probe != nil {
		pipelineOpts = append(pipelineOpts, listing.WithPriceProbe(probe))
	}
	pipeline := listing.NewPipeline(cls, exchangeRepo, listingRepo, pipelineOpts...)

	transport := ioc.InitFeed()
	manager := subscription.NewManager(transport, channelRepo, pipeline, ioc.InitSubscriptionOptions()...)
	lifecycle := subscription.NewLifecycle()
	listener := subscription.NewListener(transport, manager, lifecycle)

	router := web.NewHandler(channelRepo, exchangeRepo, listingRepo, lifecycle, manager).Router()
	router.Handle("/ws", hub)
	srv := ioc.InitHTTPServer(router)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("task started", "task", listener.Name())
		return listener.Run(ctx)
	})
	eg.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = listener.Stop(shutdownCtx)
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// seed 写入配置中的初始频道与交易所, 交易所表为空且未配置时使用内置规则的交易所
func seed(ctx context.Context, channels repo.ChannelRepo, exchanges repo.ExchangeRepo, knownExchanges []string) error {
	for _, name := range viper.GetStringSlice("seed.channels") {
		if _, err := channels.CreateOrGet(ctx, name); err != nil {
			return fmt.Errorf("seed channel %s: %w", name, err)
		}
	}

	names := viper.GetStringSlice("seed.exchanges")
	if len(names) == 0 {
		existing, err := exchanges.Names(ctx)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			names = knownExchanges
		}
	}
	for _, name := range names {
		if _, err := exchanges.CreateOrGet(ctx, name); err != nil {
			return fmt.Errorf("seed exchange %s: %w", name, err)
		}
	}
	return nil
}
