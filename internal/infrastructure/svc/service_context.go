package svc

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tickfolio/internal/application/port"
	"tickfolio/internal/application/service"
	"tickfolio/internal/application/usecase/pipeline"
	"tickfolio/internal/domain"
	"tickfolio/internal/infrastructure/config"
	"tickfolio/internal/infrastructure/container"
	"tickfolio/internal/infrastructure/pricefeed"
	"tickfolio/internal/infrastructure/quotemeta"
	"tickfolio/internal/infrastructure/retry"
	"tickfolio/internal/interfaces/console"

	// quote feed providers register themselves
	_ "tickfolio/internal/infrastructure/exchange/replay"
	_ "tickfolio/internal/infrastructure/exchange/yahoo"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	container *container.Container
	meta      port.MetaResolver
	feed      port.QuoteFeed

	// 领域对象
	portfolio domain.Portfolio
	valuer    *domain.Valuer

	// 输出端口
	sinks []port.Sink

	console io.Writer
}

type Option func(*ServiceContext)

// WithConsole sends the console sink somewhere other than stdout.
func WithConsole(w io.Writer) Option { return func(sc *ServiceContext) { sc.console = w } }

// WithMetaResolver replaces the resolver chosen by meta.source.
func WithMetaResolver(r port.MetaResolver) Option { return func(sc *ServiceContext) { sc.meta = r } }

// WithFeed replaces the feed chosen by feed.provider.
func WithFeed(f port.QuoteFeed) Option { return func(sc *ServiceContext) { sc.feed = f } }

// New 创建并初始化 ServiceContext：解析元数据、构建组合、行情源和输出端
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:     ctx,
		Config:  cfg,
		console: os.Stdout,
	}
	for _, o := range opts {
		o(sc)
	}

	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化
func (sc *ServiceContext) initializeComponents() error {
	c, err := container.New(sc.Ctx, sc.Config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	sc.container = c

	if err := sc.initPortfolio(); err != nil {
		return err
	}
	if err := sc.initFeed(); err != nil {
		return err
	}
	if err := sc.initSinks(); err != nil {
		return err
	}

	log.Info().
		Str("home", sc.portfolio.Home().String()).
		Int("positions", len(sc.portfolio.Symbols())).
		Str("feed", sc.feed.Name()).
		Int("sinks", len(sc.sinks)).
		Msg("all components initialized")
	return nil
}

func (sc *ServiceContext) initPortfolio() error {
	if sc.meta == nil {
		sc.meta = newMetaResolver(sc.Config)
	}

	symbols := sc.Config.PositionSymbols()
	ctx, cancel := context.WithTimeout(sc.Ctx, time.Duration(sc.Config.Meta.TimeoutSec)*time.Second)
	defer cancel()
	meta, err := sc.meta.Resolve(ctx, symbols)
	if err != nil {
		return fmt.Errorf("resolve quote metadata: %w", err)
	}

	p, err := domain.NewPortfolio(sc.Config.HomeCurrency(), sc.Config.Positions(), meta)
	if err != nil {
		return err
	}
	v, err := domain.NewValuer(p, sc.Config.DomainRates())
	if err != nil {
		return err
	}
	sc.portfolio, sc.valuer = p, v
	return nil
}

func newMetaResolver(cfg *config.Config) port.MetaResolver {
	if cfg.Meta.Source == config.MetaHTTP {
		return quotemeta.NewHTTP(cfg.Meta.URL, time.Duration(cfg.Meta.TimeoutSec)*time.Second)
	}
	entries := make([]domain.QuoteMeta, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		entries = append(entries, domain.QuoteMeta{
			Symbol:   domain.Symbol(s.Symbol),
			Name:     s.Name,
			Currency: domain.Currency(s.Currency),
			Exchange: s.Exchange,
		})
	}
	return quotemeta.NewStatic(entries)
}

func (sc *ServiceContext) initFeed() error {
	if sc.feed != nil {
		return nil
	}
	fc := sc.Config.Feed
	factory, ok := pricefeed.Get(strings.ToLower(fc.Provider))
	if !ok {
		known := pricefeed.Providers()
		sort.Strings(known)
		return fmt.Errorf("%w: %q (have %s)", ErrUnknownProvider, fc.Provider, strings.Join(known, ", "))
	}
	sc.feed = factory(pricefeed.Options{
		URL:            fc.URL,
		DialTimeout:    time.Duration(fc.DialTimeoutSec) * time.Second,
		IdleTimeout:    time.Duration(fc.IdleTimeoutSec) * time.Second,
		PingInterval:   time.Duration(fc.PingIntervalSec) * time.Second,
		BackoffInitial: time.Duration(fc.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(fc.BackoffMaxMs) * time.Millisecond,
		ReplayInterval: time.Duration(fc.ReplayIntervalMs) * time.Millisecond,
	})
	return nil
}

func (sc *ServiceContext) initSinks() error {
	if sc.Config.App.PrintPortfolio {
		sc.sinks = append(sc.sinks, console.NewSink(sc.console))
	}
	for _, ns := range sc.container.Stores() {
		sc.sinks = append(sc.sinks, service.NewMeasurementSink(ns.Name, ns.Store, sc.Config.Sinks.Measurement))
	}
	if len(sc.sinks) == 0 {
		return ErrNoSinks
	}
	return nil
}

// PipelineDeps 构建 pipeline 所需的全部依赖
func (sc *ServiceContext) PipelineDeps() pipeline.Deps {
	s := sc.Config.Sinks
	return pipeline.Deps{
		Feed:         sc.feed,
		Valuer:       sc.valuer,
		Sinks:        sc.Sinks(),
		ChannelDepth: sc.Config.Pipeline.ChannelDepth,
		Producer: pipeline.ProducerConfig{
			BatchWindow: sc.Config.BatchWindow(),
			MaxBatch:    sc.Config.Pipeline.MaxBatch,
		},
		Receiver: pipeline.ReceiverConfig{
			Retry: retry.Config{
				MaxRetries:   s.RetryAttempts,
				InitialDelay: time.Duration(s.RetryInitialMs) * time.Millisecond,
				MaxDelay:     time.Duration(s.RetryMaxMs) * time.Millisecond,
			},
			MaxFailedSnapshots: s.MaxFailedSnapshots,
		},
	}
}

func (sc *ServiceContext) Portfolio() domain.Portfolio { return sc.portfolio }

func (sc *ServiceContext) Feed() port.QuoteFeed { return sc.feed }

func (sc *ServiceContext) Sinks() []port.Sink {
	out := make([]port.Sink, len(sc.sinks))
	copy(out, sc.sinks)
	return out
}

func (sc *ServiceContext) Container() *container.Container { return sc.container }

// Close 关闭 ServiceContext 持有的所有资源，可重复调用
func (sc *ServiceContext) Close() error {
	if sc.container == nil {
		return nil
	}
	return sc.container.Close()
}
