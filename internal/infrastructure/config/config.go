package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tickfolio/internal/domain"
)

// ErrInvalid wraps every validation failure of a loaded config.
var ErrInvalid = fmt.Errorf("%w: config", domain.ErrInvalidConfig)

const (
	MetaStatic = "static"
	MetaHTTP   = "http"
)

type Config struct {
	App struct {
		PrintPortfolio bool `toml:"print_portfolio"`
	} `toml:"app"`

	Log Log `toml:"log"`

	Portfolio struct {
		HomeCurrency string     `toml:"home_currency"`
		Positions    []Position `toml:"positions"`
	} `toml:"portfolio"`

	// Rates: units of home currency bought by one unit of the keyed currency.
	Rates map[string]float64 `toml:"rates"`

	Symbols []SymbolMeta `toml:"symbols"`

	Meta struct {
		Source     string `toml:"source"`
		URL        string `toml:"url"`
		TimeoutSec int    `toml:"timeout_sec"`
	} `toml:"meta"`

	Feed Feed `toml:"feed"`

	Pipeline struct {
		ChannelDepth  int `toml:"channel_depth"`
		BatchWindowMs int `toml:"batch_window_ms"`
		MaxBatch      int `toml:"max_batch"`
	} `toml:"pipeline"`

	Sinks Sinks `toml:"sinks"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console | json
	Output string `toml:"output"` // stdout | stderr
}

type Position struct {
	Symbol   string  `toml:"symbol"`
	Quantity float64 `toml:"quantity"`
}

type SymbolMeta struct {
	Symbol   string `toml:"symbol"`
	Name     string `toml:"name"`
	Currency string `toml:"currency"`
	Exchange string `toml:"exchange"`
}

type Feed struct {
	Provider         string `toml:"provider"` // yahoo | replay
	URL              string `toml:"url"`      // ws url, or frames file for replay
	DialTimeoutSec   int    `toml:"dial_timeout_sec"`
	IdleTimeoutSec   int    `toml:"idle_timeout_sec"`
	PingIntervalSec  int    `toml:"ping_interval_sec"`
	BackoffInitialMs int    `toml:"backoff_initial_ms"`
	BackoffMaxMs     int    `toml:"backoff_max_ms"`
	ReplayIntervalMs int    `toml:"replay_interval_ms"`
}

type Sinks struct {
	// MaxFailedSnapshots: consecutive snapshots every sink failed on before
	// the process stops. 0 never stops.
	MaxFailedSnapshots int    `toml:"max_failed_snapshots"`
	// RetryAttempts: extra attempts per sink after the first. 0 disables retries.
	RetryAttempts      int    `toml:"retry_attempts"`
	RetryInitialMs     int    `toml:"retry_initial_ms"`
	RetryMaxMs         int    `toml:"retry_max_ms"`
	Measurement        string `toml:"measurement"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Redis struct {
		Enabled      bool   `toml:"enabled"`
		Addr         string `toml:"addr"`
		Password     string `toml:"password"`
		DB           int    `toml:"db"`
		Prefix       string `toml:"prefix"`
		TTLSeconds   int    `toml:"ttl_seconds"`
		StreamMaxLen int64  `toml:"stream_max_len"`
	} `toml:"redis"`

	Kafka struct {
		Enabled        bool     `toml:"enabled"`
		Brokers        []string `toml:"brokers"`
		Topic          string   `toml:"topic"`
		BatchTimeoutMs int      `toml:"batch_timeout_ms"`
	} `toml:"kafka"`
}

func Load(path string) (*Config, error) {
	cfg := base()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is used when no config file is given: EUR home currency, live
// Yahoo feed and metadata, console output only.
func Default() *Config {
	cfg := base()
	cfg.Portfolio.HomeCurrency = "EUR"
	cfg.Portfolio.Positions = []Position{
		{"BTC-USD", 10},
		{"AETH-USD.SW", 450},
		{"AMZN", 1},
		{"DE000A27Z304.SG", 500},
		{"CSNDX.SW", 10},
		{"EXS2.DE", 10},
		{"IBCL.DE", 10},
		{"ITEK.MI", 2000},
		{"IUIT.SW", 2000},
		{"IUSE.SW", 100},
		{"MSFT", 25},
		{"TSM", 100},
		{"XDWT.DE", 1000},
	}
	cfg.Rates = map[string]float64{
		"USD": 0.92,
		"CHF": 1.04,
		"GBP": 1.17,
		"JPY": 0.0062,
		"CAD": 0.68,
		"AUD": 0.61,
		"SEK": 0.087,
	}
	cfg.Meta.Source = MetaHTTP
	cfg.Feed.Provider = "yahoo"
	applyDefaults(&cfg)
	return &cfg
}

// base holds the defaults whose zero value is meaningful, so a file can still
// set them to zero explicitly.
func base() Config {
	var cfg Config
	cfg.App.PrintPortfolio = true
	cfg.Pipeline.BatchWindowMs = 50
	cfg.Sinks.MaxFailedSnapshots = 30
	cfg.Sinks.RetryAttempts = 3
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Portfolio.HomeCurrency == "" {
		cfg.Portfolio.HomeCurrency = "EUR"
	}

	if cfg.Meta.Source == "" {
		cfg.Meta.Source = MetaStatic
	}
	if cfg.Meta.Source == MetaHTTP && cfg.Meta.URL == "" {
		cfg.Meta.URL = "https://query1.finance.yahoo.com/v7/finance/quote"
	}
	if cfg.Meta.TimeoutSec <= 0 {
		cfg.Meta.TimeoutSec = 10
	}

	if cfg.Feed.Provider == "" {
		cfg.Feed.Provider = "yahoo"
	}
	if cfg.Feed.Provider == "yahoo" && cfg.Feed.URL == "" {
		cfg.Feed.URL = "wss://streamer.finance.yahoo.com/"
	}

	if cfg.Pipeline.ChannelDepth <= 0 {
		cfg.Pipeline.ChannelDepth = 32
	}
	if cfg.Pipeline.MaxBatch <= 0 {
		cfg.Pipeline.MaxBatch = 64
	}

	if cfg.Sinks.RetryInitialMs <= 0 {
		cfg.Sinks.RetryInitialMs = 200
	}
	if cfg.Sinks.RetryMaxMs <= 0 {
		cfg.Sinks.RetryMaxMs = 2000
	}
	if cfg.Sinks.Measurement == "" {
		cfg.Sinks.Measurement = "portfolio"
	}
	if cfg.Sinks.SQLite.Path == "" {
		cfg.Sinks.SQLite.Path = "data/tickfolio.db"
	}
	if cfg.Sinks.Redis.Addr == "" {
		cfg.Sinks.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Sinks.Redis.Prefix == "" {
		cfg.Sinks.Redis.Prefix = "tickfolio"
	}
}

func validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	cfg.Portfolio.HomeCurrency = strings.ToUpper(strings.TrimSpace(cfg.Portfolio.HomeCurrency))
	if _, err := domain.ParseCurrency(cfg.Portfolio.HomeCurrency); err != nil {
		fail("portfolio.home_currency %q unsupported", cfg.Portfolio.HomeCurrency)
	}

	seen := map[string]struct{}{}
	for i := range cfg.Portfolio.Positions {
		p := &cfg.Portfolio.Positions[i]
		p.Symbol = string(domain.NormalizeSymbol(p.Symbol))
		if p.Symbol == "" {
			fail("portfolio.positions[%d] has no symbol", i)
			continue
		}
		if _, dup := seen[p.Symbol]; dup {
			fail("portfolio.positions: %s listed twice", p.Symbol)
		}
		seen[p.Symbol] = struct{}{}
	}
	if len(cfg.Portfolio.Positions) == 0 {
		fail("portfolio.positions is empty")
	}

	rates := make(map[string]float64, len(cfg.Rates))
	for c, r := range cfg.Rates {
		u := strings.ToUpper(strings.TrimSpace(c))
		if _, err := domain.ParseCurrency(u); err != nil {
			fail("rates.%s unsupported currency", c)
			continue
		}
		rates[u] = r
	}
	cfg.Rates = rates

	for i := range cfg.Symbols {
		s := &cfg.Symbols[i]
		s.Symbol = string(domain.NormalizeSymbol(s.Symbol))
		s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
		if s.Symbol == "" {
			fail("symbols[%d] has no symbol", i)
		}
	}

	switch cfg.Meta.Source {
	case MetaStatic:
		if len(cfg.Symbols) == 0 {
			fail("meta.source=static needs [[symbols]]")
		}
	case MetaHTTP:
	default:
		fail("meta.source %q (want %s or %s)", cfg.Meta.Source, MetaStatic, MetaHTTP)
	}

	if strings.TrimSpace(cfg.Feed.URL) == "" {
		fail("feed.url empty for provider %s", cfg.Feed.Provider)
	}

	if cfg.Pipeline.BatchWindowMs < 0 {
		fail("pipeline.batch_window_ms must be >= 0")
	}
	if cfg.Sinks.MaxFailedSnapshots < 0 {
		fail("sinks.max_failed_snapshots must be >= 0")
	}
	if cfg.Sinks.RetryAttempts < 0 {
		fail("sinks.retry_attempts must be >= 0")
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		fail("log.format %q", cfg.Log.Format)
	}
	switch cfg.Log.Output {
	case "stdout", "stderr":
	default:
		fail("log.output %q", cfg.Log.Output)
	}

	s := &cfg.Sinks
	if s.Postgres.Enabled && strings.TrimSpace(s.Postgres.DSN) == "" {
		fail("sinks.postgres.dsn empty but enabled")
	}
	if s.Kafka.Enabled && (len(s.Kafka.Brokers) == 0 || strings.TrimSpace(s.Kafka.Topic) == "") {
		fail("sinks.kafka needs brokers and topic")
	}
	if !cfg.App.PrintPortfolio && !s.SQLite.Enabled && !s.Postgres.Enabled && !s.Redis.Enabled && !s.Kafka.Enabled {
		fail("no sink enabled")
	}

	return errors.Join(errs...)
}

// PositionSymbols returns the normalized portfolio symbols in configuration order.
func (c *Config) PositionSymbols() []domain.Symbol {
	out := make([]domain.Symbol, len(c.Portfolio.Positions))
	for i, p := range c.Portfolio.Positions {
		out[i] = domain.Symbol(p.Symbol)
	}
	return out
}

func (c *Config) Positions() []domain.Position {
	out := make([]domain.Position, len(c.Portfolio.Positions))
	for i, p := range c.Portfolio.Positions {
		out[i] = domain.Position{Symbol: domain.Symbol(p.Symbol), Quantity: p.Quantity}
	}
	return out
}

// DomainRates converts the [rates] table. Keys were checked by validate.
func (c *Config) DomainRates() domain.Rates {
	out := make(domain.Rates, len(c.Rates))
	for k, v := range c.Rates {
		out[domain.Currency(k)] = v
	}
	return out
}

func (c *Config) HomeCurrency() domain.Currency {
	return domain.Currency(c.Portfolio.HomeCurrency)
}

func (c *Config) BatchWindow() time.Duration {
	return time.Duration(c.Pipeline.BatchWindowMs) * time.Millisecond
}
