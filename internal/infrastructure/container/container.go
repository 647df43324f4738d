package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tickfolio/internal/application/port"
	"tickfolio/internal/infrastructure/config"
	kafkapub "tickfolio/internal/infrastructure/messaging/kafka"
	pgrepo "tickfolio/internal/infrastructure/storage/postgres"
	redisrepo "tickfolio/internal/infrastructure/storage/redis"
	sqliterepo "tickfolio/internal/infrastructure/storage/sqlite"
)

// NamedStore is a measurement store together with the sink name it is exposed under.
type NamedStore struct {
	Name  string
	Store port.MeasurementStore
}

// Container 持有所有存储/消息资源，负责按后进先出顺序关闭
type Container struct {
	cfg         *config.Config
	sqliteRepo  *sqliterepo.Repo
	stores      []NamedStore
	closeOnce   sync.Once
	closerChain []func() error
}

// New opens every enabled store. On failure everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if err := c.initStorage(ctx); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) initStorage(ctx context.Context) error {
	s := c.cfg.Sinks

	if s.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}
	if s.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}
	if s.Redis.Enabled {
		if err := c.initRedis(ctx); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}
	if s.Kafka.Enabled {
		if err := c.initKafka(); err != nil {
			return fmt.Errorf("kafka init failed: %w", err)
		}
	}
	return nil
}

func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Sinks.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo
	c.add("sqlite", repo, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().Str("path", c.cfg.Sinks.SQLite.Path).Msg("sqlite initialized")
	return nil
}

func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Sinks.Postgres.DSN)
	if err != nil {
		return err
	}
	c.add("postgres", repo, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rc := c.cfg.Sinks.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(rc.TTLSeconds) * time.Second
	repo := redisrepo.New(rdb, rc.Prefix, ttl, rc.StreamMaxLen)
	c.add("redis", repo, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().Str("addr", rc.Addr).Int("db", rc.DB).Msg("redis initialized")
	return nil
}

func (c *Container) initKafka() error {
	kc := c.cfg.Sinks.Kafka
	w, err := kafkapub.NewWriter(kafkapub.Config{
		Brokers:      kc.Brokers,
		Topic:        kc.Topic,
		BatchTimeout: time.Duration(kc.BatchTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	pub := kafkapub.NewPublisher(w, kc.Topic)
	c.add("kafka", pub, func() error {
		log.Info().Msg("closing kafka writer")
		return pub.Close()
	})

	log.Info().Strs("brokers", kc.Brokers).Str("topic", kc.Topic).Msg("kafka initialized")
	return nil
}

func (c *Container) add(name string, store port.MeasurementStore, closer func() error) {
	c.stores = append(c.stores, NamedStore{Name: name, Store: store})
	c.closerChain = append(c.closerChain, closer)
}

// Stores returns the opened stores in a fixed order: sqlite, postgres, redis, kafka.
func (c *Container) Stores() []NamedStore {
	out := make([]NamedStore, len(c.stores))
	copy(out, c.stores)
	return out
}

// SQLiteRepo is nil unless the sqlite sink is enabled.
func (c *Container) SQLiteRepo() *sqliterepo.Repo { return c.sqliteRepo }

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
