package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
)

// Client wraps go-redis. Writes always go to the master; reads follow the
// configured ReadStrategy in read-write mode. Failed commands are logged.
type Client struct {
	config *Config
	logger *logger.Logger

	master redis.UniversalClient
	slaves []redis.UniversalClient

	next atomic.Uint32 // round-robin cursor
}

// New connects according to cfg and pings the master before returning.
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: cfg, logger: log}

	var tlsConfig *tls.Config
	if cfg.EnableTLS {
		var err error
		if tlsConfig, err = loadTLSConfig(cfg); err != nil {
			return nil, err
		}
	}

	switch cfg.Mode {
	case ModeSingle:
		c.master = redis.NewClient(nodeOptions(cfg, cfg.MasterAddr, tlsConfig))
	case ModeReadWrite:
		c.master = redis.NewClient(nodeOptions(cfg, cfg.MasterAddr, tlsConfig))
		for _, addr := range cfg.SlaveAddrs {
			c.slaves = append(c.slaves, redis.NewClient(nodeOptions(cfg, addr, tlsConfig)))
		}
	case ModeSentinel:
		c.master = redis.NewFailoverClient(failoverOptions(cfg, tlsConfig))
	case ModeCluster:
		c.master = redis.NewClusterClient(clusterOptions(cfg, tlsConfig))
	default:
		return nil, fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("redis client initialized",
		zap.String("mode", string(cfg.Mode)),
		zap.String("master_addr", cfg.MasterAddr),
		zap.Int("replicas", len(c.slaves)),
	)
	return c, nil
}

// NewFromUniversal wraps an already constructed go-redis client, e.g. one
// pointed at miniredis in tests.
func NewFromUniversal(client redis.UniversalClient, log *logger.Logger) *Client {
	cfg := DefaultConfig()
	return &Client{config: cfg, logger: log, master: client}
}

func nodeOptions(cfg *Config, addr string, tlsConfig *tls.Config) *redis.Options {
	return &redis.Options{
		Addr:            addr,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolTimeout:     cfg.PoolTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
		PoolFIFO:        cfg.PoolFIFO,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		TLSConfig:       tlsConfig,
	}
}

func failoverOptions(cfg *Config, tlsConfig *tls.Config) *redis.FailoverOptions {
	base := nodeOptions(cfg, "", tlsConfig)
	return &redis.FailoverOptions{
		MasterName:      cfg.MasterName,
		SentinelAddrs:   cfg.SentinelAddrs,
		Username:        base.Username,
		Password:        base.Password,
		DB:              base.DB,
		PoolSize:        base.PoolSize,
		MinIdleConns:    base.MinIdleConns,
		DialTimeout:     base.DialTimeout,
		ReadTimeout:     base.ReadTimeout,
		WriteTimeout:    base.WriteTimeout,
		PoolTimeout:     base.PoolTimeout,
		MaxRetries:      base.MaxRetries,
		MinRetryBackoff: base.MinRetryBackoff,
		MaxRetryBackoff: base.MaxRetryBackoff,
		PoolFIFO:        base.PoolFIFO,
		ConnMaxIdleTime: base.ConnMaxIdleTime,
		ConnMaxLifetime: base.ConnMaxLifetime,
		TLSConfig:       tlsConfig,
		RouteByLatency:  cfg.RouteByLatency,
		RouteRandomly:   cfg.RouteRandomly,
	}
}

func clusterOptions(cfg *Config, tlsConfig *tls.Config) *redis.ClusterOptions {
	base := nodeOptions(cfg, "", tlsConfig)
	return &redis.ClusterOptions{
		Addrs:           cfg.ClusterAddrs,
		Username:        base.Username,
		Password:        base.Password,
		PoolSize:        base.PoolSize,
		MinIdleConns:    base.MinIdleConns,
		DialTimeout:     base.DialTimeout,
		ReadTimeout:     base.ReadTimeout,
		WriteTimeout:    base.WriteTimeout,
		PoolTimeout:     base.PoolTimeout,
		MaxRetries:      base.MaxRetries,
		MinRetryBackoff: base.MinRetryBackoff,
		MaxRetryBackoff: base.MaxRetryBackoff,
		PoolFIFO:        base.PoolFIFO,
		ConnMaxIdleTime: base.ConnMaxIdleTime,
		ConnMaxLifetime: base.ConnMaxLifetime,
		TLSConfig:       tlsConfig,
		RouteByLatency:  cfg.RouteByLatency,
		RouteRandomly:   cfg.RouteRandomly,
	}
}

func loadTLSConfig(cfg *Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSSkipVerify,
		ServerName:         cfg.TLSServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert failed: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file failed: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("append CA cert failed")
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// reader returns the node a read command should go to.
func (c *Client) reader() redis.UniversalClient {
	if c.config.Mode != ModeReadWrite || len(c.slaves) == 0 {
		return c.master
	}

	switch c.config.ReadStrategy {
	case ReadFromSlave, ReadFromSlaveFirst:
		return c.slaves[int(c.next.Add(1))%len(c.slaves)]
	case ReadRandom:
		if i := rand.IntN(len(c.slaves) + 1); i < len(c.slaves) {
			return c.slaves[i]
		}
		return c.master
	case ReadRoundRobin:
		i := int(c.next.Add(1)) % (len(c.slaves) + 1)
		if i == len(c.slaves) {
			return c.master
		}
		return c.slaves[i]
	default:
		return c.master
	}
}

// Ping checks the master. Replica failures are logged but not fatal.
func (c *Client) Ping(ctx context.Context) error {
	if c.master == nil {
		return errors.New("redis client not initialized")
	}
	if err := c.master.Ping(ctx).Err(); err != nil {
		c.logger.Error("redis master ping failed", zap.Error(err))
		return err
	}
	for i, s := range c.slaves {
		if err := s.Ping(ctx).Err(); err != nil {
			c.logger.Warn("redis replica ping failed", zap.Int("index", i), zap.Error(err))
		}
	}
	return nil
}

// Close closes every underlying connection pool.
func (c *Client) Close() error {
	var errs []error
	if c.master != nil {
		errs = append(errs, c.master.Close())
	}
	for _, s := range c.slaves {
		errs = append(errs, s.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		c.logger.Error("redis close failed", zap.Error(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// Master exposes the write client for commands not wrapped here.
func (c *Client) Master() redis.UniversalClient {
	return c.master
}
