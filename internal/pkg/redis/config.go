package redis

import (
	"errors"
	"time"
)

// DeployMode selects how the client connects.
type DeployMode string

const (
	ModeSingle    DeployMode = "single"
	ModeSentinel  DeployMode = "sentinel"
	ModeCluster   DeployMode = "cluster"
	ModeReadWrite DeployMode = "read-write" // one master, N replicas, reads split by ReadStrategy
)

// ReadStrategy picks the node for read commands in read-write mode.
type ReadStrategy string

const (
	ReadFromMaster     ReadStrategy = "master"
	ReadFromSlave      ReadStrategy = "slave"
	ReadFromSlaveFirst ReadStrategy = "slave-first"
	ReadRandom         ReadStrategy = "random"
	ReadRoundRobin     ReadStrategy = "round-robin"
)

// Config describes the redis deployment backing visitor state and analytics.
type Config struct {
	Mode DeployMode `mapstructure:"mode" yaml:"mode"`

	MasterAddr string   `mapstructure:"master_addr" yaml:"master_addr"`
	SlaveAddrs []string `mapstructure:"slave_addrs" yaml:"slave_addrs"`

	SentinelAddrs  []string `mapstructure:"sentinel_addrs" yaml:"sentinel_addrs"`
	MasterName     string   `mapstructure:"master_name" yaml:"master_name"`
	RouteByLatency bool     `mapstructure:"route_by_latency" yaml:"route_by_latency"`
	RouteRandomly  bool     `mapstructure:"route_randomly" yaml:"route_randomly"`

	ClusterAddrs []string `mapstructure:"cluster_addrs" yaml:"cluster_addrs"`

	ReadStrategy ReadStrategy `mapstructure:"read_strategy" yaml:"read_strategy"`

	Username string `mapstructure:"username" yaml:"username"` // redis 6 ACL
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`

	PoolSize     int `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout" yaml:"pool_timeout"`

	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff" yaml:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff" yaml:"max_retry_backoff"`

	PoolFIFO        bool          `mapstructure:"pool_fifo" yaml:"pool_fifo"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`

	EnableTLS     bool   `mapstructure:"enable_tls" yaml:"enable_tls"`
	TLSCertFile   string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file" yaml:"tls_key_file"`
	TLSCAFile     string `mapstructure:"tls_ca_file" yaml:"tls_ca_file"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
	TLSServerName string `mapstructure:"tls_server_name" yaml:"tls_server_name"`
}

// DefaultConfig returns a single-node config pointing at localhost.
func DefaultConfig() *Config {
	return &Config{
		Mode:       ModeSingle,
		MasterAddr: "localhost:6379",

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,

		ConnMaxIdleTime: 5 * time.Minute,

		ReadStrategy: ReadFromMaster,
	}
}

// Validate checks mode-specific addresses and pool/timeout sanity.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSingle:
		if c.MasterAddr == "" {
			return errors.New("redis: master_addr is required in single mode")
		}
	case ModeSentinel:
		if len(c.SentinelAddrs) == 0 {
			return errors.New("redis: sentinel_addrs is required in sentinel mode")
		}
		if c.MasterName == "" {
			return errors.New("redis: master_name is required in sentinel mode")
		}
	case ModeCluster:
		if len(c.ClusterAddrs) == 0 {
			return errors.New("redis: cluster_addrs is required in cluster mode")
		}
	case ModeReadWrite:
		if c.MasterAddr == "" {
			return errors.New("redis: master_addr is required in read-write mode")
		}
		if len(c.SlaveAddrs) == 0 {
			return errors.New("redis: slave_addrs is required in read-write mode")
		}
		switch c.ReadStrategy {
		case ReadFromMaster, ReadFromSlave, ReadFromSlaveFirst, ReadRandom, ReadRoundRobin:
		default:
			return errors.New("redis: invalid read_strategy, must be one of: master, slave, slave-first, random, round-robin")
		}
	default:
		return errors.New("redis: invalid mode, must be one of: single, sentinel, cluster, read-write")
	}

	switch {
	case c.DB < 0 || c.DB > 15:
		return errors.New("redis: db must be between 0 and 15")
	case c.PoolSize <= 0:
		return errors.New("redis: pool_size must be > 0")
	case c.MinIdleConns < 0 || c.MinIdleConns > c.PoolSize:
		return errors.New("redis: min_idle_conns must be between 0 and pool_size")
	case c.DialTimeout <= 0:
		return errors.New("redis: dial_timeout must be > 0")
	case c.PoolTimeout <= 0:
		return errors.New("redis: pool_timeout must be > 0")
	case c.ReadTimeout < 0 || c.WriteTimeout < 0:
		return errors.New("redis: read_timeout and write_timeout must be >= 0")
	case c.MaxRetries < 0:
		return errors.New("redis: max_retries must be >= 0")
	case c.MinRetryBackoff > c.MaxRetryBackoff:
		return errors.New("redis: min_retry_backoff cannot exceed max_retry_backoff")
	}

	if c.EnableTLS && c.TLSCertFile == "" && c.TLSCAFile == "" && !c.TLSSkipVerify {
		return errors.New("redis: TLS enabled but no certificate files provided and TLS verification not skipped")
	}
	return nil
}
