// Package conf loads the service configuration from YAML and STARTPAGE_*
// environment variables.
package conf

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lk2023060901/startpage-backend/internal/navigation/codec"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
	"github.com/lk2023060901/startpage-backend/internal/pkg/workerpool"
)

const EnvPrefix = "STARTPAGE"

type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Redis      redis.Config      `mapstructure:"redis"`
	Log        logger.Config     `mapstructure:"log"`
	WorkerPool workerpool.Config `mapstructure:"worker_pool"`
	Visitor    VisitorConfig     `mapstructure:"visitor"`
	Search     SearchConfig      `mapstructure:"search"`
	Proxy      ProxyConfig       `mapstructure:"proxy"`
	Analytics  AnalyticsConfig   `mapstructure:"analytics"`
	Turnstile  TurnstileConfig   `mapstructure:"turnstile"`
	Movies     MoviesConfig      `mapstructure:"movies"`
	Admin      AdminConfig       `mapstructure:"admin"`
	Security   SecurityConfig    `mapstructure:"security"`
	Mobile     MobileConfig      `mapstructure:"mobile"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	WebRoot         string        `mapstructure:"web_root"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type VisitorConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	Secure     bool          `mapstructure:"secure"`
}

type SearchConfig struct {
	// DefaultEngine applies to visitors that never chose one. Empty means
	// the built-in default.
	DefaultEngine string `mapstructure:"default_engine"`
}

type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
	Bare    string `mapstructure:"bare"`
	Codec   string `mapstructure:"codec"`
}

type AnalyticsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	EventTTL     time.Duration `mapstructure:"event_ttl"`
	RecentWindow int           `mapstructure:"recent_window"` // sessions sampled for browser/country stats
}

type TurnstileConfig struct {
	SecretKey  string        `mapstructure:"secret_key"`
	VerifyURL  string        `mapstructure:"verify_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type MoviesConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	APIKey        string        `mapstructure:"api_key"`
	ImageBaseURL  string        `mapstructure:"image_base_url"`
	FallbackImage string        `mapstructure:"fallback_image"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AdminConfig struct {
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt, see cmd/hashpass
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type SecurityConfig struct {
	CSP               string          `mapstructure:"csp"`
	CORSOrigins       []string        `mapstructure:"cors_origins"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit"`
	BlockedUserAgents []string        `mapstructure:"blocked_user_agents"`
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	Default int           `mapstructure:"default"`
	// Rules are "prefix:requests" pairs, first matching prefix wins.
	Rules []string `mapstructure:"rules"`
}

// RateRule is one parsed entry of RateLimitConfig.Rules.
type RateRule struct {
	Prefix   string
	Requests int
}

// ParsedRules splits Rules into prefix/limit pairs.
func (r RateLimitConfig) ParsedRules() ([]RateRule, error) {
	out := make([]RateRule, 0, len(r.Rules))
	for _, raw := range r.Rules {
		i := strings.LastIndexByte(raw, ':')
		if i <= 0 {
			return nil, fmt.Errorf("rate limit rule %q: want prefix:requests", raw)
		}
		n, err := strconv.Atoi(raw[i+1:])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("rate limit rule %q: requests must be a positive integer", raw)
		}
		out = append(out, RateRule{Prefix: raw[:i], Requests: n})
	}
	return out, nil
}

type MobileConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	PhonePage    string   `mapstructure:"phone_page"`
	AllowedPaths []string `mapstructure:"allowed_paths"`
}

// DefaultCSP is the policy the start page has always shipped with.
const DefaultCSP = "default-src 'self'; " +
	"connect-src 'self' https://*.cloudflare.com https://*.pages.dev https://api.themoviedb.org https://image.tmdb.org; " +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' https://cdnjs.cloudflare.com https://challenges.cloudflare.com; " +
	"style-src 'self' 'unsafe-inline' https://cdnjs.cloudflare.com; " +
	"img-src 'self' data: https:; " +
	"font-src 'self' https://cdnjs.cloudflare.com; " +
	"frame-src 'self' https:; " +
	"object-src 'none';"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.web_root", "./web")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	rd := redis.DefaultConfig()
	v.SetDefault("redis.mode", string(rd.Mode))
	v.SetDefault("redis.master_addr", rd.MasterAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", rd.DB)
	v.SetDefault("redis.pool_size", rd.PoolSize)
	v.SetDefault("redis.min_idle_conns", rd.MinIdleConns)
	v.SetDefault("redis.dial_timeout", rd.DialTimeout)
	v.SetDefault("redis.read_timeout", rd.ReadTimeout)
	v.SetDefault("redis.write_timeout", rd.WriteTimeout)
	v.SetDefault("redis.pool_timeout", rd.PoolTimeout)
	v.SetDefault("redis.max_retries", rd.MaxRetries)
	v.SetDefault("redis.min_retry_backoff", rd.MinRetryBackoff)
	v.SetDefault("redis.max_retry_backoff", rd.MaxRetryBackoff)
	v.SetDefault("redis.conn_max_idle_time", rd.ConnMaxIdleTime)
	v.SetDefault("redis.read_strategy", string(rd.ReadStrategy))

	lg := logger.DefaultConfig()
	v.SetDefault("log.level", lg.Level)
	v.SetDefault("log.format", lg.Format)
	v.SetDefault("log.output", lg.Output)
	v.SetDefault("log.enable_caller", lg.EnableCaller)
	v.SetDefault("log.enable_stacktrace", lg.EnableStacktrace)
	v.SetDefault("log.file.filename", lg.File.Filename)
	v.SetDefault("log.file.max_size", lg.File.MaxSize)
	v.SetDefault("log.file.max_age", lg.File.MaxAge)
	v.SetDefault("log.file.max_backups", lg.File.MaxBackups)
	v.SetDefault("log.file.compress", lg.File.Compress)

	wp := workerpool.DefaultConfig()
	v.SetDefault("worker_pool.size", wp.Size)
	v.SetDefault("worker_pool.expiry_duration", wp.ExpiryDuration)
	v.SetDefault("worker_pool.nonblocking", wp.Nonblocking)

	v.SetDefault("visitor.cookie_name", "sp_vid")
	v.SetDefault("visitor.max_age", 365*24*time.Hour)
	v.SetDefault("visitor.secure", false)

	v.SetDefault("search.default_engine", "")

	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.prefix", "/active/go/")
	v.SetDefault("proxy.bare", "/bare/")
	v.SetDefault("proxy.codec", "xor")

	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.session_ttl", 30*24*time.Hour)
	v.SetDefault("analytics.event_ttl", 7*24*time.Hour)
	v.SetDefault("analytics.recent_window", 100)

	v.SetDefault("turnstile.secret_key", "")
	v.SetDefault("turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("turnstile.timeout", 10*time.Second)
	v.SetDefault("turnstile.max_retries", 2)

	v.SetDefault("movies.api_url", "https://api.themoviedb.org/3")
	v.SetDefault("movies.api_key", "")
	v.SetDefault("movies.image_base_url", "https://image.tmdb.org/t/p/w500")
	v.SetDefault("movies.fallback_image", "/assets/img/no-poster.png")
	v.SetDefault("movies.cache_ttl", 10*time.Minute)
	v.SetDefault("movies.timeout", 10*time.Second)

	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.jwt_issuer", "startpage")
	v.SetDefault("admin.token_ttl", 12*time.Hour)

	v.SetDefault("security.csp", DefaultCSP)
	v.SetDefault("security.cors_origins", []string{"*"})
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.window", time.Minute)
	v.SetDefault("security.rate_limit.default", 200)
	v.SetDefault("security.rate_limit.rules", []string{"/api/admin/:10", "/api/:100"})
	v.SetDefault("security.blocked_user_agents",
		[]string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python", "php", "java"})

	v.SetDefault("mobile.enabled", true)
	v.SetDefault("mobile.phone_page", "/phone.html")
	v.SetDefault("mobile.allowed_paths", []string{"/phone.html"})
}

// LoadConfig reads path (skipped when empty), overlays STARTPAGE_* env vars
// such as STARTPAGE_SERVER_PORT, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.WorkerPool.Size <= 0 {
		return errors.New("worker_pool.size must be > 0")
	}
	if c.Visitor.CookieName == "" {
		return errors.New("visitor.cookie_name is required")
	}

	if e := c.Search.DefaultEngine; e != "" {
		u, err := url.Parse(e)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("search.default_engine %q must be an http(s) URL", e)
		}
	}

	if _, err := codec.Lookup(c.Proxy.Codec); err != nil {
		return fmt.Errorf("proxy.codec: %w", err)
	}
	if c.Proxy.Enabled && (!strings.HasPrefix(c.Proxy.Prefix, "/") || !strings.HasSuffix(c.Proxy.Prefix, "/")) {
		return fmt.Errorf("proxy.prefix %q must start and end with /", c.Proxy.Prefix)
	}

	if c.Admin.PasswordHash != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required when admin.password_hash is set")
	}
	if c.Admin.TokenTTL <= 0 {
		return errors.New("admin.token_ttl must be > 0")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Window <= 0 || c.Security.RateLimit.Default <= 0 {
			return errors.New("security.rate_limit window and default must be > 0")
		}
		if _, err := c.Security.RateLimit.ParsedRules(); err != nil {
			return err
		}
	}

	if c.Mobile.Enabled && !strings.HasPrefix(c.Mobile.PhonePage, "/") {
		return fmt.Errorf("mobile.phone_page %q must be an absolute path", c.Mobile.PhonePage)
	}
	return nil
}
