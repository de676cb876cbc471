package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	defaultSyncInterval      = 5 * time.Minute
	defaultStatePath         = "ddnssync.db"
	defaultListenAddr        = ":9090"
	defaultLogLevel          = "info"
	defaultLogEnv            = "prod"
	defaultMaxLogs           = 50
	defaultTTL               = 60
	defaultRateLimit         = 4
	defaultRequestTimeout    = 30 * time.Second
	defaultResolverEndpoint  = "https://cloudflare-dns.com/dns-query"
	defaultResolverTimeout   = 10 * time.Second
	defaultProviderAPIPrefix = "https://api.cloudflare.com/client/v4"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	SyncInterval time.Duration `yaml:"syncInterval"`
	StatePath    string        `yaml:"statePath"`
	ListenAddr   string        `yaml:"listenAddr"`
	MaxLogs      int           `yaml:"maxLogs"`
	Log          Log           `yaml:"log"`
	DNS          DNS           `yaml:"dns"`
	Resolver     Resolver      `yaml:"resolver"`
	Reconcile    Reconcile     `yaml:"reconcile"`
	Domains      []Domain      `yaml:"domains"`
}

type DNS struct {
	Token          string        `yaml:"token"`
	APIURL         string        `yaml:"apiUrl"`
	RateLimit      float64       `yaml:"rateLimit"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type Resolver struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type Reconcile struct {
	DryRun                 bool `yaml:"dryRun"`
	DeleteOnResolveFailure bool `yaml:"deleteOnResolveFailure"`
}

// Domain is one managed record: the addresses of Targets are published
// under RecordName.
type Domain struct {
	ID         string   `yaml:"id" json:"id"`
	RecordName string   `yaml:"recordName" json:"record_name"`
	Targets    []string `yaml:"targets" json:"targets"`
	Proxied    bool     `yaml:"proxied" json:"proxied"`
	TTL        int      `yaml:"ttl" json:"ttl"`
	EnableIPv4 *bool    `yaml:"ipv4" json:"enable_ipv4"`
	EnableIPv6 *bool    `yaml:"ipv6" json:"enable_ipv6"`
}

// IPv4 reports whether A records are managed. Domains that set neither
// family manage A records only.
func (d Domain) IPv4() bool {
	if d.EnableIPv4 == nil {
		return d.EnableIPv6 == nil || !*d.EnableIPv6
	}
	return *d.EnableIPv4
}

func (d Domain) IPv6() bool {
	return d.EnableIPv6 != nil && *d.EnableIPv6
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			f.Close()
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = defaultSyncInterval
	}
	if cfg.StatePath == "" {
		cfg.StatePath = defaultStatePath
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = defaultMaxLogs
	}

	// Set log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}

	if cfg.DNS.APIURL == "" {
		cfg.DNS.APIURL = defaultProviderAPIPrefix
	}
	if cfg.DNS.RateLimit <= 0 {
		cfg.DNS.RateLimit = defaultRateLimit
	}
	if cfg.DNS.RequestTimeout <= 0 {
		cfg.DNS.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Resolver.Endpoint == "" {
		cfg.Resolver.Endpoint = defaultResolverEndpoint
	}
	if cfg.Resolver.Timeout <= 0 {
		cfg.Resolver.Timeout = defaultResolverTimeout
	}

	for i := range cfg.Domains {
		d := &cfg.Domains[i]
		d.RecordName = strings.TrimSuffix(strings.TrimSpace(d.RecordName), ".")
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.TTL == 0 {
			d.TTL = defaultTTL
		}
	}
}

// Override from environment if set
func applyEnv(cfg *Config) {
	if token := os.Getenv("DDNS_SYNC_CLOUDFLARE_TOKEN"); token != "" {
		cfg.DNS.Token = token
	}
	if syncInterval := os.Getenv("DDNS_SYNC_INTERVAL"); syncInterval != "" {
		if interval, err := time.ParseDuration(syncInterval); err == nil {
			cfg.SyncInterval = interval
		} else {
			slog.Default().Warn("fail parse sync interval to duration from string", "interval", syncInterval, "error", err)
		}
	}
	if statePath := os.Getenv("DDNS_SYNC_STATE_PATH"); statePath != "" {
		cfg.StatePath = statePath
	}
	if listen := os.Getenv("DDNS_SYNC_LISTEN_ADDR"); listen != "" {
		cfg.ListenAddr = listen
	}
	if endpoint := os.Getenv("DDNS_SYNC_RESOLVER_ENDPOINT"); endpoint != "" {
		cfg.Resolver.Endpoint = endpoint
	}
	if maxLogs := os.Getenv("DDNS_SYNC_MAX_LOGS"); maxLogs != "" {
		if n, err := strconv.Atoi(maxLogs); err == nil {
			cfg.MaxLogs = n
		} else {
			slog.Default().Warn("fail parse max logs to int from string", "maxLogs", maxLogs, "error", err)
		}
	}
	if dryRun := os.Getenv("DDNS_SYNC_DRYRUN"); dryRun != "" {
		switch strings.ToLower(dryRun) {
		case "true":
			cfg.Reconcile.DryRun = true
		case "false":
			cfg.Reconcile.DryRun = false
		default:
			slog.Default().Warn("fail parse dryrun to bool from string", "dryrun", dryRun)
		}
	}
	if loglevel := os.Getenv("DDNS_SYNC_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("DDNS_SYNC_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
}

// Validate checks the domain list. A domain without targets is allowed and
// reported as a warning at sync time.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Domains))
	for i, d := range c.Domains {
		if d.RecordName == "" {
			return fmt.Errorf("%w: domain %d has empty recordName", ErrInvalid, i)
		}
		if !strings.Contains(d.RecordName, ".") {
			return fmt.Errorf("%w: domain %q is not a dot-separated name", ErrInvalid, d.RecordName)
		}
		if d.TTL < 0 {
			return fmt.Errorf("%w: domain %q has negative ttl %d", ErrInvalid, d.RecordName, d.TTL)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate domain id %q", ErrInvalid, d.ID)
		}
		seen[d.ID] = true
		if len(d.Targets) == 0 {
			slog.Default().Warn("domain has no targets", "record", d.RecordName)
		}
	}
	return nil
}
