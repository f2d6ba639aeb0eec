package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// DefaultMaxURISize bounds the request line, which carries whole data: URIs.
const DefaultMaxURISize = 64 << 10

// DefaultRPCEndpoints mirrors the public endpoints the gateway shipped with.
const DefaultRPCEndpoints = "1=https://cloudflare-eth.com/v1/mainnet," +
	"5=https://cloudflare-eth.com/v1/goerli," +
	"11155111=https://cloudflare-eth.com/v1/sepolia," +
	"100=https://xdai-archive.blockscout.com"

type Config struct {
	Port            string
	Environment     string
	LogLevel        string
	RedisURL        string
	RPCEndpoints    map[uint64]string
	IPFSGateway     string
	MaxResourceSize int64
	MaxURISize      int
	MaxHops         int
	RequestTimeout  time.Duration
}

func Load() (*Config, error) {
	endpoints, err := ParseEndpoints(getEnv("RPC_ENDPOINTS", DefaultRPCEndpoints))
	if err != nil {
		return nil, err
	}

	maxResourceSize, err := cast.ToInt64E(getEnv("MAX_RESOURCE_SIZE", "2097152"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_RESOURCE_SIZE: %w", err)
	}
	maxURISize, err := cast.ToIntE(getEnv("MAX_URI_SIZE", strconv.Itoa(DefaultMaxURISize)))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_URI_SIZE: %w", err)
	}
	maxHops, err := cast.ToIntE(getEnv("MAX_HOPS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_HOPS: %w", err)
	}
	requestTimeout, err := cast.ToDurationE(getEnv("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		Environment:     getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RedisURL:        getEnv("REDIS_URL", ""),
		RPCEndpoints:    endpoints,
		IPFSGateway:     getEnv("IPFS_GATEWAY", "https://ipfs.io/ipfs/"),
		MaxResourceSize: maxResourceSize,
		MaxURISize:      maxURISize,
		MaxHops:         maxHops,
		RequestTimeout:  requestTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEndpoints reads a "chainId=url,chainId=url" list.
func ParseEndpoints(raw string) (map[uint64]string, error) {
	endpoints := make(map[uint64]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, endpoint, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid RPC_ENDPOINTS entry %q: expected chainId=url", entry)
		}
		chainID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", id, err)
		}
		endpoints[chainID] = strings.TrimSpace(endpoint)
	}
	return endpoints, nil
}

func (c *Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("no RPC endpoints configured")
	}
	for chainID, endpoint := range c.RPCEndpoints {
		if err := validateURL(endpoint); err != nil {
			return fmt.Errorf("rpc endpoint for chain %d: %w", chainID, err)
		}
	}
	if err := validateURL(c.IPFSGateway); err != nil {
		return fmt.Errorf("ipfs gateway: %w", err)
	}
	if c.MaxResourceSize <= 0 {
		return fmt.Errorf("MAX_RESOURCE_SIZE must be positive")
	}
	if c.MaxURISize <= 0 {
		return fmt.Errorf("MAX_URI_SIZE must be positive")
	}
	if c.MaxHops <= 0 {
		return fmt.Errorf("MAX_HOPS must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// ChainIDs returns the configured chains in ascending order.
func (c *Config) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(c.RPCEndpoints))
	for id := range c.RPCEndpoints {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
