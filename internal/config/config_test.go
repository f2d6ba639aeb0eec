package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "RPC_ENDPOINTS", "IPFS_GATEWAY", "MAX_RESOURCE_SIZE", "MAX_URI_SIZE", "MAX_HOPS", "REQUEST_TIMEOUT", "REDIS_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "https://ipfs.io/ipfs/", cfg.IPFSGateway)
	assert.Equal(t, int64(2097152), cfg.MaxResourceSize)
	assert.Equal(t, 65536, cfg.MaxURISize)
	assert.Equal(t, 8, cfg.MaxHops)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []uint64{1, 5, 100, 11155111}, cfg.ChainIDs())
	assert.Equal(t, "https://cloudflare-eth.com/v1/mainnet", cfg.RPCEndpoints[1])
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RPC_ENDPOINTS", " 137 = https://polygon-rpc.com ")
	t.Setenv("MAX_RESOURCE_SIZE", "131072")
	t.Setenv("MAX_URI_SIZE", "262144")
	t.Setenv("MAX_HOPS", "3")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[uint64]string{137: "https://polygon-rpc.com"}, cfg.RPCEndpoints)
	assert.Equal(t, int64(131072), cfg.MaxResourceSize)
	assert.Equal(t, 262144, cfg.MaxURISize)
	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string][2]string{
		"endpoint without id": {"RPC_ENDPOINTS", "https://x"},
		"non-numeric chain":   {"RPC_ENDPOINTS", "main=https://x"},
		"relative endpoint":   {"RPC_ENDPOINTS", "1=/rpc"},
		"ftp gateway":         {"IPFS_GATEWAY", "ftp://x/ipfs/"},
		"non-numeric size":    {"MAX_RESOURCE_SIZE", "big"},
		"zero hops":           {"MAX_HOPS", "0"},
		"zero uri size":       {"MAX_URI_SIZE", "0"},
		"negative timeout":    {"REQUEST_TIMEOUT", "-1s"},
		"only separators":     {"RPC_ENDPOINTS", ",,"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
