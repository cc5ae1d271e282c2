package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSettings = `
default_network: hardhat
named_accounts:
  deployer: 0
  user: 1
networks:
  hardhat: {}
  sepolia:
    chain_id: 11155111
    rpc_urls: ["https://sepolia.example"]
    block_confirmations: 6
    eth_usd_price_feed: "0x694AA1769357215DE4FAC081bf1f309aDC325306"
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(testSettings))
	require.NoError(t, err)

	require.Equal(t, "hardhat", cfg.DefaultNetwork)
	require.Equal(t, []string{"hardhat", "localhost"}, cfg.DevelopmentChains)
	require.True(t, cfg.IsDevelopmentChain("hardhat"))
	require.False(t, cfg.IsDevelopmentChain("sepolia"))

	hardhat, err := cfg.GetNetworkConfig("")
	require.NoError(t, err)
	require.Equal(t, "hardhat", hardhat.Name)
	require.EqualValues(t, 1, hardhat.BlockConfirmations)

	sepolia, err := cfg.GetNetworkConfig("sepolia")
	require.NoError(t, err)
	require.EqualValues(t, 6, sepolia.BlockConfirmations)
	require.Equal(t, DefaultExplorerAPIURL, sepolia.Explorer.BaseURL)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, DefaultLedgerDSN, cfg.Database.DSN)
	require.EqualValues(t, 8, cfg.Mock.Decimals)
	require.EqualValues(t, 200000000000, cfg.Mock.InitialAnswer)

	_, err = cfg.GetNetworkConfig("mainnet")
	require.Error(t, err)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "KEY123")
	t.Setenv("PRIVATE_KEY", "0xabc")
	t.Setenv("SEPOLIA_RPC_URL", "https://alchemy.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Parse([]byte(testSettings))
	require.NoError(t, err)

	sepolia := cfg.Networks["sepolia"]
	require.Equal(t, "KEY123", sepolia.Explorer.APIKey)
	require.Equal(t, []string{"0xabc"}, sepolia.Accounts)
	require.Equal(t, "https://alchemy.example", sepolia.RPCURLs[0])
	require.Empty(t, cfg.Networks["hardhat"].Accounts)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestParseValidation(t *testing.T) {
	_, err := Parse([]byte("networks:\n  sepolia:\n    chain_id: 1\n"))
	require.ErrorContains(t, err, "rpc url")

	_, err = Parse([]byte("named_accounts:\n  user: 1\n"))
	require.ErrorContains(t, err, "deployer")

	_, err = Parse([]byte("database:\n  driver: oracle\n"))
	require.ErrorContains(t, err, "oracle")

	cfg, err := Parse([]byte("database:\n  driver: mysql\n  dsn: fundlab:secret@tcp(127.0.0.1:3306)/fundlab\n"))
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.Database.Driver)

	_, err = Parse([]byte("networks: [1, 2"))
	require.Error(t, err)
}

func TestLoadConfigFromExampleFile(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join("..", "..", "config", "settings.example.yaml"))
	require.NoError(t, err)
	require.Contains(t, cfg.Networks, "localhost")
	require.Len(t, cfg.Networks["localhost"].Accounts, 2)

	_, err = LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestFindConfigFileHonoursEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(p, []byte(testSettings), 0o600))
	t.Setenv("FUNDLAB_CONFIG", p)

	require.Equal(t, p, GetConfigPath())
	require.Equal(t, filepath.Dir(p), GetConfigDir())
}

func TestAPIKeyManager(t *testing.T) {
	t.Parallel()

	require.Nil(t, NewAPIKeyManager(Explorer{}))
	var nilManager *APIKeyManager
	require.False(t, nilManager.HasKeys())
	require.Empty(t, nilManager.GetKey())
	require.Zero(t, nilManager.GetKeyCount())

	m := NewAPIKeyManager(Explorer{APIKey: "a", APIKeys: []string{"a", "b", ""}})
	require.True(t, m.HasKeys())
	require.Equal(t, 2, m.GetKeyCount())
	require.Equal(t, "a", m.GetKey())
	require.Equal(t, "b", m.GetNextKey())
	require.Equal(t, "a", m.GetNextKey())
	require.Contains(t, []string{"a", "b"}, m.GetRandomKey())
}

func newBlockNumberServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x10",
		})
	}))
}

func TestRPCManagerFailover(t *testing.T) {
	healthy := newBlockNumberServer(t)
	defer healthy.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	ctx := t.Context()
	m, err := NewRPCManager(ctx, "sepolia", []string{dead.URL, healthy.URL}, 2*time.Second, "")
	require.NoError(t, err)
	defer m.Close()

	ep, err := m.GetEndpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, healthy.URL, ep.URL)
	require.Equal(t, healthy.URL, m.GetCurrentURL())
	require.Equal(t, "sepolia", m.Network())

	// second call is served from the health cache
	ep, err = m.GetEndpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, healthy.URL, ep.URL)
}

func TestRPCManagerAllDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	ctx := t.Context()
	m, err := NewRPCManager(ctx, "sepolia", []string{dead.URL}, time.Second, "")
	require.NoError(t, err)
	defer m.Close()

	_, err = m.GetEndpoint(ctx)
	require.ErrorIs(t, err, ErrNoHealthyRPC)

	_, err = NewRPCManager(ctx, "sepolia", nil, time.Second, "")
	require.Error(t, err)
}
