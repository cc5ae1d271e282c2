package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultNetwork        = "hardhat"
	DefaultConfirmations  = 1
	DefaultMockDecimals   = 8
	DefaultMockAnswer     = 200000000000
	DefaultDevAccounts    = 10
	DefaultDevBalanceEth  = "10000"
	DefaultStorageSlots   = 10
	DefaultLedgerDriver   = "sqlite"
	DefaultLedgerDSN      = "deployments/fundlab.db"
	DefaultExplorerAPIURL = "https://api.etherscan.io/v2/api"
)

type NetworkConfig struct {
	Name               string   `yaml:"-"`
	ChainID            uint64   `yaml:"chain_id"`
	RPCURLs            []string `yaml:"rpc_urls"`
	Accounts           []string `yaml:"accounts"`
	BlockConfirmations uint64   `yaml:"block_confirmations"`
	EthUsdPriceFeed    string   `yaml:"eth_usd_price_feed"`
	Explorer           Explorer `yaml:"explorer"`
}

type Explorer struct {
	APIKey  string   `yaml:"api_key"`
	APIKeys []string `yaml:"api_keys"`
	BaseURL string   `yaml:"base_url"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type SolcConfig struct {
	Version          string `yaml:"version"`
	OptimizerEnabled bool   `yaml:"optimizer_enabled"`
	OptimizerRuns    int    `yaml:"optimizer_runs"`
}

type MockConfig struct {
	Decimals      uint8 `yaml:"decimals"`
	InitialAnswer int64 `yaml:"initial_answer"`
}

type DevChainConfig struct {
	Accounts   int    `yaml:"accounts"`
	BalanceEth string `yaml:"balance_eth"`
}

type AppConfig struct {
	DefaultNetwork    string                    `yaml:"default_network"`
	DevelopmentChains []string                  `yaml:"development_chains"`
	NamedAccounts     map[string]int            `yaml:"named_accounts"`
	Networks          map[string]*NetworkConfig `yaml:"networks"`
	Database          DatabaseConfig            `yaml:"database"`
	Log               LogConfig                 `yaml:"log"`
	Solc              SolcConfig                `yaml:"solc"`
	Mock              MockConfig                `yaml:"mock"`
	DevChain          DevChainConfig            `yaml:"dev_chain"`
	Proxy             string                    `yaml:"proxy"`
}

var (
	loadOnce     sync.Once
	loadedConfig *AppConfig
	loadedErr    error
)

// LoadConfig reads settings.yaml once per process. FUNDLAB_CONFIG overrides
// the search path.
func LoadConfig() (*AppConfig, error) {
	loadOnce.Do(func() {
		configPath := findConfigFile()
		if configPath == "" {
			loadedErr = errors.New("the configuration file settings.yaml was not found")
			return
		}
		loadedConfig, loadedErr = LoadConfigFrom(configPath)
	})

	if loadedErr != nil {
		return nil, loadedErr
	}
	return loadedConfig, nil
}

func LoadConfigFrom(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML settings, applies environment overrides and fills defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default is the configuration used when no settings file exists.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *AppConfig) applyDefaults() {
	if c.DefaultNetwork == "" {
		c.DefaultNetwork = DefaultNetwork
	}
	if len(c.DevelopmentChains) == 0 {
		c.DevelopmentChains = []string{"hardhat", "localhost"}
	}
	if len(c.NamedAccounts) == 0 {
		c.NamedAccounts = map[string]int{"deployer": 0, "user": 1}
	}
	if c.Networks == nil {
		c.Networks = make(map[string]*NetworkConfig)
	}
	if _, ok := c.Networks[DefaultNetwork]; !ok {
		c.Networks[DefaultNetwork] = &NetworkConfig{ChainID: 1337}
	}
	for name, n := range c.Networks {
		if n == nil {
			n = &NetworkConfig{}
			c.Networks[name] = n
		}
		n.Name = name
		if n.BlockConfirmations == 0 {
			n.BlockConfirmations = DefaultConfirmations
		}
		if n.Explorer.BaseURL == "" {
			n.Explorer.BaseURL = DefaultExplorerAPIURL
		}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultLedgerDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == DefaultLedgerDriver {
		c.Database.DSN = DefaultLedgerDSN
	}
	if c.Solc.OptimizerRuns == 0 {
		c.Solc.OptimizerRuns = 200
	}
	if c.Mock.Decimals == 0 {
		c.Mock.Decimals = DefaultMockDecimals
	}
	if c.Mock.InitialAnswer == 0 {
		c.Mock.InitialAnswer = DefaultMockAnswer
	}
	if c.DevChain.Accounts == 0 {
		c.DevChain.Accounts = DefaultDevAccounts
	}
	if c.DevChain.BalanceEth == "" {
		c.DevChain.BalanceEth = DefaultDevBalanceEth
	}
}

func (c *AppConfig) applyEnv() {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		c.Log.Level = lvl
	}
	apiKey := os.Getenv("ETHERSCAN_API_KEY")
	privateKey := os.Getenv("PRIVATE_KEY")
	for name, n := range c.Networks {
		if apiKey != "" {
			n.Explorer.APIKey = apiKey
		}
		if rpcURL := os.Getenv(strings.ToUpper(name) + "_RPC_URL"); rpcURL != "" {
			n.RPCURLs = append([]string{rpcURL}, n.RPCURLs...)
		}
		if privateKey != "" && !c.IsDevelopmentChain(name) {
			n.Accounts = []string{privateKey}
		}
	}
}

func (c *AppConfig) validate() error {
	for name, n := range c.Networks {
		if name != DefaultNetwork && len(n.RPCURLs) == 0 {
			return fmt.Errorf("network %s: at least one rpc url is required", name)
		}
	}
	if _, ok := c.NamedAccounts["deployer"]; !ok {
		return errors.New("named_accounts: deployer is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql", "none":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

func (c *AppConfig) IsDevelopmentChain(name string) bool {
	for _, dev := range c.DevelopmentChains {
		if dev == name {
			return true
		}
	}
	return false
}

func (c *AppConfig) GetNetworkConfig(name string) (*NetworkConfig, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	n, ok := c.Networks[name]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", name)
	}
	return n, nil
}

func findConfigFile() string {
	if p := os.Getenv("FUNDLAB_CONFIG"); p != "" {
		return p
	}
	possiblePaths := []string{
		"config/settings.yaml",
		"settings.yaml",
		"../config/settings.yaml",
	}
	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func GetConfigPath() string {
	return findConfigFile()
}

func GetConfigDir() string {
	configPath := findConfigFile()
	if configPath == "" {
		return "config"
	}
	return filepath.Dir(configPath)
}
