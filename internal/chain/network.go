package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/VectorBits/fundlab/internal/config"
	"github.com/VectorBits/fundlab/internal/logger"
)

const (
	rpcTimeout   = 30 * time.Second
	pollInterval = time.Second
)

// Network is a connected chain plus the settings scripts need about it.
type Network struct {
	Name          string
	ChainID       *big.Int
	Dev           bool
	Confirmations uint64
	PriceFeed     common.Address
	Explorer      config.Explorer
	Backend       Backend
	// RPC is nil for the in-process chain, which has no debug namespace.
	RPC      *rpc.Client
	Accounts []*Account

	miner   Miner
	closers []func()
	log     zerolog.Logger
}

// Connect opens the named network. "hardhat" without rpc urls becomes an
// in-process DevChain; everything else is dialled through the RPC manager.
func Connect(ctx context.Context, cfg *config.AppConfig, name string) (*Network, error) {
	nc, err := cfg.GetNetworkConfig(name)
	if err != nil {
		return nil, err
	}

	n := &Network{
		Name:          nc.Name,
		Dev:           cfg.IsDevelopmentChain(nc.Name),
		Confirmations: nc.BlockConfirmations,
		Explorer:      nc.Explorer,
		log:           logger.New("chain").With().Str(logger.FieldNetwork, nc.Name).Logger(),
	}
	if nc.EthUsdPriceFeed != "" {
		if !common.IsHexAddress(nc.EthUsdPriceFeed) {
			return nil, fmt.Errorf("network %s: invalid eth_usd_price_feed %q", nc.Name, nc.EthUsdPriceFeed)
		}
		n.PriceFeed = common.HexToAddress(nc.EthUsdPriceFeed)
	}

	if nc.Name == config.DefaultNetwork && len(nc.RPCURLs) == 0 {
		dev, err := NewDevChain(cfg.DevChain.Accounts, cfg.DevChain.BalanceEth)
		if err != nil {
			return nil, err
		}
		n.attachDevChain(dev)
		n.log.Debug().Int("accounts", len(n.Accounts)).Msg("Started in-process chain")
		return n, nil
	}

	mgr, err := config.NewRPCManager(ctx, nc.Name, nc.RPCURLs, rpcTimeout, cfg.Proxy)
	if err != nil {
		return nil, err
	}
	n.closers = append(n.closers, mgr.Close)

	ep, err := mgr.GetEndpoint(ctx)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.Backend = ep.Client
	n.RPC = ep.RPC

	chainID, err := ep.Client.ChainID(ctx)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if nc.ChainID != 0 && chainID.Uint64() != nc.ChainID {
		n.Close()
		return nil, fmt.Errorf("network %s: node reports chain id %s, configured %d", nc.Name, chainID, nc.ChainID)
	}
	n.ChainID = chainID

	for i, key := range nc.Accounts {
		acct, err := ParseAccount(key)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("network %s account %d: %w", nc.Name, i, err)
		}
		n.Accounts = append(n.Accounts, acct)
	}
	n.log.Debug().Str(logger.FieldURL, ep.URL).Str("chainId", chainID.String()).Msg("Connected")
	return n, nil
}

// NewDevNetwork wraps a fresh DevChain without any settings file.
func NewDevNetwork(accounts int, balanceEth string) (*Network, error) {
	dev, err := NewDevChain(accounts, balanceEth)
	if err != nil {
		return nil, err
	}
	n := &Network{
		Name:          config.DefaultNetwork,
		Dev:           true,
		Confirmations: config.DefaultConfirmations,
		log:           logger.New("chain").With().Str(logger.FieldNetwork, config.DefaultNetwork).Logger(),
	}
	n.attachDevChain(dev)
	return n, nil
}

func (n *Network) attachDevChain(dev *DevChain) {
	n.ChainID = big.NewInt(DevChainID)
	n.Dev = true
	n.Backend = dev.Client()
	n.Accounts = dev.Accounts()
	n.miner = dev
	n.closers = append(n.closers, func() { dev.Close() })
}

// AutoMine reports whether blocks must be produced by the caller.
func (n *Network) AutoMine() bool {
	return n.miner != nil
}

// Mine produces one block when the chain is in-process; otherwise it is a no-op.
func (n *Network) Mine() {
	if n.miner != nil {
		n.miner.Commit()
	}
}

// Account returns the signer at index i.
func (n *Network) Account(i int) (*Account, error) {
	if i < 0 || i >= len(n.Accounts) {
		return nil, fmt.Errorf("network %s has %d accounts, index %d requested", n.Name, len(n.Accounts), i)
	}
	return n.Accounts[i], nil
}

// WaitMined blocks until tx has a receipt, mining a block first on
// in-process chains.
func (n *Network) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	n.Mine()
	for {
		receipt, err := n.Backend.TransactionReceipt(ctx, tx.Hash())
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		if n.AutoMine() {
			n.Mine()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.pollInterval()):
		}
	}
}

// WaitConfirmations blocks until the receipt's block has the requested
// number of confirmations; the including block counts as the first.
func (n *Network) WaitConfirmations(ctx context.Context, receipt *types.Receipt, confirmations uint64) error {
	if confirmations <= 1 || receipt.BlockNumber == nil {
		return nil
	}
	target := receipt.BlockNumber.Uint64() + confirmations - 1
	for {
		head, err := n.Backend.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to read block number: %w", err)
		}
		if head >= target {
			return nil
		}
		if n.AutoMine() {
			n.Mine()
			continue
		}
		n.log.Debug().Uint64("head", head).Uint64("target", target).Msg("Waiting for confirmations")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.pollInterval()):
		}
	}
}

func (n *Network) pollInterval() time.Duration {
	if n.AutoMine() {
		return 10 * time.Millisecond
	}
	return pollInterval
}

func (n *Network) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		n.closers[i]()
	}
	n.closers = nil
}
