package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"github.com/VectorBits/fundlab/internal/units"
)

// DevChainID is the chain id the simulated backend always reports.
const DevChainID = 1337

// DevChain is an in-process chain with prefunded accounts. Blocks are only
// produced by Commit.
type DevChain struct {
	sim      *simulated.Backend
	accounts []*Account
}

// DevAccount derives the i-th development key. Keys are stable across runs
// so addresses in logs and the ledger stay comparable.
func DevAccount(i int) *Account {
	seed := crypto.Keccak256([]byte(fmt.Sprintf("fundlab-dev-account-%d", i)))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		panic(err)
	}
	return NewAccount(key)
}

// NewDevChain starts a simulated chain funding n accounts with balanceEth each.
func NewDevChain(n int, balanceEth string) (*DevChain, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dev chain needs at least one account, got %d", n)
	}
	balance, err := units.ParseEther(balanceEth)
	if err != nil {
		return nil, fmt.Errorf("invalid dev chain balance: %w", err)
	}

	accounts := make([]*Account, n)
	alloc := make(types.GenesisAlloc, n)
	for i := range accounts {
		accounts[i] = DevAccount(i)
		alloc[accounts[i].Address] = types.Account{Balance: new(big.Int).Set(balance)}
	}
	return &DevChain{
		sim:      simulated.NewBackend(alloc),
		accounts: accounts,
	}, nil
}

func (d *DevChain) Client() Backend {
	return d.sim.Client()
}

func (d *DevChain) Accounts() []*Account {
	return d.accounts
}

func (d *DevChain) Commit() common.Hash {
	return d.sim.Commit()
}

func (d *DevChain) Close() error {
	return d.sim.Close()
}
