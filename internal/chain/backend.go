package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Backend is everything the deployment layer needs from a chain. Both
// ethclient.Client and the simulated client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainStateReader
	ethereum.ChainIDReader
	ethereum.BlockNumberReader
	ethereum.TransactionReader
}

// Miner produces blocks on demand. Only in-process chains have one.
type Miner interface {
	Commit() common.Hash
}

// Account is a local signer.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

func NewAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}
}

// ParseAccount accepts a hex private key with or without 0x.
func ParseAccount(hexKey string) (*Account, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewAccount(key), nil
}

// Transactor returns signing options bound to chainID.
func (a *Account) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	return bind.NewKeyedTransactorWithChainID(a.Key, chainID)
}
