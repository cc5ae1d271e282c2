package deployments

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/VectorBits/fundlab/internal/chain"
	"github.com/VectorBits/fundlab/internal/logger"
)

// Contract is a deployed contract bound to a signer.
type Contract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI

	env    *Env
	signer *chain.Account
	bound  *bind.BoundContract
}

func newContract(env *Env, name string, address common.Address, parsed abi.ABI, signer *chain.Account) *Contract {
	backend := env.Network.Backend
	return &Contract{
		Name:    name,
		Address: address,
		ABI:     parsed,
		env:     env,
		signer:  signer,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}
}

// Connect returns a copy of c that sends from signer.
func (c *Contract) Connect(signer *chain.Account) *Contract {
	return newContract(c.env, c.Name, c.Address, c.ABI, signer)
}

func (c *Contract) Signer() *chain.Account {
	return c.signer
}

// Call runs a read-only method and returns its unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}
	to := c.Address
	out, err := c.env.Network.Backend.CallContract(ctx, ethereum.CallMsg{
		From: c.signer.Address,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, wrapRevert(err, c.ABI))
	}
	results, err := c.ABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: failed to unpack result: %w", c.Name, method, err)
	}
	return results, nil
}

// Transact sends method with value wei attached and waits for the receipt.
// An empty method sends plain value to the receive function. Reverts are
// caught during gas estimation and returned as *RevertError.
func (c *Contract) Transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	var data []byte
	if method != "" {
		var err error
		if data, err = c.ABI.Pack(method, args...); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
		}
	}
	if value == nil {
		value = new(big.Int)
	}

	to := c.Address
	gas, err := c.env.Network.Backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.signer.Address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, wrapRevert(err, c.ABI))
	}

	auth, err := c.signer.Transactor(c.env.Network.ChainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	auth.Value = value
	auth.GasLimit = gas

	tx, err := c.bound.RawTransact(auth, data)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, wrapRevert(err, c.ABI))
	}
	receipt, err := c.env.Network.WaitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s.%s (tx %s): %w", c.Name, method, tx.Hash().Hex(), ErrTxFailed)
	}
	c.env.log.Debug().
		Str(logger.FieldContract, c.Name).
		Str("method", method).
		Str(logger.FieldTxHash, tx.Hash().Hex()).
		Uint64("gasUsed", receipt.GasUsed).
		Msg("Transaction mined")
	return receipt, nil
}

// Balance is the contract's ether balance at the latest block.
func (c *Contract) Balance(ctx context.Context) (*big.Int, error) {
	return c.env.Network.Backend.BalanceAt(ctx, c.Address, nil)
}
