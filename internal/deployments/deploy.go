package deployments

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/VectorBits/fundlab/internal/dbutil"
	"github.com/VectorBits/fundlab/internal/logger"
	"github.com/VectorBits/fundlab/internal/solc"
)

type DeployOptions struct {
	// From is a named account; empty means "deployer".
	From string
	// Contract is the artifact to deploy; empty means the deployment name.
	Contract string
	Args     []any
	// Log prints the deployment the way hardhat-deploy does.
	Log               bool
	WaitConfirmations uint64
}

// Deploy deploys the artifact under name, or reuses a ledger entry with the
// same bytecode and arguments whose code is still on chain.
func (e *Env) Deploy(ctx context.Context, name string, opts DeployOptions) (*Deployment, error) {
	contractName := opts.Contract
	if contractName == "" {
		contractName = name
	}
	from := opts.From
	if from == "" {
		from = "deployer"
	}

	artifact, err := e.Artifact(contractName)
	if err != nil {
		return nil, err
	}
	if len(artifact.Bytecode) == 0 {
		return nil, fmt.Errorf("%s has no bytecode (abstract contract or interface?)", contractName)
	}
	deployer, err := e.NamedAccount(from)
	if err != nil {
		return nil, err
	}
	encodedArgs, err := artifact.ABI.Pack("", opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to pack constructor arguments: %w", name, err)
	}
	argsJSON, err := json.Marshal(opts.Args)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode constructor arguments: %w", name, err)
	}
	bytecodeHash := crypto.Keccak256Hash(artifact.Bytecode).Hex()

	if d, err := e.reuse(ctx, name, artifact, bytecodeHash, string(argsJSON), encodedArgs, opts); err != nil || d != nil {
		return d, err
	}

	backend := e.Network.Backend
	input := append(bytes.Clone(artifact.Bytecode), encodedArgs...)
	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{From: deployer.Address, Data: input})
	if err != nil {
		return nil, fmt.Errorf("%s: gas estimation failed: %w", name, wrapRevert(err, artifact.ABI))
	}

	auth, err := deployer.Transactor(e.Network.ChainID)
	if err != nil {
		return nil, err
	}
	auth.Context = ctx
	auth.GasLimit = gas

	address, tx, _, err := bind.DeployContract(auth, artifact.ABI, artifact.Bytecode, backend, opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to send deployment: %w", name, wrapRevert(err, artifact.ABI))
	}
	receipt, err := e.Network.WaitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: deployment %s: %w", name, tx.Hash().Hex(), ErrTxFailed)
	}
	if err := e.Network.WaitConfirmations(ctx, receipt, opts.WaitConfirmations); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	d := &Deployment{
		Name:        name,
		Contract:    contractName,
		Address:     address,
		TxHash:      tx.Hash(),
		Receipt:     receipt,
		ABI:         artifact.ABI,
		Args:        opts.Args,
		EncodedArgs: encodedArgs,
		Bytecode:    artifact.Bytecode,
		Deployer:    deployer.Address,
		Newly:       true,
	}
	e.record(d)

	if opts.Log {
		e.log.Info().
			Str(logger.FieldContract, name).
			Str(logger.FieldTxHash, tx.Hash().Hex()).
			Str(logger.FieldAddress, address.Hex()).
			Uint64("gas", receipt.GasUsed).
			Msgf("deploying %q (tx: %s)...: deployed at %s with %d gas", name, tx.Hash().Hex(), address.Hex(), receipt.GasUsed)
	}

	if !e.Network.Dev {
		rec := &dbutil.DeploymentRecord{
			Network:      e.Network.Name,
			Name:         name,
			Contract:     contractName,
			Address:      address.Hex(),
			TxHash:       tx.Hash().Hex(),
			BlockNumber:  receipt.BlockNumber.Uint64(),
			Deployer:     deployer.Address.Hex(),
			BytecodeHash: bytecodeHash,
			ABI:          string(artifact.RawABI),
			Args:         string(argsJSON),
			EncodedArgs:  hex.EncodeToString(encodedArgs),
		}
		if err := e.Ledger.Save(ctx, rec); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (e *Env) reuse(ctx context.Context, name string, artifact *solc.Artifact, bytecodeHash, argsJSON string, encodedArgs []byte, opts DeployOptions) (*Deployment, error) {
	if e.Network.Dev || e.Ledger == nil {
		return nil, nil
	}
	rec, err := e.Ledger.Find(ctx, e.Network.Name, name)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.BytecodeHash != bytecodeHash || rec.Args != argsJSON || !common.IsHexAddress(rec.Address) {
		return nil, nil
	}
	address := common.HexToAddress(rec.Address)
	code, err := e.Network.Backend.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read code at %s: %w", name, address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, nil
	}

	d := &Deployment{
		Name:        name,
		Contract:    artifact.ContractName,
		Address:     address,
		TxHash:      common.HexToHash(rec.TxHash),
		ABI:         artifact.ABI,
		Args:        opts.Args,
		EncodedArgs: encodedArgs,
		Bytecode:    artifact.Bytecode,
		Deployer:    common.HexToAddress(rec.Deployer),
	}
	if receipt, err := e.Network.Backend.TransactionReceipt(ctx, d.TxHash); err == nil {
		d.Receipt = receipt
	}
	e.record(d)
	if opts.Log {
		e.log.Info().Str(logger.FieldContract, name).Str(logger.FieldAddress, address.Hex()).
			Msgf("reusing %q at %s", name, address.Hex())
	}
	return d, nil
}

// GasCost is what a mined transaction cost its sender.
func GasCost(receipt *types.Receipt) *big.Int {
	if receipt == nil || receipt.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), receipt.EffectiveGasPrice)
}
