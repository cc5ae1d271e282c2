package storage

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/ethereum/go-ethereum/eth/tracers/logger"
	"github.com/holiman/uint256"
)

const replayGasLimit = 30_000_000

// ReplayCreation executes init code (creation bytecode followed by the
// encoded constructor arguments) on an empty in-memory state and returns
// the same struct-log trace debug_traceTransaction would give for the
// deployment. Constructors that read other contracts see empty accounts.
func ReplayCreation(input []byte, origin common.Address, value *big.Int) (*TraceResult, error) {
	statedb, err := state.New(types.EmptyRootHash, state.NewDatabaseForTesting())
	if err != nil {
		return nil, fmt.Errorf("replay state: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() > 0 {
		statedb.AddBalance(origin, uint256.MustFromBig(value), tracing.BalanceChangeUnspecified)
	}

	tracer := logger.NewStructLogger(&logger.Config{DisableStorage: true})
	cfg := &runtime.Config{
		Origin:    origin,
		Value:     value,
		GasLimit:  replayGasLimit,
		State:     statedb,
		EVMConfig: vm.Config{Tracer: tracer.Hooks()},
	}
	if _, _, _, err := runtime.Create(input, cfg); err != nil {
		return nil, fmt.Errorf("replay creation: %w", err)
	}

	raw, err := tracer.GetResult()
	if err != nil {
		return nil, fmt.Errorf("replay trace: %w", err)
	}
	var result TraceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode replay trace: %w", err)
	}
	return &result, nil
}
