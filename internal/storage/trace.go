package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrTraceUnsupported is returned when the node has no debug namespace.
var ErrTraceUnsupported = errors.New("node does not support debug_traceTransaction")

const methodNotFound = -32601

type StructLog struct {
	PC      uint64            `json:"pc"`
	Op      string            `json:"op"`
	Gas     uint64            `json:"gas"`
	GasCost uint64            `json:"gasCost"`
	Depth   int               `json:"depth"`
	Stack   []string          `json:"stack"`
	Storage map[string]string `json:"storage,omitempty"`
}

type TraceResult struct {
	Gas         uint64      `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}

// StorageWrite is one SSTORE seen in a trace.
type StorageWrite struct {
	PC    uint64
	Depth int
	Slot  common.Hash
	Value common.Hash
}

// TraceTransaction fetches the struct-log trace of hash. Memory is not
// requested; storage snapshots are disabled since writes are taken from
// the stack.
func TraceTransaction(ctx context.Context, client *rpc.Client, hash common.Hash) (*TraceResult, error) {
	if client == nil {
		return nil, ErrTraceUnsupported
	}
	var result TraceResult
	opts := map[string]any{
		"disableStorage": true,
		"disableMemory":  true,
		"enableMemory":   false,
	}
	if err := client.CallContext(ctx, &result, "debug_traceTransaction", hash, opts); err != nil {
		if isMethodMissing(err) {
			return nil, fmt.Errorf("%w: %v", ErrTraceUnsupported, err)
		}
		return nil, fmt.Errorf("debug_traceTransaction %s: %w", hash.Hex(), err)
	}
	return &result, nil
}

func isMethodMissing(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not available") ||
		strings.Contains(msg, "method not found")
}

// StorageWrites lists every SSTORE in trace order. The slot is the top of
// the stack and the value the item below it.
func StorageWrites(result *TraceResult) ([]StorageWrite, error) {
	if result == nil {
		return nil, nil
	}
	var writes []StorageWrite
	for _, l := range result.StructLogs {
		if l.Op != "SSTORE" {
			continue
		}
		if len(l.Stack) < 2 {
			return nil, fmt.Errorf("SSTORE at pc %d with %d stack items", l.PC, len(l.Stack))
		}
		slot, err := parseStackWord(l.Stack[len(l.Stack)-1])
		if err != nil {
			return nil, fmt.Errorf("pc %d: %w", l.PC, err)
		}
		value, err := parseStackWord(l.Stack[len(l.Stack)-2])
		if err != nil {
			return nil, fmt.Errorf("pc %d: %w", l.PC, err)
		}
		writes = append(writes, StorageWrite{PC: l.PC, Depth: l.Depth, Slot: slot, Value: value})
	}
	return writes, nil
}

// parseStackWord accepts both "0x1" and zero-padded unprefixed hex.
func parseStackWord(s string) (common.Hash, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return common.Hash{}, nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok || n.BitLen() > 256 {
		return common.Hash{}, fmt.Errorf("invalid stack word %q", s)
	}
	return common.BigToHash(n), nil
}
