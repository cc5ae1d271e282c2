package deployments

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrTxFailed is returned for mined transactions with status 0.
var ErrTxFailed = errors.New("transaction failed")

var (
	errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector = crypto.Keccak256([]byte("Panic(uint256)"))[:4]
)

// RevertError is a decoded EVM revert. Name is "Error" for require/revert
// strings, "Panic" for compiler panics, the custom error's name otherwise,
// and empty when the node returned no revert data.
type RevertError struct {
	Name   string
	Reason string
	Args   []any
	Data   []byte
}

func (e *RevertError) Error() string {
	switch {
	case e.Name == "Error" || e.Name == "Panic":
		return "execution reverted: " + e.Reason
	case e.Name != "":
		return fmt.Sprintf("execution reverted with custom error %s%v", e.Name, e.Args)
	case e.Reason != "":
		return "execution reverted: " + e.Reason
	default:
		return "execution reverted"
	}
}

func IsRevert(err error) bool {
	var rev *RevertError
	return errors.As(err, &rev)
}

// RevertedWith reports whether err is a revert whose reason string or
// custom error name equals want.
func RevertedWith(err error, want string) bool {
	var rev *RevertError
	if !errors.As(err, &rev) {
		return false
	}
	return rev.Reason == want || (rev.Name == want && rev.Name != "Error" && rev.Name != "Panic")
}

// wrapRevert converts a node error carrying revert data into *RevertError.
// Other errors are returned unchanged.
func wrapRevert(err error, abis ...abi.ABI) error {
	if err == nil {
		return nil
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := revertData(dataErr.ErrorData()); ok {
			return decodeRevert(data, abis...)
		}
	}
	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		reason := strings.TrimPrefix(msg[idx+len("execution reverted"):], ":")
		return &RevertError{Reason: strings.TrimSpace(reason)}
	}
	return err
}

func revertData(v any) ([]byte, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, false
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, false
	}
	return data, true
}

// decodeRevert decodes Error(string), Panic(uint256) and any custom error
// declared in abis.
func decodeRevert(data []byte, abis ...abi.ABI) *RevertError {
	rev := &RevertError{Data: data}
	if len(data) < 4 {
		return rev
	}
	selector := data[:4]

	if bytes.Equal(selector, errorSelector) || bytes.Equal(selector, panicSelector) {
		rev.Name = "Error"
		if bytes.Equal(selector, panicSelector) {
			rev.Name = "Panic"
		}
		if reason, err := abi.UnpackRevert(data); err == nil {
			rev.Reason = reason
		}
		return rev
	}

	for _, a := range abis {
		for name, e := range a.Errors {
			if !bytes.Equal(e.ID[:4], selector) {
				continue
			}
			rev.Name = name
			if args, err := e.Inputs.Unpack(data[4:]); err == nil {
				rev.Args = args
			}
			return rev
		}
	}
	rev.Reason = hexutil.Encode(data)
	return rev
}
