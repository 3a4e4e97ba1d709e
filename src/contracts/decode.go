package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainfund/chainfund/src/faults"
)

// Strict return-value decoding. Every accessor pins the expected shape and
// fails loudly on mismatch instead of falling back positionally.

func wantLen(method string, out []interface{}, n int) error {
	if len(out) != n {
		return faults.New(faults.ReadFailure, "%s: %d return values, expected %d", method, len(out), n)
	}
	return nil
}

func asBig(method string, out []interface{}, i int) (*big.Int, error) {
	v, ok := out[i].(*big.Int)
	if !ok || v == nil {
		return nil, faults.New(faults.ReadFailure, "%s: output %d is not uint256", method, i)
	}
	return v, nil
}

func asString(method string, out []interface{}, i int) (string, error) {
	v, ok := out[i].(string)
	if !ok {
		return "", faults.New(faults.ReadFailure, "%s: output %d is not string", method, i)
	}
	return v, nil
}

func asAddress(method string, out []interface{}, i int) (common.Address, error) {
	v, ok := out[i].(common.Address)
	if !ok {
		return common.Address{}, faults.New(faults.ReadFailure, "%s: output %d is not address", method, i)
	}
	return v, nil
}

func asBool(method string, out []interface{}, i int) (bool, error) {
	v, ok := out[i].(bool)
	if !ok {
		return false, faults.New(faults.ReadFailure, "%s: output %d is not bool", method, i)
	}
	return v, nil
}

func asUint8(method string, out []interface{}, i int) (uint8, error) {
	v, ok := out[i].(uint8)
	if !ok {
		return 0, faults.New(faults.ReadFailure, "%s: output %d is not uint8", method, i)
	}
	return v, nil
}

func asBigSlice(method string, out []interface{}, i int) ([]*big.Int, error) {
	v, ok := out[i].([]*big.Int)
	if !ok {
		return nil, faults.New(faults.ReadFailure, "%s: output %d is not uint256[]", method, i)
	}
	return v, nil
}
