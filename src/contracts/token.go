package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainfund/chainfund/src/faults"
)

// Token binds the ERC20 loan token used when the platform runs in token
// mode. Only the approve/allowance surface is needed client-side.
type Token struct {
	Address common.Address
	bound   *bind.BoundContract
}

func NewToken(address common.Address, backend bind.ContractBackend) (*Token, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	return &Token{
		Address: address,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, nil),
	}, nil
}

func (t *Token) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := t.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, faults.Wrap(faults.ReadFailure, err, method)
	}
	return out, nil
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if err := wantLen("decimals", out, 1); err != nil {
		return 0, err
	}
	return asUint8("decimals", out, 0)
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	if err := wantLen("balanceOf", out, 1); err != nil {
		return nil, err
	}
	return asBig("balanceOf", out, 0)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out, err := t.call(ctx, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	if err := wantLen("allowance", out, 1); err != nil {
		return nil, err
	}
	return asBig("allowance", out, 0)
}

func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.bound.Transact(opts, "approve", spender, amount)
}
