// Package wallet resolves the signing identity and network used for all
// contract writes. The Session is immutable: chain or account changes are
// handled by rebuilding it, never by mutating it in place.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/chainfund/chainfund/src/faults"
)

type Session struct {
	Client  *ethclient.Client
	ChainID *big.Int
	Account common.Address

	key *ecdsa.PrivateKey
}

// Connect dials the provider endpoint, verifies the chain id against the
// configured network, and loads the signing key. A chain id mismatch is
// fatal: the session is not built and contract binding must not proceed.
func Connect(ctx context.Context, rpcURL string, wantChainID uint64, keyHex string) (*Session, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, faults.New(faults.WalletUnavailable, "no provider endpoint configured")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, faults.Wrap(faults.WalletUnavailable, err, "dial provider")
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		f := faults.AsFault(err)
		if f.Class == faults.Unknown {
			f.Class = faults.WalletUnavailable
		}
		return nil, f
	}
	if chainID.Uint64() != wantChainID {
		client.Close()
		return nil, faults.New(faults.WrongNetwork, "connected to chain %d, expected %d", chainID.Uint64(), wantChainID)
	}

	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	if keyHex == "" {
		client.Close()
		return nil, faults.New(faults.WalletUnavailable, "no signing key configured")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		client.Close()
		return nil, faults.Wrap(faults.WalletUnavailable, err, "parse signing key")
	}

	s := &Session{
		Client:  client,
		ChainID: chainID,
		Account: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
	log.Printf("wallet: connected as %s on chain %d", s.Account.Hex(), chainID.Uint64())
	return s, nil
}

// TransactOpts returns fresh signing options bound to ctx. Value and gas
// settings are left for the caller.
func (s *Session) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.ChainID)
	if err != nil {
		return nil, faults.Wrap(faults.WalletUnavailable, err, "build transactor")
	}
	opts.Context = ctx
	return opts, nil
}

func (s *Session) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}

// ChangeKind distinguishes why a session rebuild is required.
type ChangeKind int

const (
	ChainChanged ChangeKind = iota
	AccountChanged
)

// WatchNetwork polls the provider for chain and account changes. A chain
// change mandates a full session rebuild and state reload; an account change
// re-resolves identity-derived state. The callback receives the kind and the
// watcher returns, leaving the rebuild to the owner of the session.
//
// Account changes are detected against the last account the provider
// reported, never against the signing account: a bridge that manages a
// different account than the configured key is a steady state, and firing
// on it would tear the session down on every tick.
func WatchNetwork(ctx context.Context, s *Session, interval time.Duration, onChange func(ChangeKind)) {
	w := networkWatcher{
		chainID: s.Client.ChainID,
		account: func(ctx context.Context) (common.Address, bool) {
			return providerAccount(ctx, s.Client.Client())
		},
		want: s.ChainID,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if kind, changed := w.check(ctx); changed {
				onChange(kind)
				return
			}
		}
	}
}

type networkWatcher struct {
	chainID  func(context.Context) (*big.Int, error)
	account  func(context.Context) (common.Address, bool)
	want     *big.Int
	last     common.Address
	haveLast bool
}

func (w *networkWatcher) check(ctx context.Context) (ChangeKind, bool) {
	chainID, err := w.chainID(ctx)
	if err != nil {
		log.Printf("wallet: chain id poll: %v", err)
		return 0, false
	}
	if chainID.Cmp(w.want) != 0 {
		log.Printf("wallet: chain changed %d -> %d, full reload required", w.want.Uint64(), chainID.Uint64())
		return ChainChanged, true
	}
	if acct, ok := w.account(ctx); ok {
		if w.haveLast && acct != w.last {
			log.Printf("wallet: provider account changed %s -> %s", w.last.Hex(), acct.Hex())
			w.last = acct
			return AccountChanged, true
		}
		w.last, w.haveLast = acct, true
	}
	return 0, false
}

// providerAccount asks the endpoint for its managed accounts. Plain nodes
// return an empty list; wallet bridges return the active account.
func providerAccount(ctx context.Context, rc *rpc.Client) (common.Address, bool) {
	var accounts []common.Address
	if err := rc.CallContext(ctx, &accounts, "eth_accounts"); err != nil || len(accounts) == 0 {
		return common.Address{}, false
	}
	return accounts[0], true
}
