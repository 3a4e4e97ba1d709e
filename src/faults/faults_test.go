package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOfRawProviderErrors(t *testing.T) {
	cases := []struct {
		msg  string
		want Class
	}{
		{"MetaMask Tx Signature: User denied transaction signature.", UserRejected},
		{"request rejected with code 4001", UserRejected},
		{"execution reverted: already voted", ContractRevert},
		{"VM Exception: revert", ContractRevert},
		{"Post \"http://127.0.0.1:8545\": dial tcp 127.0.0.1:8545: connection refused", WalletUnavailable},
		{"lookup rpc.example.invalid: no such host", WalletUnavailable},
		{"something else entirely", Unknown},
	}
	for _, tc := range cases {
		if got := ClassOf(errors.New(tc.msg)); got != tc.want {
			t.Errorf("ClassOf(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestClassOfWrappedFault(t *testing.T) {
	base := New(WrongNetwork, "chain id 1, expected 11155111")
	wrapped := fmt.Errorf("connect: %w", base)
	if got := ClassOf(wrapped); got != WrongNetwork {
		t.Fatalf("ClassOf wrapped = %v, want WrongNetwork", got)
	}
	if ClassOf(nil) != Unknown {
		t.Fatal("ClassOf(nil) should be Unknown")
	}
}

func TestAsFaultPreservesExisting(t *testing.T) {
	f := New(Validation, "amount must be positive")
	got := AsFault(fmt.Errorf("donate: %w", f))
	if got.Class != Validation {
		t.Fatalf("class = %v, want Validation", got.Class)
	}
	raw := AsFault(errors.New("execution reverted: campaign closed"))
	if raw.Class != ContractRevert {
		t.Fatalf("class = %v, want ContractRevert", raw.Class)
	}
}

func TestRevertReason(t *testing.T) {
	err := errors.New("call failed: execution reverted: only donors can propose")
	if got := RevertReason(err); got != "only donors can propose" {
		t.Fatalf("reason = %q", got)
	}
	plain := errors.New("plain failure")
	if got := RevertReason(plain); got != "plain failure" {
		t.Fatalf("plain reason = %q", got)
	}
}

func TestFaultErrorString(t *testing.T) {
	f := Wrap(ContractRevert, errors.New("execution reverted: closed"), "donate")
	if f.Error() != "donate: execution reverted: closed" {
		t.Fatalf("got %q", f.Error())
	}
	if New(Validation, "name required").Error() != "name required" {
		t.Fatal("bare message mangled")
	}
}
