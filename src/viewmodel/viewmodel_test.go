package viewmodel

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainfund/chainfund/src/contracts"
)

func TestProgressPercentClamp(t *testing.T) {
	cases := []struct {
		raised, target int64
		want           int
	}{
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
		{150, 100, 100}, // over-raised never renders past 100
		{1, 3, 33},
		{10, 0, 0}, // zero target
	}
	for _, tc := range cases {
		got := ProgressPercent(big.NewInt(tc.raised), big.NewInt(tc.target))
		if got != tc.want {
			t.Errorf("ProgressPercent(%d, %d) = %d, want %d", tc.raised, tc.target, got, tc.want)
		}
	}
	if ProgressPercent(nil, big.NewInt(10)) != 0 {
		t.Fatal("nil raised should be 0")
	}
}

func TestExecutable(t *testing.T) {
	mk := func(forVotes, against int64, executed bool) contracts.Proposal {
		return contracts.Proposal{
			VotesFor:     big.NewInt(forVotes),
			VotesAgainst: big.NewInt(against),
			Executed:     executed,
		}
	}
	cases := []struct {
		p    contracts.Proposal
		want bool
	}{
		{mk(2, 1, false), true},
		{mk(1, 1, false), false}, // tie is not executable
		{mk(0, 1, false), false},
		{mk(2, 1, true), false}, // already executed
		{mk(0, 0, false), false},
	}
	for i, tc := range cases {
		if got := Executable(tc.p); got != tc.want {
			t.Errorf("case %d: Executable = %v, want %v", i, got, tc.want)
		}
	}
}

func TestRepaymentDue(t *testing.T) {
	// 1 ether at 5% (500 bps) -> 1.05 ether
	principal, _ := new(big.Int).SetString("1000000000000000000", 10)
	due := RepaymentDue(principal, big.NewInt(500))
	want, _ := new(big.Int).SetString("1050000000000000000", 10)
	if due.Cmp(want) != 0 {
		t.Fatalf("due = %s, want %s", due, want)
	}
	// zero rate repays the principal only
	if RepaymentDue(principal, big.NewInt(0)).Cmp(principal) != 0 {
		t.Fatal("zero rate should equal principal")
	}
	// caller's principal must not be mutated
	if principal.String() != "1000000000000000000" {
		t.Fatal("principal mutated")
	}
}

func TestOutstandingDue(t *testing.T) {
	principal := big.NewInt(10000)
	due := OutstandingDue(principal, big.NewInt(1000), big.NewInt(4000)) // 11000 - 4000
	if due.Cmp(big.NewInt(7000)) != 0 {
		t.Fatalf("outstanding = %s", due)
	}
	if OutstandingDue(principal, big.NewInt(0), big.NewInt(20000)).Sign() != 0 {
		t.Fatal("overpaid loan should floor at zero")
	}
}

func TestFromCampaign(t *testing.T) {
	c := contracts.Campaign{
		ID:           3,
		Name:         "Well",
		TargetAmount: mustBig("2000000000000000000"),
		RaisedAmount: mustBig("500000000000000000"),
		Beneficiary:  common.HexToAddress("0x00ED48da0A7a1a6E369A2825e5C6A98584C0f44d"),
		Active:       true,
	}
	vm := FromCampaign(c, 18)
	if vm.Target != "2" || vm.Raised != "0.5" {
		t.Fatalf("amounts: target=%q raised=%q", vm.Target, vm.Raised)
	}
	if vm.ProgressPercent != 25 {
		t.Fatalf("progress = %d", vm.ProgressPercent)
	}
}

func TestFromLoanRepaymentDue(t *testing.T) {
	l := contracts.Loan{
		ID:           1,
		Amount:       mustBig("1000000000000000000"),
		InterestRate: big.NewInt(250), // 2.5%
		RepaidAmount: big.NewInt(0),
		Status:       contracts.LoanActive,
	}
	vm := FromLoan(l, 18)
	if vm.RepaymentDue != "1.025" {
		t.Fatalf("repayment due = %q", vm.RepaymentDue)
	}
	if vm.InterestPct != "2.5" {
		t.Fatalf("interest = %q", vm.InterestPct)
	}
	if vm.Status != "active" {
		t.Fatalf("status = %q", vm.Status)
	}
}

func TestStatusTexts(t *testing.T) {
	if RequestStatusText(contracts.RequestOpen) != "open" ||
		RequestStatusText(200) != "unknown" {
		t.Fatal("request status mapping")
	}
	if LoanStatusText(contracts.LoanDefaulted) != "defaulted" {
		t.Fatal("loan status mapping")
	}
	if OfferStatusText(contracts.OfferAccepted) != "accepted" {
		t.Fatal("offer status mapping")
	}
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return v
}
