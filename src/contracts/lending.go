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

// Loan request status codes as stored by the contract.
const (
	RequestOpen uint8 = iota
	RequestCancelled
	RequestExpired
	RequestFulfilled
)

// Funding offer status codes.
const (
	OfferPending uint8 = iota
	OfferAccepted
	OfferCancelled
)

// Loan status codes.
const (
	LoanActive uint8 = iota
	LoanRepaid
	LoanDefaulted
)

type Reputation struct {
	Score                  *big.Int
	TotalLoansRequested    *big.Int
	TotalLoansFunded       *big.Int
	LoansRepaidOnTime      *big.Int
	LoansDefaulted         *big.Int
	TotalTransactions      *big.Int
	CollateralizationRatio *big.Int
	Registered             bool
}

type LoanRequest struct {
	ID               uint64
	Borrower         common.Address
	Amount           *big.Int
	DurationDays     uint64
	MaxInterestRate  *big.Int
	CollateralAmount *big.Int
	Purpose          string
	Timestamp        uint64
	Status           uint8
	BestOfferID      uint64
}

type Loan struct {
	ID               uint64
	RequestID        uint64
	Borrower         common.Address
	Lender           common.Address
	Amount           *big.Int
	InterestRate     *big.Int
	CollateralAmount *big.Int
	StartTime        uint64
	EndTime          uint64
	RepaidAmount     *big.Int
	Status           uint8
}

type FundingOffer struct {
	ID           uint64
	RequestID    uint64
	Lender       common.Address
	InterestRate *big.Int
	Timestamp    uint64
	Status       uint8
}

type PlatformStats struct {
	TotalLoanRequests     *big.Int
	TotalFundedLoans      *big.Int
	CurrentPlatformFee    *big.Int
	PlatformFeesCollected *big.Int
}

// Lending binds the lending platform contract.
type Lending struct {
	Address common.Address
	bound   *bind.BoundContract
}

func NewLending(address common.Address, backend bind.ContractBackend) (*Lending, error) {
	parsed, err := abi.JSON(strings.NewReader(lendingABI))
	if err != nil {
		return nil, err
	}
	return &Lending{
		Address: address,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, nil),
	}, nil
}

func (l *Lending) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := l.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, faults.Wrap(faults.ReadFailure, err, method)
	}
	return out, nil
}

func (l *Lending) ReputationOf(ctx context.Context, user common.Address) (Reputation, error) {
	const method = "getUserReputation"
	out, err := l.call(ctx, method, user)
	if err != nil {
		return Reputation{}, err
	}
	if err := wantLen(method, out, 8); err != nil {
		return Reputation{}, err
	}
	var r Reputation
	if r.Score, err = asBig(method, out, 0); err != nil {
		return Reputation{}, err
	}
	if r.TotalLoansRequested, err = asBig(method, out, 1); err != nil {
		return Reputation{}, err
	}
	if r.TotalLoansFunded, err = asBig(method, out, 2); err != nil {
		return Reputation{}, err
	}
	if r.LoansRepaidOnTime, err = asBig(method, out, 3); err != nil {
		return Reputation{}, err
	}
	if r.LoansDefaulted, err = asBig(method, out, 4); err != nil {
		return Reputation{}, err
	}
	if r.TotalTransactions, err = asBig(method, out, 5); err != nil {
		return Reputation{}, err
	}
	if r.CollateralizationRatio, err = asBig(method, out, 6); err != nil {
		return Reputation{}, err
	}
	if r.Registered, err = asBool(method, out, 7); err != nil {
		return Reputation{}, err
	}
	return r, nil
}

func (l *Lending) RecommendedRate(ctx context.Context, borrower common.Address) (*big.Int, error) {
	out, err := l.call(ctx, "getRecommendedInterestRate", borrower)
	if err != nil {
		return nil, err
	}
	if err := wantLen("getRecommendedInterestRate", out, 1); err != nil {
		return nil, err
	}
	return asBig("getRecommendedInterestRate", out, 0)
}

func (l *Lending) ActiveLoanRequestIDs(ctx context.Context, offset, limit uint64) ([]uint64, error) {
	out, err := l.call(ctx, "getActiveLoanRequests", new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
	if err != nil {
		return nil, err
	}
	if err := wantLen("getActiveLoanRequests", out, 1); err != nil {
		return nil, err
	}
	raw, err := asBigSlice("getActiveLoanRequests", out, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(raw))
	for i, v := range raw {
		ids[i] = v.Uint64()
	}
	return ids, nil
}

func (l *Lending) LoanRequestAt(ctx context.Context, id uint64) (LoanRequest, error) {
	const method = "loanRequests"
	out, err := l.call(ctx, method, new(big.Int).SetUint64(id))
	if err != nil {
		return LoanRequest{}, err
	}
	if err := wantLen(method, out, 10); err != nil {
		return LoanRequest{}, err
	}
	rawID, err := asBig(method, out, 0)
	if err != nil {
		return LoanRequest{}, err
	}
	if rawID.Sign() == 0 {
		return LoanRequest{}, faults.New(faults.ReadFailure, "loan request %d does not exist", id)
	}
	r := LoanRequest{ID: rawID.Uint64()}
	if r.Borrower, err = asAddress(method, out, 1); err != nil {
		return LoanRequest{}, err
	}
	if r.Amount, err = asBig(method, out, 2); err != nil {
		return LoanRequest{}, err
	}
	duration, err := asBig(method, out, 3)
	if err != nil {
		return LoanRequest{}, err
	}
	r.DurationDays = duration.Uint64()
	if r.MaxInterestRate, err = asBig(method, out, 4); err != nil {
		return LoanRequest{}, err
	}
	if r.CollateralAmount, err = asBig(method, out, 5); err != nil {
		return LoanRequest{}, err
	}
	if r.Purpose, err = asString(method, out, 6); err != nil {
		return LoanRequest{}, err
	}
	ts, err := asBig(method, out, 7)
	if err != nil {
		return LoanRequest{}, err
	}
	r.Timestamp = ts.Uint64()
	if r.Status, err = asUint8(method, out, 8); err != nil {
		return LoanRequest{}, err
	}
	best, err := asBig(method, out, 9)
	if err != nil {
		return LoanRequest{}, err
	}
	r.BestOfferID = best.Uint64()
	return r, nil
}

func (l *Lending) LoanAt(ctx context.Context, id uint64) (Loan, error) {
	const method = "loans"
	out, err := l.call(ctx, method, new(big.Int).SetUint64(id))
	if err != nil {
		return Loan{}, err
	}
	if err := wantLen(method, out, 11); err != nil {
		return Loan{}, err
	}
	rawID, err := asBig(method, out, 0)
	if err != nil {
		return Loan{}, err
	}
	if rawID.Sign() == 0 {
		return Loan{}, faults.New(faults.ReadFailure, "loan %d does not exist", id)
	}
	ln := Loan{ID: rawID.Uint64()}
	reqID, err := asBig(method, out, 1)
	if err != nil {
		return Loan{}, err
	}
	ln.RequestID = reqID.Uint64()
	if ln.Borrower, err = asAddress(method, out, 2); err != nil {
		return Loan{}, err
	}
	if ln.Lender, err = asAddress(method, out, 3); err != nil {
		return Loan{}, err
	}
	if ln.Amount, err = asBig(method, out, 4); err != nil {
		return Loan{}, err
	}
	if ln.InterestRate, err = asBig(method, out, 5); err != nil {
		return Loan{}, err
	}
	if ln.CollateralAmount, err = asBig(method, out, 6); err != nil {
		return Loan{}, err
	}
	start, err := asBig(method, out, 7)
	if err != nil {
		return Loan{}, err
	}
	ln.StartTime = start.Uint64()
	end, err := asBig(method, out, 8)
	if err != nil {
		return Loan{}, err
	}
	ln.EndTime = end.Uint64()
	if ln.RepaidAmount, err = asBig(method, out, 9); err != nil {
		return Loan{}, err
	}
	if ln.Status, err = asUint8(method, out, 10); err != nil {
		return Loan{}, err
	}
	return ln, nil
}

func (l *Lending) FundingOfferAt(ctx context.Context, id uint64) (FundingOffer, error) {
	const method = "fundingOffers"
	out, err := l.call(ctx, method, new(big.Int).SetUint64(id))
	if err != nil {
		return FundingOffer{}, err
	}
	if err := wantLen(method, out, 6); err != nil {
		return FundingOffer{}, err
	}
	rawID, err := asBig(method, out, 0)
	if err != nil {
		return FundingOffer{}, err
	}
	if rawID.Sign() == 0 {
		return FundingOffer{}, faults.New(faults.ReadFailure, "funding offer %d does not exist", id)
	}
	o := FundingOffer{ID: rawID.Uint64()}
	reqID, err := asBig(method, out, 1)
	if err != nil {
		return FundingOffer{}, err
	}
	o.RequestID = reqID.Uint64()
	if o.Lender, err = asAddress(method, out, 2); err != nil {
		return FundingOffer{}, err
	}
	if o.InterestRate, err = asBig(method, out, 3); err != nil {
		return FundingOffer{}, err
	}
	ts, err := asBig(method, out, 4)
	if err != nil {
		return FundingOffer{}, err
	}
	o.Timestamp = ts.Uint64()
	if o.Status, err = asUint8(method, out, 5); err != nil {
		return FundingOffer{}, err
	}
	return o, nil
}

func (l *Lending) UserActiveLoans(ctx context.Context, user common.Address) ([]uint64, error) {
	return l.idList(ctx, "getUserActiveLoans", user)
}

func (l *Lending) UserActiveInvestments(ctx context.Context, user common.Address) ([]uint64, error) {
	return l.idList(ctx, "getUserActiveInvestments", user)
}

func (l *Lending) idList(ctx context.Context, method string, user common.Address) ([]uint64, error) {
	out, err := l.call(ctx, method, user)
	if err != nil {
		return nil, err
	}
	if err := wantLen(method, out, 1); err != nil {
		return nil, err
	}
	raw, err := asBigSlice(method, out, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(raw))
	for i, v := range raw {
		ids[i] = v.Uint64()
	}
	return ids, nil
}

func (l *Lending) Stats(ctx context.Context) (PlatformStats, error) {
	const method = "getPlatformStats"
	out, err := l.call(ctx, method)
	if err != nil {
		return PlatformStats{}, err
	}
	if err := wantLen(method, out, 4); err != nil {
		return PlatformStats{}, err
	}
	var s PlatformStats
	if s.TotalLoanRequests, err = asBig(method, out, 0); err != nil {
		return PlatformStats{}, err
	}
	if s.TotalFundedLoans, err = asBig(method, out, 1); err != nil {
		return PlatformStats{}, err
	}
	if s.CurrentPlatformFee, err = asBig(method, out, 2); err != nil {
		return PlatformStats{}, err
	}
	if s.PlatformFeesCollected, err = asBig(method, out, 3); err != nil {
		return PlatformStats{}, err
	}
	return s, nil
}

func (l *Lending) AdminAddress(ctx context.Context) (common.Address, error) {
	out, err := l.call(ctx, "adminAddress")
	if err != nil {
		return common.Address{}, err
	}
	if err := wantLen("adminAddress", out, 1); err != nil {
		return common.Address{}, err
	}
	return asAddress("adminAddress", out, 0)
}

func (l *Lending) UsingToken(ctx context.Context) (bool, error) {
	out, err := l.call(ctx, "usingToken")
	if err != nil {
		return false, err
	}
	if err := wantLen("usingToken", out, 1); err != nil {
		return false, err
	}
	return asBool("usingToken", out, 0)
}

func (l *Lending) LoanTokenAddress(ctx context.Context) (common.Address, error) {
	out, err := l.call(ctx, "loanToken")
	if err != nil {
		return common.Address{}, err
	}
	if err := wantLen("loanToken", out, 1); err != nil {
		return common.Address{}, err
	}
	return asAddress("loanToken", out, 0)
}

func (l *Lending) PlatformBaseRate(ctx context.Context) (*big.Int, error) {
	return l.singleBig(ctx, "platformBaseRate")
}

func (l *Lending) singleBig(ctx context.Context, method string) (*big.Int, error) {
	out, err := l.call(ctx, method)
	if err != nil {
		return nil, err
	}
	if err := wantLen(method, out, 1); err != nil {
		return nil, err
	}
	return asBig(method, out, 0)
}

// Writes.

func (l *Lending) RegisterUser(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.bound.Transact(opts, "registerUser")
}

// CreateLoanRequest posts collateral atomically via opts.Value.
func (l *Lending) CreateLoanRequest(opts *bind.TransactOpts, amount *big.Int, durationDays uint64, maxInterestRate *big.Int, purpose string) (*types.Transaction, error) {
	return l.bound.Transact(opts, "createLoanRequest", amount, new(big.Int).SetUint64(durationDays), maxInterestRate, purpose)
}

func (l *Lending) CancelLoanRequest(opts *bind.TransactOpts, requestID uint64) (*types.Transaction, error) {
	return l.bound.Transact(opts, "cancelLoanRequest", new(big.Int).SetUint64(requestID))
}

func (l *Lending) CreateFundingOffer(opts *bind.TransactOpts, requestID uint64, interestRate *big.Int) (*types.Transaction, error) {
	return l.bound.Transact(opts, "createFundingOffer", new(big.Int).SetUint64(requestID), interestRate)
}

func (l *Lending) CancelFundingOffer(opts *bind.TransactOpts, offerID uint64) (*types.Transaction, error) {
	return l.bound.Transact(opts, "cancelFundingOffer", new(big.Int).SetUint64(offerID))
}

func (l *Lending) AcceptFundingOffer(opts *bind.TransactOpts, offerID uint64) (*types.Transaction, error) {
	return l.bound.Transact(opts, "acceptFundingOffer", new(big.Int).SetUint64(offerID))
}

func (l *Lending) FundAcceptedOffer(opts *bind.TransactOpts, offerID uint64) (*types.Transaction, error) {
	return l.bound.Transact(opts, "fundAcceptedOffer", new(big.Int).SetUint64(offerID))
}

func (l *Lending) RepayLoan(opts *bind.TransactOpts, loanID uint64) (*types.Transaction, error) {
	return l.bound.Transact(opts, "repayLoan", new(big.Int).SetUint64(loanID))
}

func (l *Lending) MarkLoanDefaulted(opts *bind.TransactOpts, loanID uint64) (*types.Transaction, error) {
	return l.bound.Transact(opts, "markLoanDefaulted", new(big.Int).SetUint64(loanID))
}

func (l *Lending) UpdatePlatformBaseRate(opts *bind.TransactOpts, rate *big.Int) (*types.Transaction, error) {
	return l.bound.Transact(opts, "updatePlatformBaseRate", rate)
}

func (l *Lending) UpdatePlatformFee(opts *bind.TransactOpts, feePercent *big.Int) (*types.Transaction, error) {
	return l.bound.Transact(opts, "updatePlatformFee", feePercent)
}

func (l *Lending) WithdrawPlatformFees(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.bound.Transact(opts, "withdrawPlatformFees")
}

func (l *Lending) UpdateAdminAddress(opts *bind.TransactOpts, newAdmin common.Address) (*types.Transaction, error) {
	return l.bound.Transact(opts, "updateAdminAddress", newAdmin)
}

func (l *Lending) EnableTokenMode(opts *bind.TransactOpts, token common.Address) (*types.Transaction, error) {
	return l.bound.Transact(opts, "enableTokenMode", token)
}

func (l *Lending) DisableTokenMode(opts *bind.TransactOpts) (*types.Transaction, error) {
	return l.bound.Transact(opts, "disableTokenMode")
}
