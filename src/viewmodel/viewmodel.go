// Package viewmodel builds the JSON view of on-chain state. Construction is
// pure: no contract access, no side effects, amounts rendered as decimal
// strings at the configured precision.
package viewmodel

import (
	"math/big"
	"time"

	"github.com/chainfund/chainfund/src/amount"
	"github.com/chainfund/chainfund/src/contracts"
)

type Campaign struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	ImageURI        string `json:"image_uri"`
	Target          string `json:"target"`
	Raised          string `json:"raised"`
	Beneficiary     string `json:"beneficiary"`
	Active          bool   `json:"active"`
	ProgressPercent int    `json:"progress_percent"`
}

type Proposal struct {
	ID           uint64 `json:"id"`
	CampaignID   uint64 `json:"campaign_id"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	VotesFor     string `json:"votes_for"`
	VotesAgainst string `json:"votes_against"`
	Executed     bool   `json:"executed"`
	Executable   bool   `json:"executable"`
}

type LoanRequest struct {
	ID             uint64 `json:"id"`
	Borrower       string `json:"borrower"`
	Amount         string `json:"amount"`
	DurationDays   uint64 `json:"duration_days"`
	MaxInterestPct string `json:"max_interest_percent"`
	Collateral     string `json:"collateral"`
	Purpose        string `json:"purpose"`
	CreatedAt      string `json:"created_at"`
	Status         string `json:"status"`
	BestOfferID    uint64 `json:"best_offer_id,omitempty"`
}

type Loan struct {
	ID           uint64 `json:"id"`
	RequestID    uint64 `json:"request_id"`
	Borrower     string `json:"borrower"`
	Lender       string `json:"lender"`
	Principal    string `json:"principal"`
	InterestPct  string `json:"interest_percent"`
	Collateral   string `json:"collateral"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
	Repaid       string `json:"repaid"`
	RepaymentDue string `json:"repayment_due"`
	Status       string `json:"status"`
}

type FundingOffer struct {
	ID          uint64 `json:"id"`
	RequestID   uint64 `json:"request_id"`
	Lender      string `json:"lender"`
	InterestPct string `json:"interest_percent"`
	CreatedAt   string `json:"created_at"`
	Status      string `json:"status"`
}

type Reputation struct {
	Score                string `json:"score"`
	LoansRequested       string `json:"loans_requested"`
	LoansFunded          string `json:"loans_funded"`
	LoansRepaidOnTime    string `json:"loans_repaid_on_time"`
	LoansDefaulted       string `json:"loans_defaulted"`
	TotalTransactions    string `json:"total_transactions"`
	CollateralizationPct string `json:"collateralization_percent"`
	RecommendedRatePct   string `json:"recommended_rate_percent,omitempty"`
	Registered           bool   `json:"registered"`
}

type PlatformStats struct {
	TotalLoanRequests string `json:"total_loan_requests"`
	TotalFundedLoans  string `json:"total_funded_loans"`
	PlatformFeePct    string `json:"platform_fee_percent"`
	BaseRatePct       string `json:"base_rate_percent,omitempty"`
	FeesCollected     string `json:"fees_collected"`
}

const basisPointScale = 10000

// ProgressPercent computes raised/target in percent, clamped to [0, 100].
// A zero target renders as 0.
func ProgressPercent(raised, target *big.Int) int {
	if raised == nil || target == nil || target.Sign() <= 0 {
		return 0
	}
	pct := new(big.Int).Mul(raised, big.NewInt(100))
	pct.Div(pct, target)
	if pct.Cmp(big.NewInt(100)) > 0 {
		return 100
	}
	return int(pct.Int64())
}

// Executable reports whether the admin may execute a proposal: not yet
// executed and strictly more votes for than against.
func Executable(p contracts.Proposal) bool {
	if p.Executed || p.VotesFor == nil || p.VotesAgainst == nil {
		return false
	}
	return p.VotesFor.Cmp(p.VotesAgainst) > 0
}

// RepaymentDue computes principal plus simple interest at rate basis points.
// The contract charges the full non-prorated term interest on repayment.
func RepaymentDue(principal, rateBps *big.Int) *big.Int {
	if principal == nil {
		return big.NewInt(0)
	}
	due := new(big.Int).Set(principal)
	if rateBps == nil || rateBps.Sign() <= 0 {
		return due
	}
	interest := new(big.Int).Mul(principal, rateBps)
	interest.Div(interest, big.NewInt(basisPointScale))
	return due.Add(due, interest)
}

// OutstandingDue is the repayment due minus what was already repaid, floored
// at zero.
func OutstandingDue(principal, rateBps, repaid *big.Int) *big.Int {
	due := RepaymentDue(principal, rateBps)
	if repaid != nil {
		due.Sub(due, repaid)
	}
	if due.Sign() < 0 {
		return big.NewInt(0)
	}
	return due
}

func RequestStatusText(status uint8) string {
	switch status {
	case contracts.RequestOpen:
		return "open"
	case contracts.RequestCancelled:
		return "cancelled"
	case contracts.RequestExpired:
		return "expired"
	case contracts.RequestFulfilled:
		return "fulfilled"
	default:
		return "unknown"
	}
}

func OfferStatusText(status uint8) string {
	switch status {
	case contracts.OfferPending:
		return "pending"
	case contracts.OfferAccepted:
		return "accepted"
	case contracts.OfferCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func LoanStatusText(status uint8) string {
	switch status {
	case contracts.LoanActive:
		return "active"
	case contracts.LoanRepaid:
		return "repaid"
	case contracts.LoanDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

func FromCampaign(c contracts.Campaign, decimals int32) Campaign {
	return Campaign{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		ImageURI:        c.ImageURI,
		Target:          amount.FromUnits(c.TargetAmount, decimals),
		Raised:          amount.FromUnits(c.RaisedAmount, decimals),
		Beneficiary:     c.Beneficiary.Hex(),
		Active:          c.Active,
		ProgressPercent: ProgressPercent(c.RaisedAmount, c.TargetAmount),
	}
}

func FromProposal(p contracts.Proposal, decimals int32) Proposal {
	return Proposal{
		ID:           p.ID,
		CampaignID:   p.CampaignID,
		Description:  p.Description,
		Amount:       amount.FromUnits(p.Amount, decimals),
		VotesFor:     bigString(p.VotesFor),
		VotesAgainst: bigString(p.VotesAgainst),
		Executed:     p.Executed,
		Executable:   Executable(p),
	}
}

func FromLoanRequest(r contracts.LoanRequest, decimals int32) LoanRequest {
	return LoanRequest{
		ID:             r.ID,
		Borrower:       r.Borrower.Hex(),
		Amount:         amount.FromUnits(r.Amount, decimals),
		DurationDays:   r.DurationDays,
		MaxInterestPct: amount.PercentFromBasisPoints(r.MaxInterestRate),
		Collateral:     amount.FromUnits(r.CollateralAmount, decimals),
		Purpose:        r.Purpose,
		CreatedAt:      unixString(r.Timestamp),
		Status:         RequestStatusText(r.Status),
		BestOfferID:    r.BestOfferID,
	}
}

func FromLoan(l contracts.Loan, decimals int32) Loan {
	return Loan{
		ID:           l.ID,
		RequestID:    l.RequestID,
		Borrower:     l.Borrower.Hex(),
		Lender:       l.Lender.Hex(),
		Principal:    amount.FromUnits(l.Amount, decimals),
		InterestPct:  amount.PercentFromBasisPoints(l.InterestRate),
		Collateral:   amount.FromUnits(l.CollateralAmount, decimals),
		StartsAt:     unixString(l.StartTime),
		EndsAt:       unixString(l.EndTime),
		Repaid:       amount.FromUnits(l.RepaidAmount, decimals),
		RepaymentDue: amount.FromUnits(OutstandingDue(l.Amount, l.InterestRate, l.RepaidAmount), decimals),
		Status:       LoanStatusText(l.Status),
	}
}

func FromFundingOffer(o contracts.FundingOffer) FundingOffer {
	return FundingOffer{
		ID:          o.ID,
		RequestID:   o.RequestID,
		Lender:      o.Lender.Hex(),
		InterestPct: amount.PercentFromBasisPoints(o.InterestRate),
		CreatedAt:   unixString(o.Timestamp),
		Status:      OfferStatusText(o.Status),
	}
}

func FromReputation(r contracts.Reputation) Reputation {
	return Reputation{
		Score:                bigString(r.Score),
		LoansRequested:       bigString(r.TotalLoansRequested),
		LoansFunded:          bigString(r.TotalLoansFunded),
		LoansRepaidOnTime:    bigString(r.LoansRepaidOnTime),
		LoansDefaulted:       bigString(r.LoansDefaulted),
		TotalTransactions:    bigString(r.TotalTransactions),
		CollateralizationPct: amount.PercentFromBasisPoints(r.CollateralizationRatio),
		Registered:           r.Registered,
	}
}

func FromStats(s contracts.PlatformStats, decimals int32) PlatformStats {
	return PlatformStats{
		TotalLoanRequests: bigString(s.TotalLoanRequests),
		TotalFundedLoans:  bigString(s.TotalFundedLoans),
		PlatformFeePct:    amount.PercentFromBasisPoints(s.CurrentPlatformFee),
		FeesCollected:     amount.FromUnits(s.PlatformFeesCollected, decimals),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func unixString(ts uint64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}
