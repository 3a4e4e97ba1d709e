package webserver

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/chainfund/chainfund/src/config"
	"github.com/chainfund/chainfund/src/txflow"
	"github.com/chainfund/chainfund/src/viewmodel"
)

// StateReader serves cached view models; implemented by statesync.
type StateReader interface {
	Campaigns(ctx context.Context) ([]viewmodel.Campaign, error)
	Proposals(ctx context.Context, campaignID uint64) ([]viewmodel.Proposal, error)
	AdminProposals(ctx context.Context) ([]viewmodel.Proposal, error)
	LoanRequests(ctx context.Context) ([]viewmodel.LoanRequest, error)
	UserLoans(ctx context.Context, user common.Address) ([]viewmodel.Loan, []viewmodel.Loan, error)
	Reputation(ctx context.Context, user common.Address) (viewmodel.Reputation, error)
	Stats(ctx context.Context) (viewmodel.PlatformStats, error)
	DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (string, error)
	Voted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error)
}

// TxRunner drives contract writes; implemented by txflow.
type TxRunner interface {
	Account() common.Address
	IsCrowdfundAdmin() bool
	IsLendingAdmin() bool

	CreateCampaign(ctx context.Context, p txflow.CreateCampaignParams) (txflow.Result, error)
	Donate(ctx context.Context, campaignID uint64, amount string) (txflow.Result, error)
	CreateProposal(ctx context.Context, campaignID uint64, description, amount string) (txflow.Result, error)
	Vote(ctx context.Context, proposalID uint64, support bool) (txflow.Result, error)
	ExecuteProposal(ctx context.Context, proposalID uint64) (txflow.Result, error)

	RegisterUser(ctx context.Context) (txflow.Result, error)
	CreateLoanRequest(ctx context.Context, p txflow.LoanRequestParams) (txflow.Result, error)
	CancelLoanRequest(ctx context.Context, requestID uint64) (txflow.Result, error)
	CreateFundingOffer(ctx context.Context, requestID uint64, interestPct string) (txflow.Result, error)
	CancelFundingOffer(ctx context.Context, offerID uint64) (txflow.Result, error)
	AcceptFundingOffer(ctx context.Context, offerID uint64) (txflow.Result, error)
	FundAcceptedOffer(ctx context.Context, offerID uint64) (txflow.Result, error)
	RepayLoan(ctx context.Context, loanID uint64) (txflow.Result, error)
	MarkLoanDefaulted(ctx context.Context, loanID uint64) (txflow.Result, error)

	UpdatePlatformBaseRate(ctx context.Context, ratePct string) (txflow.Result, error)
	UpdatePlatformFee(ctx context.Context, feePct string) (txflow.Result, error)
	WithdrawPlatformFees(ctx context.Context) (txflow.Result, error)
	UpdateAdminAddress(ctx context.Context, newAdmin string) (txflow.Result, error)
	EnableTokenMode(ctx context.Context, token string) (txflow.Result, error)
	DisableTokenMode(ctx context.Context) (txflow.Result, error)
}

func New(cfg config.Config, state StateReader, tx TxRunner) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, state, tx)
	return g
}
