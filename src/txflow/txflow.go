// Package txflow drives every contract write through a single lifecycle:
// Building -> Submitted -> Confirmed, or Rejected at any stage. Client-side
// preconditions are checked before the wallet is ever touched; a submitted
// transaction is awaited to exactly one confirmation under a timeout; a
// confirmed transaction triggers only the refreshes relevant to the entity
// it mutated. Failed runs leave prior snapshots untouched.
package txflow

import (
	"context"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chainfund/chainfund/src/amount"
	"github.com/chainfund/chainfund/src/contracts"
	"github.com/chainfund/chainfund/src/data"
	"github.com/chainfund/chainfund/src/faults"
	"github.com/chainfund/chainfund/src/viewmodel"
)

type Status string

const (
	StatusBuilding  Status = "building"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Result reports the terminal state of one lifecycle run.
type Result struct {
	ID     string `json:"id"`
	Op     string `json:"op"`
	Status Status `json:"status"`
	TxHash string `json:"tx_hash,omitempty"`
	Block  uint64 `json:"block,omitempty"`
	Error  string `json:"error,omitempty"`
}

type CrowdfundContract interface {
	Owner(ctx context.Context) (common.Address, error)
	ProposalAt(ctx context.Context, id uint64) (contracts.Proposal, error)
	DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (*big.Int, error)
	CreateCampaign(opts *bind.TransactOpts, name, description, imageURI string, target *big.Int, beneficiary common.Address) (*types.Transaction, error)
	Donate(opts *bind.TransactOpts, campaignID uint64) (*types.Transaction, error)
	CreateProposal(opts *bind.TransactOpts, campaignID uint64, description string, amount *big.Int) (*types.Transaction, error)
	Vote(opts *bind.TransactOpts, proposalID uint64, support bool) (*types.Transaction, error)
	ExecuteProposal(opts *bind.TransactOpts, proposalID uint64) (*types.Transaction, error)
}

type LendingContract interface {
	AdminAddress(ctx context.Context) (common.Address, error)
	UsingToken(ctx context.Context) (bool, error)
	LoanTokenAddress(ctx context.Context) (common.Address, error)
	LoanRequestAt(ctx context.Context, id uint64) (contracts.LoanRequest, error)
	FundingOfferAt(ctx context.Context, id uint64) (contracts.FundingOffer, error)
	LoanAt(ctx context.Context, id uint64) (contracts.Loan, error)
	RegisterUser(opts *bind.TransactOpts) (*types.Transaction, error)
	CreateLoanRequest(opts *bind.TransactOpts, amount *big.Int, durationDays uint64, maxInterestRate *big.Int, purpose string) (*types.Transaction, error)
	CancelLoanRequest(opts *bind.TransactOpts, requestID uint64) (*types.Transaction, error)
	CreateFundingOffer(opts *bind.TransactOpts, requestID uint64, interestRate *big.Int) (*types.Transaction, error)
	CancelFundingOffer(opts *bind.TransactOpts, offerID uint64) (*types.Transaction, error)
	AcceptFundingOffer(opts *bind.TransactOpts, offerID uint64) (*types.Transaction, error)
	FundAcceptedOffer(opts *bind.TransactOpts, offerID uint64) (*types.Transaction, error)
	RepayLoan(opts *bind.TransactOpts, loanID uint64) (*types.Transaction, error)
	MarkLoanDefaulted(opts *bind.TransactOpts, loanID uint64) (*types.Transaction, error)
	UpdatePlatformBaseRate(opts *bind.TransactOpts, rate *big.Int) (*types.Transaction, error)
	UpdatePlatformFee(opts *bind.TransactOpts, feePercent *big.Int) (*types.Transaction, error)
	WithdrawPlatformFees(opts *bind.TransactOpts) (*types.Transaction, error)
	UpdateAdminAddress(opts *bind.TransactOpts, newAdmin common.Address) (*types.Transaction, error)
	EnableTokenMode(opts *bind.TransactOpts, token common.Address) (*types.Transaction, error)
	DisableTokenMode(opts *bind.TransactOpts) (*types.Transaction, error)
}

type TokenContract interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// TokenFactory binds the ERC20 token at the platform's current token
// address; the address can change when an admin reconfigures token mode.
type TokenFactory func(addr common.Address) (TokenContract, error)

// ReceiptSource answers receipt polls; a nil receipt with an error means
// the transaction is still pending.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Refresher interface {
	RefreshCampaigns(ctx context.Context) ([]viewmodel.Campaign, error)
	RefreshProposals(ctx context.Context, campaignID uint64) ([]viewmodel.Proposal, error)
	RefreshAdminProposals(ctx context.Context) ([]viewmodel.Proposal, error)
	RefreshLoanRequests(ctx context.Context) ([]viewmodel.LoanRequest, error)
	RefreshUserLoans(ctx context.Context, user common.Address) ([]viewmodel.Loan, []viewmodel.Loan, error)
	RefreshReputation(ctx context.Context, user common.Address) (viewmodel.Reputation, error)
	RefreshStats(ctx context.Context) (viewmodel.PlatformStats, error)
}

type Controller struct {
	account  common.Address
	opts     func(ctx context.Context) (*bind.TransactOpts, error)
	cf       CrowdfundContract
	lend     LendingContract
	lendAddr common.Address
	newToken TokenFactory
	receipts ReceiptSource
	refresh  Refresher
	rdb      *redis.Client // optional tx announcements
	decimals int32

	confirmTimeout time.Duration
	receiptPoll    time.Duration

	adminMu   sync.RWMutex
	cfOwner   common.Address
	lendAdmin common.Address
}

type Options struct {
	Account        common.Address
	TransactOpts   func(ctx context.Context) (*bind.TransactOpts, error)
	Crowdfund      CrowdfundContract
	Lending        LendingContract
	LendingAddr    common.Address
	NewToken       TokenFactory
	Receipts       ReceiptSource
	Refresher      Refresher
	Redis          *redis.Client
	Decimals       int32
	ConfirmTimeout time.Duration
	ReceiptPoll    time.Duration
}

func New(ctx context.Context, o Options) (*Controller, error) {
	c := &Controller{
		account:        o.Account,
		opts:           o.TransactOpts,
		cf:             o.Crowdfund,
		lend:           o.Lending,
		lendAddr:       o.LendingAddr,
		newToken:       o.NewToken,
		receipts:       o.Receipts,
		refresh:        o.Refresher,
		rdb:            o.Redis,
		decimals:       o.Decimals,
		confirmTimeout: o.ConfirmTimeout,
		receiptPoll:    o.ReceiptPoll,
	}
	if c.decimals == 0 {
		c.decimals = amount.EtherDecimals
	}
	if c.confirmTimeout == 0 {
		c.confirmTimeout = 2 * time.Minute
	}
	if c.receiptPoll == 0 {
		c.receiptPoll = 2 * time.Second
	}
	if err := c.ResolveAdmins(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ResolveAdmins re-reads the admin identities from both contracts. Called
// at connect and again whenever an account change or admin handover makes
// the cached values stale.
func (c *Controller) ResolveAdmins(ctx context.Context) error {
	owner, err := c.cf.Owner(ctx)
	if err != nil {
		return err
	}
	admin, err := c.lend.AdminAddress(ctx)
	if err != nil {
		return err
	}
	c.adminMu.Lock()
	c.cfOwner = owner
	c.lendAdmin = admin
	c.adminMu.Unlock()
	return nil
}

// IsCrowdfundAdmin reports whether the session account owns the
// crowdfunding contract. Non-admin sessions expose no admin actions.
func (c *Controller) IsCrowdfundAdmin() bool {
	c.adminMu.RLock()
	defer c.adminMu.RUnlock()
	return c.account == c.cfOwner
}

func (c *Controller) IsLendingAdmin() bool {
	c.adminMu.RLock()
	defer c.adminMu.RUnlock()
	return c.account == c.lendAdmin
}

func (c *Controller) Account() common.Address { return c.account }

// run executes one lifecycle. build validates preconditions and returns the
// submit closure; validation failures never reach the wallet.
func (c *Controller) run(ctx context.Context, op string, build func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error), onConfirm func(ctx context.Context)) (Result, error) {
	r := Result{ID: uuid.NewString(), Op: op, Status: StatusBuilding}

	submit, err := build(ctx)
	if err != nil {
		return c.reject(r, err)
	}

	opts, err := c.opts(ctx)
	if err != nil {
		return c.reject(r, err)
	}
	tx, err := submit(opts)
	if err != nil {
		return c.reject(r, err)
	}
	r.Status = StatusSubmitted
	r.TxHash = tx.Hash().Hex()
	log.Printf("txflow %s [%s]: submitted %s", op, r.ID, r.TxHash)

	receipt, err := c.waitConfirmed(ctx, tx.Hash())
	if err != nil {
		return c.reject(r, err)
	}
	r.Status = StatusConfirmed
	r.Block = receipt.BlockNumber.Uint64()
	log.Printf("txflow %s [%s]: confirmed in block %d", op, r.ID, r.Block)

	if onConfirm != nil {
		onConfirm(ctx)
	}
	c.announce(ctx, r)
	return r, nil
}

func (c *Controller) reject(r Result, err error) (Result, error) {
	f := faults.AsFault(err)
	r.Status = StatusRejected
	if f.Class == faults.ContractRevert {
		r.Error = faults.RevertReason(f)
	} else {
		r.Error = f.Error()
	}
	log.Printf("txflow %s [%s]: %s: %v", r.Op, r.ID, f.Class, f)
	return r, f
}

// waitConfirmed polls for the receipt until one confirmation or the
// configured timeout. Single-confirmation finality is the accepted policy;
// there is no re-org handling and no retry.
func (c *Controller) waitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()
	for {
		receipt, err := c.receipts.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, faults.New(faults.ContractRevert, "transaction %s reverted", hash.Hex())
			}
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, faults.Wrap(faults.Unknown, ctx.Err(), "confirmation wait for "+hash.Hex())
		case <-ticker.C:
		}
	}
}

func (c *Controller) announce(ctx context.Context, r Result) {
	if c.rdb == nil {
		return
	}
	err := data.AnnounceTx(ctx, c.rdb, map[string]interface{}{
		"op":      r.Op,
		"tx":      r.TxHash,
		"block":   r.Block,
		"account": c.account.Hex(),
	})
	if err != nil {
		log.Printf("txflow: announce %s: %v", r.Op, err)
	}
}

// Post-confirmation refresh wrappers. A refresh failure leaves a stale
// snapshot behind a confirmed write, so it is always logged; the next
// poll cycle repairs the snapshot.
func (c *Controller) refreshCampaigns(ctx context.Context) {
	if _, err := c.refresh.RefreshCampaigns(ctx); err != nil {
		log.Printf("txflow: campaigns refresh: %v", err)
	}
}

func (c *Controller) refreshProposals(ctx context.Context, campaignID uint64) {
	if _, err := c.refresh.RefreshProposals(ctx, campaignID); err != nil {
		log.Printf("txflow: proposals refresh for campaign %d: %v", campaignID, err)
	}
}

func (c *Controller) refreshAdminProposals(ctx context.Context) {
	if _, err := c.refresh.RefreshAdminProposals(ctx); err != nil {
		log.Printf("txflow: admin proposals refresh: %v", err)
	}
}

func (c *Controller) refreshLoanRequests(ctx context.Context) {
	if _, err := c.refresh.RefreshLoanRequests(ctx); err != nil {
		log.Printf("txflow: loan requests refresh: %v", err)
	}
}

func (c *Controller) refreshUserLoans(ctx context.Context, user common.Address) {
	if _, _, err := c.refresh.RefreshUserLoans(ctx, user); err != nil {
		log.Printf("txflow: loans refresh for %s: %v", user.Hex(), err)
	}
}

func (c *Controller) refreshReputation(ctx context.Context, user common.Address) {
	if _, err := c.refresh.RefreshReputation(ctx, user); err != nil {
		log.Printf("txflow: reputation refresh for %s: %v", user.Hex(), err)
	}
}

func (c *Controller) refreshStats(ctx context.Context) {
	if _, err := c.refresh.RefreshStats(ctx); err != nil {
		log.Printf("txflow: stats refresh: %v", err)
	}
}

// ---------- crowdfunding operations ----------

type CreateCampaignParams struct {
	Name        string
	Description string
	ImageURI    string
	Target      string
	Beneficiary string
}

func (c *Controller) CreateCampaign(ctx context.Context, p CreateCampaignParams) (Result, error) {
	return c.run(ctx, "create_campaign", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsCrowdfundAdmin() {
			return nil, faults.New(faults.Validation, "only the contract owner can create campaigns")
		}
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" {
			return nil, faults.New(faults.Validation, "name and description are required")
		}
		target, err := amount.ToUnits(p.Target, c.decimals)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(p.Beneficiary) {
			return nil, faults.New(faults.Validation, "beneficiary %q is not an address", p.Beneficiary)
		}
		beneficiary := common.HexToAddress(p.Beneficiary)
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.cf.CreateCampaign(opts, p.Name, p.Description, p.ImageURI, target, beneficiary)
		}, nil
	}, func(ctx context.Context) {
		c.refreshCampaigns(ctx)
	})
}

// Donate validates the amount before any wallet interaction and refreshes
// campaigns only on confirmation.
func (c *Controller) Donate(ctx context.Context, campaignID uint64, amt string) (Result, error) {
	return c.run(ctx, "donate", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if campaignID == 0 {
			return nil, faults.New(faults.Validation, "select a campaign first")
		}
		units, err := amount.ToUnits(amt, c.decimals)
		if err != nil {
			return nil, err
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			opts.Value = units
			return c.cf.Donate(opts, campaignID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshCampaigns(ctx)
	})
}

// CreateProposal is donor-only: the cumulative donation for the campaign
// must be non-zero before the wallet is touched.
func (c *Controller) CreateProposal(ctx context.Context, campaignID uint64, description, amt string) (Result, error) {
	return c.run(ctx, "create_proposal", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if campaignID == 0 {
			return nil, faults.New(faults.Validation, "select a campaign first")
		}
		if strings.TrimSpace(description) == "" {
			return nil, faults.New(faults.Validation, "description is required")
		}
		units, err := amount.ToUnits(amt, c.decimals)
		if err != nil {
			return nil, err
		}
		donated, err := c.cf.DonationOf(ctx, campaignID, c.account)
		if err != nil {
			return nil, err
		}
		if donated.Sign() == 0 {
			return nil, faults.New(faults.Validation, "only donors of campaign %d can propose", campaignID)
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.cf.CreateProposal(opts, campaignID, description, units)
		}, nil
	}, func(ctx context.Context) {
		c.refreshProposals(ctx, campaignID)
	})
}

// Vote submits a for/against vote. Votes are non-retractable and the
// contract enforces one per address: a second attempt reverts on-chain and
// is surfaced as such, never double counted locally.
func (c *Controller) Vote(ctx context.Context, proposalID uint64, support bool) (Result, error) {
	var campaignID uint64
	return c.run(ctx, "vote", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if proposalID == 0 {
			return nil, faults.New(faults.Validation, "select a proposal first")
		}
		p, err := c.cf.ProposalAt(ctx, proposalID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "proposal not found")
		}
		campaignID = p.CampaignID
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.cf.Vote(opts, proposalID, support)
		}, nil
	}, func(ctx context.Context) {
		c.refreshProposals(ctx, campaignID)
		if c.IsCrowdfundAdmin() {
			c.refreshAdminProposals(ctx)
		}
	})
}

// ExecuteProposal is admin-only and prechecks executability from current
// chain state: not yet executed, votes for strictly above votes against.
func (c *Controller) ExecuteProposal(ctx context.Context, proposalID uint64) (Result, error) {
	var campaignID uint64
	return c.run(ctx, "execute_proposal", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsCrowdfundAdmin() {
			return nil, faults.New(faults.Validation, "only the contract owner can execute proposals")
		}
		p, err := c.cf.ProposalAt(ctx, proposalID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "proposal not found")
		}
		if !viewmodel.Executable(p) {
			return nil, faults.New(faults.Validation, "proposal %d is not executable", proposalID)
		}
		campaignID = p.CampaignID
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.cf.ExecuteProposal(opts, proposalID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshProposals(ctx, campaignID)
		c.refreshAdminProposals(ctx)
	})
}

// ---------- lending operations ----------

func (c *Controller) RegisterUser(ctx context.Context) (Result, error) {
	return c.run(ctx, "register_user", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.RegisterUser(opts)
		}, nil
	}, func(ctx context.Context) {
		c.refreshReputation(ctx, c.account)
	})
}

type LoanRequestParams struct {
	Amount         string
	DurationDays   uint64
	MaxInterestPct string
	Purpose        string
	Collateral     string
}

// CreateLoanRequest posts collateral atomically with the request: as call
// value in native mode, via a prior confirmed approve in token mode.
func (c *Controller) CreateLoanRequest(ctx context.Context, p LoanRequestParams) (Result, error) {
	return c.run(ctx, "create_loan_request", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		units, err := amount.ToUnits(p.Amount, c.decimals)
		if err != nil {
			return nil, err
		}
		if p.DurationDays == 0 {
			return nil, faults.New(faults.Validation, "duration must be at least one day")
		}
		maxRate, err := amount.BasisPoints(p.MaxInterestPct)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Purpose) == "" {
			return nil, faults.New(faults.Validation, "purpose is required")
		}
		collateral, err := amount.ToUnits(p.Collateral, c.decimals)
		if err != nil {
			return nil, err
		}
		tokenMode, err := c.ensureAllowance(ctx, collateral)
		if err != nil {
			return nil, err
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			if !tokenMode {
				opts.Value = collateral
			}
			return c.lend.CreateLoanRequest(opts, units, p.DurationDays, maxRate, p.Purpose)
		}, nil
	}, func(ctx context.Context) {
		c.refreshLoanRequests(ctx)
		c.refreshReputation(ctx, c.account)
	})
}

func (c *Controller) CancelLoanRequest(ctx context.Context, requestID uint64) (Result, error) {
	return c.run(ctx, "cancel_loan_request", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if requestID == 0 {
			return nil, faults.New(faults.Validation, "request id is required")
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.CancelLoanRequest(opts, requestID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshLoanRequests(ctx)
	})
}

// CreateFundingOffer prechecks the offered rate against the borrower's
// stated maximum from the open request.
func (c *Controller) CreateFundingOffer(ctx context.Context, requestID uint64, interestPct string) (Result, error) {
	return c.run(ctx, "create_funding_offer", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		rate, err := amount.BasisPoints(interestPct)
		if err != nil {
			return nil, err
		}
		req, err := c.lend.LoanRequestAt(ctx, requestID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "loan request not found")
		}
		if req.Status != contracts.RequestOpen {
			return nil, faults.New(faults.Validation, "loan request %d is not open", requestID)
		}
		if req.MaxInterestRate != nil && rate.Cmp(req.MaxInterestRate) > 0 {
			return nil, faults.New(faults.Validation, "rate exceeds the borrower's maximum of %s%%", amount.PercentFromBasisPoints(req.MaxInterestRate))
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.CreateFundingOffer(opts, requestID, rate)
		}, nil
	}, func(ctx context.Context) {
		c.refreshLoanRequests(ctx)
	})
}

func (c *Controller) CancelFundingOffer(ctx context.Context, offerID uint64) (Result, error) {
	return c.run(ctx, "cancel_funding_offer", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if offerID == 0 {
			return nil, faults.New(faults.Validation, "offer id is required")
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.CancelFundingOffer(opts, offerID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshLoanRequests(ctx)
	})
}

func (c *Controller) AcceptFundingOffer(ctx context.Context, offerID uint64) (Result, error) {
	return c.run(ctx, "accept_funding_offer", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		offer, err := c.lend.FundingOfferAt(ctx, offerID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "funding offer not found")
		}
		if offer.Status != contracts.OfferPending {
			return nil, faults.New(faults.Validation, "funding offer %d is not pending", offerID)
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.AcceptFundingOffer(opts, offerID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshLoanRequests(ctx)
	})
}

// FundAcceptedOffer moves the principal: as call value in native mode, via
// allowance in token mode.
func (c *Controller) FundAcceptedOffer(ctx context.Context, offerID uint64) (Result, error) {
	return c.run(ctx, "fund_accepted_offer", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		offer, err := c.lend.FundingOfferAt(ctx, offerID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "funding offer not found")
		}
		if offer.Status != contracts.OfferAccepted {
			return nil, faults.New(faults.Validation, "funding offer %d has not been accepted", offerID)
		}
		req, err := c.lend.LoanRequestAt(ctx, offer.RequestID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "loan request not found")
		}
		tokenMode, err := c.ensureAllowance(ctx, req.Amount)
		if err != nil {
			return nil, err
		}
		principal := req.Amount
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			if !tokenMode {
				opts.Value = principal
			}
			return c.lend.FundAcceptedOffer(opts, offerID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshLoanRequests(ctx)
		c.refreshUserLoans(ctx, c.account)
		c.refreshReputation(ctx, c.account)
		c.refreshStats(ctx)
	})
}

// RepayLoan sends the full outstanding remainder; the contract enforces
// full repayment, so anything less is rejected client-side.
func (c *Controller) RepayLoan(ctx context.Context, loanID uint64) (Result, error) {
	return c.run(ctx, "repay_loan", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		loan, err := c.lend.LoanAt(ctx, loanID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "loan not found")
		}
		if loan.Status != contracts.LoanActive {
			return nil, faults.New(faults.Validation, "loan %d is not active", loanID)
		}
		due := viewmodel.OutstandingDue(loan.Amount, loan.InterestRate, loan.RepaidAmount)
		if due.Sign() == 0 {
			return nil, faults.New(faults.Validation, "loan %d has nothing outstanding", loanID)
		}
		tokenMode, err := c.ensureAllowance(ctx, due)
		if err != nil {
			return nil, err
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			if !tokenMode {
				opts.Value = due
			}
			return c.lend.RepayLoan(opts, loanID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshUserLoans(ctx, c.account)
		c.refreshReputation(ctx, c.account)
		c.refreshStats(ctx)
	})
}

func (c *Controller) MarkLoanDefaulted(ctx context.Context, loanID uint64) (Result, error) {
	var borrower common.Address
	return c.run(ctx, "mark_loan_defaulted", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsLendingAdmin() {
			return nil, faults.New(faults.Validation, "only the platform admin can mark defaults")
		}
		loan, err := c.lend.LoanAt(ctx, loanID)
		if err != nil {
			return nil, faults.Wrap(faults.Validation, err, "loan not found")
		}
		if loan.Status != contracts.LoanActive {
			return nil, faults.New(faults.Validation, "loan %d is not active", loanID)
		}
		borrower = loan.Borrower
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.MarkLoanDefaulted(opts, loanID)
		}, nil
	}, func(ctx context.Context) {
		c.refreshUserLoans(ctx, borrower)
		c.refreshReputation(ctx, borrower)
		c.refreshStats(ctx)
	})
}

// ---------- admin settings ----------

func (c *Controller) UpdatePlatformBaseRate(ctx context.Context, ratePct string) (Result, error) {
	return c.adminSetting(ctx, "update_base_rate", ratePct, c.lend.UpdatePlatformBaseRate)
}

func (c *Controller) UpdatePlatformFee(ctx context.Context, feePct string) (Result, error) {
	return c.adminSetting(ctx, "update_fee", feePct, c.lend.UpdatePlatformFee)
}

func (c *Controller) adminSetting(ctx context.Context, op, pct string, write func(*bind.TransactOpts, *big.Int) (*types.Transaction, error)) (Result, error) {
	return c.run(ctx, op, func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsLendingAdmin() {
			return nil, faults.New(faults.Validation, "only the platform admin can change settings")
		}
		bps, err := amount.BasisPoints(pct)
		if err != nil {
			return nil, err
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return write(opts, bps)
		}, nil
	}, func(ctx context.Context) {
		c.refreshStats(ctx)
	})
}

func (c *Controller) WithdrawPlatformFees(ctx context.Context) (Result, error) {
	return c.run(ctx, "withdraw_fees", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsLendingAdmin() {
			return nil, faults.New(faults.Validation, "only the platform admin can withdraw fees")
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.WithdrawPlatformFees(opts)
		}, nil
	}, func(ctx context.Context) {
		c.refreshStats(ctx)
	})
}

func (c *Controller) UpdateAdminAddress(ctx context.Context, newAdmin string) (Result, error) {
	return c.run(ctx, "update_admin_address", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsLendingAdmin() {
			return nil, faults.New(faults.Validation, "only the platform admin can hand over administration")
		}
		if !common.IsHexAddress(newAdmin) {
			return nil, faults.New(faults.Validation, "new admin %q is not an address", newAdmin)
		}
		addr := common.HexToAddress(newAdmin)
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.UpdateAdminAddress(opts, addr)
		}, nil
	}, func(ctx context.Context) {
		if err := c.ResolveAdmins(ctx); err != nil {
			log.Printf("txflow: re-resolve admins: %v", err)
		}
	})
}

func (c *Controller) EnableTokenMode(ctx context.Context, token string) (Result, error) {
	return c.run(ctx, "enable_token_mode", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsLendingAdmin() {
			return nil, faults.New(faults.Validation, "only the platform admin can change token mode")
		}
		if !common.IsHexAddress(token) {
			return nil, faults.New(faults.Validation, "token %q is not an address", token)
		}
		addr := common.HexToAddress(token)
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.EnableTokenMode(opts, addr)
		}, nil
	}, func(ctx context.Context) {
		c.refreshStats(ctx)
	})
}

func (c *Controller) DisableTokenMode(ctx context.Context) (Result, error) {
	return c.run(ctx, "disable_token_mode", func(ctx context.Context) (func(*bind.TransactOpts) (*types.Transaction, error), error) {
		if !c.IsLendingAdmin() {
			return nil, faults.New(faults.Validation, "only the platform admin can change token mode")
		}
		return func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return c.lend.DisableTokenMode(opts)
		}, nil
	}, func(ctx context.Context) {
		c.refreshStats(ctx)
	})
}

// ensureAllowance gates every value-moving lending call in token mode: if
// the platform's allowance is below needed, an approve is submitted and
// awaited to confirmation first. Reports whether token mode is active.
func (c *Controller) ensureAllowance(ctx context.Context, needed *big.Int) (bool, error) {
	tokenMode, err := c.lend.UsingToken(ctx)
	if err != nil {
		return false, err
	}
	if !tokenMode {
		return false, nil
	}
	tokenAddr, err := c.lend.LoanTokenAddress(ctx)
	if err != nil {
		return true, err
	}
	token, err := c.newToken(tokenAddr)
	if err != nil {
		return true, err
	}
	balance, err := token.BalanceOf(ctx, c.account)
	if err != nil {
		return true, err
	}
	if balance.Cmp(needed) < 0 {
		return true, faults.New(faults.Validation, "insufficient token balance: have %s, need %s", balance, needed)
	}
	allowance, err := token.Allowance(ctx, c.account, c.lendAddr)
	if err != nil {
		return true, err
	}
	if allowance.Cmp(needed) >= 0 {
		return true, nil
	}
	opts, err := c.opts(ctx)
	if err != nil {
		return true, err
	}
	tx, err := token.Approve(opts, c.lendAddr, needed)
	if err != nil {
		return true, faults.AsFault(err)
	}
	log.Printf("txflow: approve %s for %s: %s", needed, c.lendAddr.Hex(), tx.Hash().Hex())
	if _, err := c.waitConfirmed(ctx, tx.Hash()); err != nil {
		return true, err
	}
	return true, nil
}
