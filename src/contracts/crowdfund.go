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

// Campaign mirrors getCampaignDetails. IDs are 1-based and assigned by the
// contract; campaigns are never deleted.
type Campaign struct {
	ID           uint64
	Name         string
	Description  string
	ImageURI     string
	TargetAmount *big.Int
	RaisedAmount *big.Int
	Beneficiary  common.Address
	Active       bool
}

// Proposal mirrors the proposals mapping getter. A zero ID means the slot
// does not exist (solidity mapping getters return zero structs).
type Proposal struct {
	ID           uint64
	CampaignID   uint64
	Description  string
	Amount       *big.Int
	VotesFor     *big.Int
	VotesAgainst *big.Int
	Executed     bool
}

// Crowdfund binds the crowdfunding contract at a fixed address. Read calls
// run against the latest confirmed block; write calls return the pending
// transaction handle and must be awaited to confirmation by the caller.
type Crowdfund struct {
	Address common.Address
	bound   *bind.BoundContract
}

func NewCrowdfund(address common.Address, backend bind.ContractBackend) (*Crowdfund, error) {
	parsed, err := abi.JSON(strings.NewReader(crowdfundABI))
	if err != nil {
		return nil, err
	}
	return &Crowdfund{
		Address: address,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, nil),
	}, nil
}

func (c *Crowdfund) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, faults.Wrap(faults.ReadFailure, err, method)
	}
	return out, nil
}

func (c *Crowdfund) Owner(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	if err := wantLen("owner", out, 1); err != nil {
		return common.Address{}, err
	}
	return asAddress("owner", out, 0)
}

func (c *Crowdfund) CampaignCount(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "getCampaignCount")
	if err != nil {
		return 0, err
	}
	if err := wantLen("getCampaignCount", out, 1); err != nil {
		return 0, err
	}
	n, err := asBig("getCampaignCount", out, 0)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func (c *Crowdfund) CampaignAt(ctx context.Context, id uint64) (Campaign, error) {
	const method = "getCampaignDetails"
	out, err := c.call(ctx, method, new(big.Int).SetUint64(id))
	if err != nil {
		return Campaign{}, err
	}
	if err := wantLen(method, out, 7); err != nil {
		return Campaign{}, err
	}
	cm := Campaign{ID: id}
	if cm.Name, err = asString(method, out, 0); err != nil {
		return Campaign{}, err
	}
	if cm.Description, err = asString(method, out, 1); err != nil {
		return Campaign{}, err
	}
	if cm.ImageURI, err = asString(method, out, 2); err != nil {
		return Campaign{}, err
	}
	if cm.TargetAmount, err = asBig(method, out, 3); err != nil {
		return Campaign{}, err
	}
	if cm.RaisedAmount, err = asBig(method, out, 4); err != nil {
		return Campaign{}, err
	}
	if cm.Beneficiary, err = asAddress(method, out, 5); err != nil {
		return Campaign{}, err
	}
	if cm.Active, err = asBool(method, out, 6); err != nil {
		return Campaign{}, err
	}
	return cm, nil
}

// DonationOf returns the cumulative amount donated to a campaign by donor.
func (c *Crowdfund) DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (*big.Int, error) {
	out, err := c.call(ctx, "donations", new(big.Int).SetUint64(campaignID), donor)
	if err != nil {
		return nil, err
	}
	if err := wantLen("donations", out, 1); err != nil {
		return nil, err
	}
	return asBig("donations", out, 0)
}

// ProposalAt reads one proposal slot. A missing id decodes as a zero struct
// and is reported as a ReadFailure so enumeration treats it as nonexistent.
func (c *Crowdfund) ProposalAt(ctx context.Context, id uint64) (Proposal, error) {
	const method = "proposals"
	out, err := c.call(ctx, method, new(big.Int).SetUint64(id))
	if err != nil {
		return Proposal{}, err
	}
	if err := wantLen(method, out, 7); err != nil {
		return Proposal{}, err
	}
	rawID, err := asBig(method, out, 0)
	if err != nil {
		return Proposal{}, err
	}
	if rawID.Sign() == 0 {
		return Proposal{}, faults.New(faults.ReadFailure, "proposal %d does not exist", id)
	}
	p := Proposal{ID: rawID.Uint64()}
	campaignID, err := asBig(method, out, 1)
	if err != nil {
		return Proposal{}, err
	}
	p.CampaignID = campaignID.Uint64()
	if p.Description, err = asString(method, out, 2); err != nil {
		return Proposal{}, err
	}
	if p.Amount, err = asBig(method, out, 3); err != nil {
		return Proposal{}, err
	}
	if p.VotesFor, err = asBig(method, out, 4); err != nil {
		return Proposal{}, err
	}
	if p.VotesAgainst, err = asBig(method, out, 5); err != nil {
		return Proposal{}, err
	}
	if p.Executed, err = asBool(method, out, 6); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

func (c *Crowdfund) HasVoted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error) {
	out, err := c.call(ctx, "hasVoted", new(big.Int).SetUint64(proposalID), voter)
	if err != nil {
		return false, err
	}
	if err := wantLen("hasVoted", out, 1); err != nil {
		return false, err
	}
	return asBool("hasVoted", out, 0)
}

// Writes. All of these require a signing identity in opts and return the
// pending transaction without waiting for inclusion.

func (c *Crowdfund) CreateCampaign(opts *bind.TransactOpts, name, description, imageURI string, target *big.Int, beneficiary common.Address) (*types.Transaction, error) {
	return c.bound.Transact(opts, "createCampaign", name, description, imageURI, target, beneficiary)
}

func (c *Crowdfund) Donate(opts *bind.TransactOpts, campaignID uint64) (*types.Transaction, error) {
	return c.bound.Transact(opts, "donate", new(big.Int).SetUint64(campaignID))
}

func (c *Crowdfund) CreateProposal(opts *bind.TransactOpts, campaignID uint64, description string, amount *big.Int) (*types.Transaction, error) {
	return c.bound.Transact(opts, "createProposal", new(big.Int).SetUint64(campaignID), description, amount)
}

func (c *Crowdfund) Vote(opts *bind.TransactOpts, proposalID uint64, support bool) (*types.Transaction, error) {
	return c.bound.Transact(opts, "vote", new(big.Int).SetUint64(proposalID), support)
}

func (c *Crowdfund) ExecuteProposal(opts *bind.TransactOpts, proposalID uint64) (*types.Transaction, error) {
	return c.bound.Transact(opts, "executeProposal", new(big.Int).SetUint64(proposalID))
}
