// Package statesync pulls current on-chain state into view-model snapshots.
// Snapshots are disposable read-through copies: the contract is the sole
// source of truth and every refresh rebuilds them from scratch.
package statesync

import (
	"context"
	"log"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/chainfund/chainfund/src/amount"
	"github.com/chainfund/chainfund/src/contracts"
	"github.com/chainfund/chainfund/src/data"
	"github.com/chainfund/chainfund/src/viewmodel"
)

type CrowdfundReader interface {
	CampaignCount(ctx context.Context) (uint64, error)
	CampaignAt(ctx context.Context, id uint64) (contracts.Campaign, error)
	ProposalAt(ctx context.Context, id uint64) (contracts.Proposal, error)
	DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (*big.Int, error)
	HasVoted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error)
}

type LendingReader interface {
	ActiveLoanRequestIDs(ctx context.Context, offset, limit uint64) ([]uint64, error)
	LoanRequestAt(ctx context.Context, id uint64) (contracts.LoanRequest, error)
	LoanAt(ctx context.Context, id uint64) (contracts.Loan, error)
	UserActiveLoans(ctx context.Context, user common.Address) ([]uint64, error)
	UserActiveInvestments(ctx context.Context, user common.Address) ([]uint64, error)
	ReputationOf(ctx context.Context, user common.Address) (contracts.Reputation, error)
	RecommendedRate(ctx context.Context, borrower common.Address) (*big.Int, error)
	PlatformBaseRate(ctx context.Context) (*big.Int, error)
	Stats(ctx context.Context) (contracts.PlatformStats, error)
}

// ProposalIndex supplies proposal ids harvested from event logs. It is the
// primary enumeration source; sequential probing is the fallback.
type ProposalIndex interface {
	ProposalIDs(campaignID uint64) ([]uint64, error)
	// OpenProposalIDs excludes proposals already marked executed.
	OpenProposalIDs(campaignID uint64) ([]uint64, error)
}

const requestPageSize = 50

const refreshTimeout = 30 * time.Second

// detach severs a refresh from the caller that initiated it. Coalesced
// callers share one flight, so cancelling the first request must not fail
// the refresh for the rest; the timeout bounds the orphaned work.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
}

type Synchronizer struct {
	cf       CrowdfundReader
	lend     LendingReader
	index    ProposalIndex // nil disables the indexed path
	rdb      *redis.Client // nil disables the snapshot mirror
	decimals int32

	probeCeiling int
	missLimit    int

	flight singleflight.Group

	mu              sync.RWMutex
	campaigns       []viewmodel.Campaign
	proposals       map[uint64][]viewmodel.Proposal
	adminProposals  []viewmodel.Proposal
	loanRequests    []viewmodel.LoanRequest
	userLoans       map[common.Address][]viewmodel.Loan
	userInvestments map[common.Address][]viewmodel.Loan
	reputations     map[common.Address]viewmodel.Reputation
	stats           viewmodel.PlatformStats
	haveStats       bool
}

type Option func(*Synchronizer)

func WithIndex(index ProposalIndex) Option {
	return func(s *Synchronizer) { s.index = index }
}

func WithRedis(rdb *redis.Client) Option {
	return func(s *Synchronizer) { s.rdb = rdb }
}

func WithProbeBounds(ceiling, missLimit int) Option {
	return func(s *Synchronizer) {
		s.probeCeiling = ceiling
		s.missLimit = missLimit
	}
}

func New(cf CrowdfundReader, lend LendingReader, decimals int32, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		cf:              cf,
		lend:            lend,
		decimals:        decimals,
		probeCeiling:    200,
		missLimit:       10,
		proposals:       make(map[uint64][]viewmodel.Proposal),
		userLoans:       make(map[common.Address][]viewmodel.Loan),
		userInvestments: make(map[common.Address][]viewmodel.Loan),
		reputations:     make(map[common.Address]viewmodel.Reputation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshCampaigns enumerates campaigns 1..count. A failed item read is
// logged and skipped; only the count read aborts the refresh.
func (s *Synchronizer) RefreshCampaigns(ctx context.Context) ([]viewmodel.Campaign, error) {
	v, err, _ := s.flight.Do("campaigns", func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		count, err := s.cf.CampaignCount(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]viewmodel.Campaign, 0, count)
		for id := uint64(1); id <= count; id++ {
			c, err := s.cf.CampaignAt(ctx, id)
			if err != nil {
				log.Printf("statesync: campaign %d: %v", id, err)
				continue
			}
			out = append(out, viewmodel.FromCampaign(c, s.decimals))
		}
		s.mu.Lock()
		s.campaigns = out
		s.mu.Unlock()
		s.mirror(ctx, "campaigns", out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]viewmodel.Campaign), nil
}

// RefreshProposals rebuilds the proposal list for one campaign.
func (s *Synchronizer) RefreshProposals(ctx context.Context, campaignID uint64) ([]viewmodel.Proposal, error) {
	key := "proposals:" + strconv.FormatUint(campaignID, 10)
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		raw := s.enumerateProposals(ctx, campaignID, false)
		out := make([]viewmodel.Proposal, 0, len(raw))
		for _, p := range raw {
			out = append(out, viewmodel.FromProposal(p, s.decimals))
		}
		s.mu.Lock()
		s.proposals[campaignID] = out
		s.mu.Unlock()
		s.mirror(ctx, key, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]viewmodel.Proposal), nil
}

// RefreshAdminProposals rebuilds the executable set across all campaigns:
// proposals not yet executed with votesFor > votesAgainst.
func (s *Synchronizer) RefreshAdminProposals(ctx context.Context) ([]viewmodel.Proposal, error) {
	v, err, _ := s.flight.Do("proposals:admin", func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		raw := s.enumerateProposals(ctx, 0, true)
		out := make([]viewmodel.Proposal, 0)
		for _, p := range raw {
			if viewmodel.Executable(p) {
				out = append(out, viewmodel.FromProposal(p, s.decimals))
			}
		}
		s.mu.Lock()
		s.adminProposals = out
		s.mu.Unlock()
		s.mirror(ctx, "proposals:admin", out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]viewmodel.Proposal), nil
}

// enumerateProposals walks proposal ids, preferring the event index. The
// probing fallback treats any read failure as "id does not exist" and stops
// after missLimit consecutive misses or at the ceiling. Real ids past the
// miss threshold are lost; that is the accepted limitation of probing, which
// is why the index is the primary path. openOnly narrows the indexed path
// to proposals not yet executed; the probing path has no executed column
// and leaves that filtering to the caller.
func (s *Synchronizer) enumerateProposals(ctx context.Context, campaignID uint64, openOnly bool) []contracts.Proposal {
	if s.index != nil {
		lookup := s.index.ProposalIDs
		if openOnly {
			lookup = s.index.OpenProposalIDs
		}
		if ids, err := lookup(campaignID); err == nil && len(ids) > 0 {
			out := make([]contracts.Proposal, 0, len(ids))
			for _, id := range ids {
				p, err := s.cf.ProposalAt(ctx, id)
				if err != nil {
					log.Printf("statesync: indexed proposal %d: %v", id, err)
					continue
				}
				if campaignID == 0 || p.CampaignID == campaignID {
					out = append(out, p)
				}
			}
			return out
		} else if err != nil {
			log.Printf("statesync: proposal index: %v, falling back to probing", err)
		}
	}
	return s.probeProposals(ctx, campaignID)
}

func (s *Synchronizer) probeProposals(ctx context.Context, campaignID uint64) []contracts.Proposal {
	var out []contracts.Proposal
	misses := 0
	for id := 1; id <= s.probeCeiling; id++ {
		if ctx.Err() != nil {
			break
		}
		p, err := s.cf.ProposalAt(ctx, uint64(id))
		if err != nil {
			misses++
			if misses >= s.missLimit {
				break
			}
			continue
		}
		misses = 0
		if campaignID == 0 || p.CampaignID == campaignID {
			out = append(out, p)
		}
	}
	return out
}

// RefreshLoanRequests pages through the contract's active-request ids.
func (s *Synchronizer) RefreshLoanRequests(ctx context.Context) ([]viewmodel.LoanRequest, error) {
	v, err, _ := s.flight.Do("loan_requests", func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		out := make([]viewmodel.LoanRequest, 0)
		for offset := uint64(0); ; offset += requestPageSize {
			ids, err := s.lend.ActiveLoanRequestIDs(ctx, offset, requestPageSize)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				r, err := s.lend.LoanRequestAt(ctx, id)
				if err != nil {
					log.Printf("statesync: loan request %d: %v", id, err)
					continue
				}
				out = append(out, viewmodel.FromLoanRequest(r, s.decimals))
			}
			if uint64(len(ids)) < requestPageSize {
				break
			}
		}
		s.mu.Lock()
		s.loanRequests = out
		s.mu.Unlock()
		s.mirror(ctx, "loan_requests", out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]viewmodel.LoanRequest), nil
}

// RefreshUserLoans rebuilds loans and investments for one address.
func (s *Synchronizer) RefreshUserLoans(ctx context.Context, user common.Address) ([]viewmodel.Loan, []viewmodel.Loan, error) {
	v, err, _ := s.flight.Do("user_loans:"+user.Hex(), func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		loans, err := s.loanSet(ctx, user, s.lend.UserActiveLoans)
		if err != nil {
			return nil, err
		}
		invs, err := s.loanSet(ctx, user, s.lend.UserActiveInvestments)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.userLoans[user] = loans
		s.userInvestments[user] = invs
		s.mu.Unlock()
		return [2][]viewmodel.Loan{loans, invs}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	pair := v.([2][]viewmodel.Loan)
	return pair[0], pair[1], nil
}

func (s *Synchronizer) loanSet(ctx context.Context, user common.Address, list func(context.Context, common.Address) ([]uint64, error)) ([]viewmodel.Loan, error) {
	ids, err := list(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]viewmodel.Loan, 0, len(ids))
	for _, id := range ids {
		l, err := s.lend.LoanAt(ctx, id)
		if err != nil {
			log.Printf("statesync: loan %d: %v", id, err)
			continue
		}
		out = append(out, viewmodel.FromLoan(l, s.decimals))
	}
	return out, nil
}

func (s *Synchronizer) RefreshReputation(ctx context.Context, user common.Address) (viewmodel.Reputation, error) {
	v, err, _ := s.flight.Do("reputation:"+user.Hex(), func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		r, err := s.lend.ReputationOf(ctx, user)
		if err != nil {
			return nil, err
		}
		vm := viewmodel.FromReputation(r)
		if rate, err := s.lend.RecommendedRate(ctx, user); err == nil {
			vm.RecommendedRatePct = amount.PercentFromBasisPoints(rate)
		} else {
			log.Printf("statesync: recommended rate for %s: %v", user.Hex(), err)
		}
		s.mu.Lock()
		s.reputations[user] = vm
		s.mu.Unlock()
		return vm, nil
	})
	if err != nil {
		return viewmodel.Reputation{}, err
	}
	return v.(viewmodel.Reputation), nil
}

func (s *Synchronizer) RefreshStats(ctx context.Context) (viewmodel.PlatformStats, error) {
	v, err, _ := s.flight.Do("stats", func() (interface{}, error) {
		ctx, cancel := detach(ctx)
		defer cancel()
		st, err := s.lend.Stats(ctx)
		if err != nil {
			return nil, err
		}
		vm := viewmodel.FromStats(st, s.decimals)
		if rate, err := s.lend.PlatformBaseRate(ctx); err == nil {
			vm.BaseRatePct = amount.PercentFromBasisPoints(rate)
		} else {
			log.Printf("statesync: platform base rate: %v", err)
		}
		s.mu.Lock()
		s.stats = vm
		s.haveStats = true
		s.mu.Unlock()
		s.mirror(ctx, "stats", vm)
		return vm, nil
	})
	if err != nil {
		return viewmodel.PlatformStats{}, err
	}
	return v.(viewmodel.PlatformStats), nil
}

// DonationOf reports the caller's cumulative donation for a campaign as a
// display amount. Uncached passthrough: per-donor state is too sparse to
// snapshot.
func (s *Synchronizer) DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (string, error) {
	v, err := s.cf.DonationOf(ctx, campaignID, donor)
	if err != nil {
		return "", err
	}
	return amount.FromUnits(v, s.decimals), nil
}

// Voted reports whether an account already voted on a proposal. Uncached
// passthrough, same as DonationOf.
func (s *Synchronizer) Voted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error) {
	return s.cf.HasVoted(ctx, proposalID, voter)
}

// WarmStart seeds the list snapshots from the redis mirror of the previous
// run so the first reads after a restart do not wait on the chain. The
// refresh loop replaces them on its first pass.
func (s *Synchronizer) WarmStart(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	var campaigns []viewmodel.Campaign
	if err := data.LoadSnapshot(ctx, s.rdb, "campaigns", &campaigns); err == nil && len(campaigns) > 0 {
		s.mu.Lock()
		s.campaigns = campaigns
		s.mu.Unlock()
	}
	var requests []viewmodel.LoanRequest
	if err := data.LoadSnapshot(ctx, s.rdb, "loan_requests", &requests); err == nil && len(requests) > 0 {
		s.mu.Lock()
		s.loanRequests = requests
		s.mu.Unlock()
	}
	var stats viewmodel.PlatformStats
	if err := data.LoadSnapshot(ctx, s.rdb, "stats", &stats); err == nil && stats.TotalLoanRequests != "" {
		s.mu.Lock()
		s.stats = stats
		s.haveStats = true
		s.mu.Unlock()
	}
}

// Snapshot getters. They serve the cached copy and refresh on first use.

func (s *Synchronizer) Campaigns(ctx context.Context) ([]viewmodel.Campaign, error) {
	s.mu.RLock()
	cached := s.campaigns
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return s.RefreshCampaigns(ctx)
}

func (s *Synchronizer) Proposals(ctx context.Context, campaignID uint64) ([]viewmodel.Proposal, error) {
	s.mu.RLock()
	cached, ok := s.proposals[campaignID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	return s.RefreshProposals(ctx, campaignID)
}

func (s *Synchronizer) AdminProposals(ctx context.Context) ([]viewmodel.Proposal, error) {
	s.mu.RLock()
	cached := s.adminProposals
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return s.RefreshAdminProposals(ctx)
}

func (s *Synchronizer) LoanRequests(ctx context.Context) ([]viewmodel.LoanRequest, error) {
	s.mu.RLock()
	cached := s.loanRequests
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return s.RefreshLoanRequests(ctx)
}

func (s *Synchronizer) UserLoans(ctx context.Context, user common.Address) ([]viewmodel.Loan, []viewmodel.Loan, error) {
	s.mu.RLock()
	loans, ok1 := s.userLoans[user]
	invs, ok2 := s.userInvestments[user]
	s.mu.RUnlock()
	if ok1 && ok2 {
		return loans, invs, nil
	}
	return s.RefreshUserLoans(ctx, user)
}

func (s *Synchronizer) Reputation(ctx context.Context, user common.Address) (viewmodel.Reputation, error) {
	s.mu.RLock()
	cached, ok := s.reputations[user]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	return s.RefreshReputation(ctx, user)
}

func (s *Synchronizer) Stats(ctx context.Context) (viewmodel.PlatformStats, error) {
	s.mu.RLock()
	have := s.haveStats
	cached := s.stats
	s.mu.RUnlock()
	if have {
		return cached, nil
	}
	return s.RefreshStats(ctx)
}

// RefreshAll primes every global snapshot, used on connect and after a
// chain-change rebuild. Per-section failures are logged, not fatal.
func (s *Synchronizer) RefreshAll(ctx context.Context) {
	if _, err := s.RefreshCampaigns(ctx); err != nil {
		log.Printf("statesync: campaigns: %v", err)
	}
	if _, err := s.RefreshAdminProposals(ctx); err != nil {
		log.Printf("statesync: admin proposals: %v", err)
	}
	if _, err := s.RefreshLoanRequests(ctx); err != nil {
		log.Printf("statesync: loan requests: %v", err)
	}
	if _, err := s.RefreshStats(ctx); err != nil {
		log.Printf("statesync: stats: %v", err)
	}
}

func (s *Synchronizer) mirror(ctx context.Context, key string, v interface{}) {
	if s.rdb == nil {
		return
	}
	if err := data.SaveSnapshot(ctx, s.rdb, key, v); err != nil {
		log.Printf("statesync: snapshot %s: %v", key, err)
	}
}
