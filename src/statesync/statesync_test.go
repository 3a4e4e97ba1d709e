package statesync

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainfund/chainfund/src/contracts"
	"github.com/chainfund/chainfund/src/faults"
)

type fakeCrowdfund struct {
	mu        sync.Mutex
	campaigns map[uint64]contracts.Campaign
	proposals map[uint64]contracts.Proposal
	fetched   []uint64 // proposal ids read via ProposalAt
	countErr  error
	calls     int32
	block     chan struct{} // when set, CampaignCount blocks until closed
}

func (f *fakeCrowdfund) CampaignCount(ctx context.Context) (uint64, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	var maxID uint64
	for id := range f.campaigns {
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

func (f *fakeCrowdfund) CampaignAt(ctx context.Context, id uint64) (contracts.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return contracts.Campaign{}, faults.New(faults.ReadFailure, "campaign %d does not exist", id)
	}
	return c, nil
}

func (f *fakeCrowdfund) ProposalAt(ctx context.Context, id uint64) (contracts.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	p, ok := f.proposals[id]
	if !ok {
		return contracts.Proposal{}, faults.New(faults.ReadFailure, "proposal %d does not exist", id)
	}
	return p, nil
}

func (f *fakeCrowdfund) DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeCrowdfund) HasVoted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error) {
	return false, nil
}

type fakeLending struct {
	requests map[uint64]contracts.LoanRequest
	order    []uint64
	loans    map[uint64]contracts.Loan
	byUser   map[common.Address][]uint64
	byLender map[common.Address][]uint64
	rep      map[common.Address]contracts.Reputation
}

func (f *fakeLending) ActiveLoanRequestIDs(ctx context.Context, offset, limit uint64) ([]uint64, error) {
	if offset >= uint64(len(f.order)) {
		return nil, nil
	}
	end := offset + limit
	if end > uint64(len(f.order)) {
		end = uint64(len(f.order))
	}
	return f.order[offset:end], nil
}

func (f *fakeLending) LoanRequestAt(ctx context.Context, id uint64) (contracts.LoanRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return contracts.LoanRequest{}, faults.New(faults.ReadFailure, "loan request %d does not exist", id)
	}
	return r, nil
}

func (f *fakeLending) LoanAt(ctx context.Context, id uint64) (contracts.Loan, error) {
	l, ok := f.loans[id]
	if !ok {
		return contracts.Loan{}, faults.New(faults.ReadFailure, "loan %d does not exist", id)
	}
	return l, nil
}

func (f *fakeLending) UserActiveLoans(ctx context.Context, user common.Address) ([]uint64, error) {
	return f.byUser[user], nil
}

func (f *fakeLending) UserActiveInvestments(ctx context.Context, user common.Address) ([]uint64, error) {
	return f.byLender[user], nil
}

func (f *fakeLending) ReputationOf(ctx context.Context, user common.Address) (contracts.Reputation, error) {
	return f.rep[user], nil
}

func (f *fakeLending) RecommendedRate(ctx context.Context, borrower common.Address) (*big.Int, error) {
	return big.NewInt(750), nil
}

func (f *fakeLending) PlatformBaseRate(ctx context.Context) (*big.Int, error) {
	return big.NewInt(500), nil
}

func (f *fakeLending) Stats(ctx context.Context) (contracts.PlatformStats, error) {
	return contracts.PlatformStats{
		TotalLoanRequests:     big.NewInt(int64(len(f.requests))),
		TotalFundedLoans:      big.NewInt(int64(len(f.loans))),
		CurrentPlatformFee:    big.NewInt(100),
		PlatformFeesCollected: big.NewInt(0),
	}, nil
}

type staticIndex struct {
	ids  map[uint64][]uint64 // campaignID -> ids, 0 = all
	open map[uint64][]uint64 // not-yet-executed subset; nil means same as ids
	err  error
}

func (s staticIndex) ProposalIDs(campaignID uint64) ([]uint64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ids[campaignID], nil
}

func (s staticIndex) OpenProposalIDs(campaignID uint64) ([]uint64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.open != nil {
		return s.open[campaignID], nil
	}
	return s.ids[campaignID], nil
}

func proposal(id, campaignID uint64, forVotes, against int64, executed bool) contracts.Proposal {
	return contracts.Proposal{
		ID:           id,
		CampaignID:   campaignID,
		Amount:       big.NewInt(1000),
		VotesFor:     big.NewInt(forVotes),
		VotesAgainst: big.NewInt(against),
		Executed:     executed,
	}
}

func TestRefreshCampaignsSkipsFailedItem(t *testing.T) {
	cf := &fakeCrowdfund{campaigns: map[uint64]contracts.Campaign{
		1: {ID: 1, Name: "a", TargetAmount: big.NewInt(100), RaisedAmount: big.NewInt(10)},
		3: {ID: 3, Name: "c", TargetAmount: big.NewInt(100), RaisedAmount: big.NewInt(10)},
		// id 2 missing: item read fails, refresh must continue
	}}
	s := New(cf, &fakeLending{}, 18)
	got, err := s.RefreshCampaigns(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("campaigns = %+v", got)
	}
}

func TestRefreshCampaignsCountFailureAborts(t *testing.T) {
	cf := &fakeCrowdfund{countErr: errors.New("boom")}
	s := New(cf, &fakeLending{}, 18)
	if _, err := s.RefreshCampaigns(context.Background()); err == nil {
		t.Fatal("count failure should abort the refresh")
	}
}

// Probing must recover exactly the real ids regardless of interleaving with
// gaps, as long as no gap reaches the consecutive-miss threshold.
func TestProbeRecoversInterleavedIDs(t *testing.T) {
	cf := &fakeCrowdfund{proposals: map[uint64]contracts.Proposal{
		1:  proposal(1, 7, 1, 0, false),
		2:  proposal(2, 8, 1, 0, false),
		5:  proposal(5, 7, 0, 1, false), // gap of 2 below threshold
		9:  proposal(9, 7, 3, 1, true),  // gap of 3 below threshold
		12: proposal(12, 9, 1, 0, false),
	}}
	s := New(cf, &fakeLending{}, 18, WithProbeBounds(50, 5))

	all := s.probeProposals(context.Background(), 0)
	if len(all) != 5 {
		t.Fatalf("recovered %d proposals, want 5", len(all))
	}
	mine := s.probeProposals(context.Background(), 7)
	if len(mine) != 3 {
		t.Fatalf("campaign 7 recovered %d, want 3", len(mine))
	}
	for _, p := range mine {
		if p.CampaignID != 7 {
			t.Fatalf("leaked proposal from campaign %d", p.CampaignID)
		}
	}
}

// A gap of missLimit consecutive ids ends the probe: real ids past it are
// lost. This is the documented limitation of the fallback, not a bug.
func TestProbeStopsAtConsecutiveMissThreshold(t *testing.T) {
	cf := &fakeCrowdfund{proposals: map[uint64]contracts.Proposal{
		1:  proposal(1, 1, 1, 0, false),
		10: proposal(10, 1, 1, 0, false), // 8 misses in between >= limit 5
	}}
	s := New(cf, &fakeLending{}, 18, WithProbeBounds(50, 5))
	got := s.probeProposals(context.Background(), 0)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("probe past the miss threshold: %+v", got)
	}
}

func TestProbeMissCounterResetsOnHit(t *testing.T) {
	// Gaps of 4 with limit 5: every real id must be found.
	props := map[uint64]contracts.Proposal{}
	for _, id := range []uint64{1, 6, 11, 16} {
		props[id] = proposal(id, 1, 1, 0, false)
	}
	cf := &fakeCrowdfund{proposals: props}
	s := New(cf, &fakeLending{}, 18, WithProbeBounds(30, 5))
	got := s.probeProposals(context.Background(), 0)
	if len(got) != 4 {
		t.Fatalf("recovered %d, want 4", len(got))
	}
}

func TestEnumeratePrefersIndexOverProbing(t *testing.T) {
	cf := &fakeCrowdfund{proposals: map[uint64]contracts.Proposal{
		// id 40 sits far past any probe window with missLimit 2
		40: proposal(40, 3, 2, 0, false),
		1:  proposal(1, 3, 1, 0, false),
	}}
	s := New(cf, &fakeLending{}, 18,
		WithProbeBounds(100, 2),
		WithIndex(staticIndex{ids: map[uint64][]uint64{3: {1, 40}}}))
	got := s.enumerateProposals(context.Background(), 3, false)
	if len(got) != 2 {
		t.Fatalf("indexed enumeration found %d, want 2", len(got))
	}
}

func TestEnumerateFallsBackWhenIndexErrors(t *testing.T) {
	cf := &fakeCrowdfund{proposals: map[uint64]contracts.Proposal{
		1: proposal(1, 3, 1, 0, false),
	}}
	s := New(cf, &fakeLending{}, 18,
		WithProbeBounds(10, 3),
		WithIndex(staticIndex{err: errors.New("db down")}))
	got := s.enumerateProposals(context.Background(), 3, false)
	if len(got) != 1 {
		t.Fatalf("fallback found %d, want 1", len(got))
	}
}

func TestAdminRefreshSkipsExecutedViaIndex(t *testing.T) {
	cf := &fakeCrowdfund{proposals: map[uint64]contracts.Proposal{
		1: proposal(1, 1, 2, 0, false),
		2: proposal(2, 1, 5, 0, true), // indexed as executed
	}}
	s := New(cf, &fakeLending{}, 18,
		WithProbeBounds(10, 3),
		WithIndex(staticIndex{
			ids:  map[uint64][]uint64{0: {1, 2}},
			open: map[uint64][]uint64{0: {1}},
		}))

	got, err := s.RefreshAdminProposals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("executable set = %+v, want only proposal 1", got)
	}
	// The executed proposal is filtered in the index query, not read first
	// and discarded.
	for _, id := range cf.fetched {
		if id == 2 {
			t.Fatal("executed proposal was read from chain")
		}
	}
}

func TestRefreshAdminProposalsFiltersExecutable(t *testing.T) {
	cf := &fakeCrowdfund{proposals: map[uint64]contracts.Proposal{
		1: proposal(1, 1, 2, 1, false), // executable
		2: proposal(2, 1, 1, 1, false), // tie
		3: proposal(3, 2, 5, 0, true),  // already executed
		4: proposal(4, 2, 3, 2, false), // executable
	}}
	s := New(cf, &fakeLending{}, 18, WithProbeBounds(10, 5))
	got, err := s.RefreshAdminProposals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("executable = %d, want 2", len(got))
	}
	for _, p := range got {
		if !p.Executable || p.Executed {
			t.Fatalf("non-executable leaked: %+v", p)
		}
	}
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	// A coalesced flight serves every waiter; the initiating request
	// going away must not fail the shared refresh.
	cf := &fakeCrowdfund{
		campaigns: map[uint64]contracts.Campaign{1: {ID: 1, TargetAmount: big.NewInt(1), RaisedAmount: big.NewInt(0)}},
	}
	s := New(cf, &fakeLending{}, 18)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := s.RefreshCampaigns(ctx)
	if err != nil {
		t.Fatalf("refresh failed under cancelled caller: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("campaigns = %d, want 1", len(got))
	}
}

func TestSingleFlightCoalescesConcurrentRefreshes(t *testing.T) {
	cf := &fakeCrowdfund{
		campaigns: map[uint64]contracts.Campaign{1: {ID: 1, TargetAmount: big.NewInt(1), RaisedAmount: big.NewInt(0)}},
		block:     make(chan struct{}),
	}
	s := New(cf, &fakeLending{}, 18)

	var wg sync.WaitGroup
	started := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			_, _ = s.RefreshCampaigns(context.Background())
		}()
	}
	for i := 0; i < 5; i++ {
		<-started
	}
	// give the stragglers a moment to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(cf.block)
	wg.Wait()
	if n := atomic.LoadInt32(&cf.calls); n >= 5 {
		t.Fatalf("count read %d times, expected coalescing", n)
	}
}

func TestRefreshLoanRequestsPagesAndSkips(t *testing.T) {
	lend := &fakeLending{
		requests: map[uint64]contracts.LoanRequest{},
	}
	for id := uint64(1); id <= 60; id++ {
		lend.order = append(lend.order, id)
		if id == 30 {
			continue // detail read for 30 fails, must be skipped
		}
		lend.requests[id] = contracts.LoanRequest{
			ID:               id,
			Amount:           big.NewInt(1000),
			MaxInterestRate:  big.NewInt(500),
			CollateralAmount: big.NewInt(100),
			Status:           contracts.RequestOpen,
		}
	}
	s := New(&fakeCrowdfund{}, lend, 18)
	got, err := s.RefreshLoanRequests(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 59 {
		t.Fatalf("requests = %d, want 59", len(got))
	}
}

func TestSnapshotGettersServeCache(t *testing.T) {
	cf := &fakeCrowdfund{campaigns: map[uint64]contracts.Campaign{
		1: {ID: 1, Name: "x", TargetAmount: big.NewInt(1), RaisedAmount: big.NewInt(0)},
	}}
	s := New(cf, &fakeLending{}, 18)
	ctx := context.Background()

	if _, err := s.Campaigns(ctx); err != nil {
		t.Fatal(err)
	}
	before := atomic.LoadInt32(&cf.calls)
	if _, err := s.Campaigns(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&cf.calls) != before {
		t.Fatal("second read should serve the snapshot without a chain call")
	}
}
