package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/chainfund/chainfund/src/config"
	"github.com/chainfund/chainfund/src/faults"
	"github.com/chainfund/chainfund/src/txflow"
	"github.com/chainfund/chainfund/src/viewmodel"
)

type fakeState struct {
	campaigns []viewmodel.Campaign
	proposals []viewmodel.Proposal
	err       error
}

func (f *fakeState) Campaigns(ctx context.Context) ([]viewmodel.Campaign, error) {
	return f.campaigns, f.err
}

func (f *fakeState) Proposals(ctx context.Context, campaignID uint64) ([]viewmodel.Proposal, error) {
	return f.proposals, f.err
}

func (f *fakeState) AdminProposals(ctx context.Context) ([]viewmodel.Proposal, error) {
	return f.proposals, f.err
}

func (f *fakeState) LoanRequests(ctx context.Context) ([]viewmodel.LoanRequest, error) {
	return nil, f.err
}

func (f *fakeState) UserLoans(ctx context.Context, user common.Address) ([]viewmodel.Loan, []viewmodel.Loan, error) {
	return nil, nil, f.err
}

func (f *fakeState) Reputation(ctx context.Context, user common.Address) (viewmodel.Reputation, error) {
	return viewmodel.Reputation{}, f.err
}

func (f *fakeState) Stats(ctx context.Context) (viewmodel.PlatformStats, error) {
	return viewmodel.PlatformStats{}, f.err
}

func (f *fakeState) DonationOf(ctx context.Context, campaignID uint64, donor common.Address) (string, error) {
	return "0.5", f.err
}

func (f *fakeState) Voted(ctx context.Context, proposalID uint64, voter common.Address) (bool, error) {
	return true, f.err
}

// fakeTx returns a fixed result or error for every operation and records
// which operations ran.
type fakeTx struct {
	result txflow.Result
	err    error
	txHash string
	ops    []string
	admin  bool
}

func (f *fakeTx) op(name string) (txflow.Result, error) {
	f.ops = append(f.ops, name)
	if f.err != nil {
		return txflow.Result{Status: txflow.StatusRejected, TxHash: f.txHash, Error: f.err.Error()}, f.err
	}
	return f.result, nil
}

func (f *fakeTx) Account() common.Address { return common.HexToAddress("0xabc") }
func (f *fakeTx) IsCrowdfundAdmin() bool  { return f.admin }
func (f *fakeTx) IsLendingAdmin() bool    { return f.admin }

func (f *fakeTx) CreateCampaign(ctx context.Context, p txflow.CreateCampaignParams) (txflow.Result, error) {
	return f.op("create_campaign")
}

func (f *fakeTx) Donate(ctx context.Context, campaignID uint64, amount string) (txflow.Result, error) {
	return f.op("donate")
}

func (f *fakeTx) CreateProposal(ctx context.Context, campaignID uint64, description, amount string) (txflow.Result, error) {
	return f.op("create_proposal")
}

func (f *fakeTx) Vote(ctx context.Context, proposalID uint64, support bool) (txflow.Result, error) {
	return f.op("vote")
}

func (f *fakeTx) ExecuteProposal(ctx context.Context, proposalID uint64) (txflow.Result, error) {
	return f.op("execute_proposal")
}

func (f *fakeTx) RegisterUser(ctx context.Context) (txflow.Result, error) {
	return f.op("register_user")
}

func (f *fakeTx) CreateLoanRequest(ctx context.Context, p txflow.LoanRequestParams) (txflow.Result, error) {
	return f.op("create_loan_request")
}

func (f *fakeTx) CancelLoanRequest(ctx context.Context, requestID uint64) (txflow.Result, error) {
	return f.op("cancel_loan_request")
}

func (f *fakeTx) CreateFundingOffer(ctx context.Context, requestID uint64, interestPct string) (txflow.Result, error) {
	return f.op("create_funding_offer")
}

func (f *fakeTx) CancelFundingOffer(ctx context.Context, offerID uint64) (txflow.Result, error) {
	return f.op("cancel_funding_offer")
}

func (f *fakeTx) AcceptFundingOffer(ctx context.Context, offerID uint64) (txflow.Result, error) {
	return f.op("accept_funding_offer")
}

func (f *fakeTx) FundAcceptedOffer(ctx context.Context, offerID uint64) (txflow.Result, error) {
	return f.op("fund_accepted_offer")
}

func (f *fakeTx) RepayLoan(ctx context.Context, loanID uint64) (txflow.Result, error) {
	return f.op("repay_loan")
}

func (f *fakeTx) MarkLoanDefaulted(ctx context.Context, loanID uint64) (txflow.Result, error) {
	return f.op("mark_loan_defaulted")
}

func (f *fakeTx) UpdatePlatformBaseRate(ctx context.Context, ratePct string) (txflow.Result, error) {
	return f.op("update_base_rate")
}

func (f *fakeTx) UpdatePlatformFee(ctx context.Context, feePct string) (txflow.Result, error) {
	return f.op("update_fee")
}

func (f *fakeTx) WithdrawPlatformFees(ctx context.Context) (txflow.Result, error) {
	return f.op("withdraw_fees")
}

func (f *fakeTx) UpdateAdminAddress(ctx context.Context, newAdmin string) (txflow.Result, error) {
	return f.op("update_admin_address")
}

func (f *fakeTx) EnableTokenMode(ctx context.Context, token string) (txflow.Result, error) {
	return f.op("enable_token_mode")
}

func (f *fakeTx) DisableTokenMode(ctx context.Context) (txflow.Result, error) {
	return f.op("disable_token_mode")
}

func testServer(state StateReader, tx TxRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{JWTSecret: "test-secret", AdminToken: "hunter2"}
	return New(cfg, state, tx)
}

func do(t *testing.T, g *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, g *gin.Engine) string {
	t.Helper()
	w := do(t, g, http.MethodPost, "/v1/auth/login", `{"token":"hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login body: %v", err)
	}
	return resp.Token
}

func TestListCampaigns(t *testing.T) {
	state := &fakeState{campaigns: []viewmodel.Campaign{{ID: 1, Name: "Well"}}}
	g := testServer(state, &fakeTx{})

	w := do(t, g, http.MethodGet, "/v1/campaigns", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"Well"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSessionReportsRoles(t *testing.T) {
	g := testServer(&fakeState{}, &fakeTx{admin: true})

	w := do(t, g, http.MethodGet, "/v1/session", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"crowdfund_admin":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestFaultClassToStatus(t *testing.T) {
	cases := []struct {
		class faults.Class
		want  int
	}{
		{faults.Validation, http.StatusBadRequest},
		{faults.UserRejected, http.StatusConflict},
		{faults.WrongNetwork, http.StatusServiceUnavailable},
		{faults.WalletUnavailable, http.StatusServiceUnavailable},
		{faults.ContractRevert, http.StatusUnprocessableEntity},
		{faults.Unknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tx := &fakeTx{err: faults.New(tc.class, "boom")}
		g := testServer(&fakeState{}, tx)
		w := do(t, g, http.MethodPost, "/v1/donations", `{"campaign_id":1,"amount":"1"}`, "")
		if w.Code != tc.want {
			t.Errorf("class %s: status = %d, want %d", tc.class, w.Code, tc.want)
		}
		if !strings.Contains(w.Body.String(), "boom") {
			t.Errorf("class %s: message lost: %s", tc.class, w.Body.String())
		}
	}
}

func TestRejectedRunCarriesTxHash(t *testing.T) {
	// A run that was submitted and then timed out still has a hash the
	// client needs for tracking.
	tx := &fakeTx{
		err:    faults.New(faults.Unknown, "confirmation wait: context deadline exceeded"),
		txHash: "0xdeadbeef",
	}
	g := testServer(&fakeState{}, tx)

	w := do(t, g, http.MethodPost, "/v1/donations", `{"campaign_id":1,"amount":"1"}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "0xdeadbeef") {
		t.Errorf("tx hash missing from rejected run body: %s", w.Body.String())
	}

	// A run rejected before submission has no hash and no result body.
	tx = &fakeTx{err: faults.New(faults.Validation, "amount must be positive")}
	g = testServer(&fakeState{}, tx)
	w = do(t, g, http.MethodPost, "/v1/donations", `{"campaign_id":1,"amount":"-1"}`, "")
	if strings.Contains(w.Body.String(), "result") {
		t.Errorf("unsubmitted run leaked a result body: %s", w.Body.String())
	}
}

func TestVoteBindingRejectsMissingSupport(t *testing.T) {
	tx := &fakeTx{}
	g := testServer(&fakeState{}, tx)

	w := do(t, g, http.MethodPost, "/v1/votes", `{"proposal_id":2}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(tx.ops) != 0 {
		t.Errorf("controller reached with invalid body: %v", tx.ops)
	}

	// An explicit false must bind; "support":false is a valid vote against.
	w = do(t, g, http.MethodPost, "/v1/votes", `{"proposal_id":2,"support":false}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("vote against: status = %d", w.Code)
	}
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	tx := &fakeTx{admin: true}
	g := testServer(&fakeState{}, tx)

	body := `{"name":"Well","description":"d","target":"10","beneficiary":"0x00000000000000000000000000000000000000aa"}`
	w := do(t, g, http.MethodPost, "/v1/admin/campaigns", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}
	w = do(t, g, http.MethodPost, "/v1/admin/campaigns", body, "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", w.Code)
	}

	token := login(t, g)
	w = do(t, g, http.MethodPost, "/v1/admin/campaigns", body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("with token: status = %d body = %s", w.Code, w.Body.String())
	}
	if len(tx.ops) != 1 || tx.ops[0] != "create_campaign" {
		t.Errorf("ops = %v", tx.ops)
	}
}

func TestLoginRejectsBadToken(t *testing.T) {
	g := testServer(&fakeState{}, &fakeTx{})

	w := do(t, g, http.MethodPost, "/v1/auth/login", `{"token":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUserLoansRejectsBadAddress(t *testing.T) {
	g := testServer(&fakeState{}, &fakeTx{})

	w := do(t, g, http.MethodGet, "/v1/lending/accounts/nothex/loans", "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
