package webserver

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/chainfund/chainfund/src/txflow"
)

type Lending struct {
	state StateReader
	tx    TxRunner
}

func NewLending(state StateReader, tx TxRunner) Lending {
	return Lending{state: state, tx: tx}
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad id"})
		return 0, false
	}
	return id, true
}

func pathAddress(c *gin.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad address"})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (h Lending) Requests(c *gin.Context) {
	requests, err := h.state.LoanRequests(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h Lending) UserLoans(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	loans, investments, err := h.state.UserLoans(c.Request.Context(), addr)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans, "investments": investments})
}

func (h Lending) Reputation(c *gin.Context) {
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	rep, err := h.state.Reputation(c.Request.Context(), addr)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h Lending) Stats(c *gin.Context) {
	stats, err := h.state.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Lending) Register(c *gin.Context) {
	r, err := h.tx.RegisterUser(c.Request.Context())
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) CreateRequest(c *gin.Context) {
	var req struct {
		Amount         string `json:"amount" binding:"required"`
		DurationDays   uint64 `json:"duration_days" binding:"required"`
		MaxInterestPct string `json:"max_interest_percent" binding:"required"`
		Purpose        string `json:"purpose" binding:"required"`
		Collateral     string `json:"collateral" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.CreateLoanRequest(c.Request.Context(), txflow.LoanRequestParams{
		Amount:         req.Amount,
		DurationDays:   req.DurationDays,
		MaxInterestPct: req.MaxInterestPct,
		Purpose:        req.Purpose,
		Collateral:     req.Collateral,
	})
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) CancelRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.CancelLoanRequest(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) CreateOffer(c *gin.Context) {
	var req struct {
		RequestID   uint64 `json:"request_id" binding:"required"`
		InterestPct string `json:"interest_percent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.CreateFundingOffer(c.Request.Context(), req.RequestID, req.InterestPct)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) CancelOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.CancelFundingOffer(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) AcceptOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.AcceptFundingOffer(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) FundOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.FundAcceptedOffer(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Lending) Repay(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.RepayLoan(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
