package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainfund/chainfund/src/txflow"
)

// Admin endpoints sit behind the JWT group; the controller additionally
// refuses them when the session account is not the on-chain admin.
type Admin struct {
	state StateReader
	tx    TxRunner
}

func NewAdmin(state StateReader, tx TxRunner) Admin {
	return Admin{state: state, tx: tx}
}

func (h Admin) ExecutableProposals(c *gin.Context) {
	proposals, err := h.state.AdminProposals(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (h Admin) CreateCampaign(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description" binding:"required"`
		ImageURI    string `json:"image_uri"`
		Target      string `json:"target" binding:"required"`
		Beneficiary string `json:"beneficiary" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.CreateCampaign(c.Request.Context(), txflow.CreateCampaignParams{
		Name:        req.Name,
		Description: req.Description,
		ImageURI:    req.ImageURI,
		Target:      req.Target,
		Beneficiary: req.Beneficiary,
	})
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Admin) ExecuteProposal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.ExecuteProposal(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Admin) SetBaseRate(c *gin.Context) {
	h.percentSetting(c, h.tx.UpdatePlatformBaseRate)
}

func (h Admin) SetFee(c *gin.Context) {
	h.percentSetting(c, h.tx.UpdatePlatformFee)
}

func (h Admin) percentSetting(c *gin.Context, set func(ctx context.Context, pct string) (txflow.Result, error)) {
	var req struct {
		Percent string `json:"percent" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := set(c.Request.Context(), req.Percent)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Admin) WithdrawFees(c *gin.Context) {
	r, err := h.tx.WithdrawPlatformFees(c.Request.Context())
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Admin) MarkDefaulted(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.tx.MarkLoanDefaulted(c.Request.Context(), id)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Admin) SetTokenMode(c *gin.Context) {
	var req struct {
		Enabled *bool  `json:"enabled" binding:"required"`
		Token   string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	var r txflow.Result
	var err error
	if *req.Enabled {
		r, err = h.tx.EnableTokenMode(c.Request.Context(), req.Token)
	} else {
		r, err = h.tx.DisableTokenMode(c.Request.Context())
	}
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Admin) Handover(c *gin.Context) {
	var req struct {
		Admin string `json:"admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.UpdateAdminAddress(c.Request.Context(), req.Admin)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
