package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Campaigns struct {
	state StateReader
	tx    TxRunner
}

func NewCampaigns(state StateReader, tx TxRunner) Campaigns {
	return Campaigns{state: state, tx: tx}
}

// Session reports the connected account and its roles so the front end can
// decide which controls to render.
func (h Campaigns) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"account":         h.tx.Account().Hex(),
		"crowdfund_admin": h.tx.IsCrowdfundAdmin(),
		"lending_admin":   h.tx.IsLendingAdmin(),
	})
}

func (h Campaigns) List(c *gin.Context) {
	campaigns, err := h.state.Campaigns(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": campaigns})
}

func (h Campaigns) Proposals(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad campaign id"})
		return
	}
	proposals, err := h.state.Proposals(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (h Campaigns) Donation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	donated, err := h.state.DonationOf(c.Request.Context(), id, addr)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donated": donated})
}

func (h Campaigns) VotedStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	addr, ok := pathAddress(c)
	if !ok {
		return
	}
	voted, err := h.state.Voted(c.Request.Context(), id, addr)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voted": voted})
}

func (h Campaigns) Donate(c *gin.Context) {
	var req struct {
		CampaignID uint64 `json:"campaign_id" binding:"required"`
		Amount     string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.Donate(c.Request.Context(), req.CampaignID, req.Amount)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Campaigns) CreateProposal(c *gin.Context) {
	var req struct {
		CampaignID  uint64 `json:"campaign_id" binding:"required"`
		Description string `json:"description" binding:"required"`
		Amount      string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.CreateProposal(c.Request.Context(), req.CampaignID, req.Description, req.Amount)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Campaigns) Vote(c *gin.Context) {
	var req struct {
		ProposalID uint64 `json:"proposal_id" binding:"required"`
		Support    *bool  `json:"support" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	r, err := h.tx.Vote(c.Request.Context(), req.ProposalID, *req.Support)
	if err != nil {
		failRun(c, r, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
