package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/chainfund/chainfund/src/config"
)

func attachRoutes(r *gin.Engine, cfg config.Config, state StateReader, tx TxRunner) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authH := NewAuth([]byte(cfg.JWTSecret), cfg.AdminToken)
	campH := NewCampaigns(state, tx)
	lendH := NewLending(state, tx)
	adminH := NewAdmin(state, tx)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/login", authH.Login)
		v1.GET("/session", campH.Session)

		v1.GET("/campaigns", campH.List)
		v1.GET("/campaigns/:id/proposals", campH.Proposals)
		v1.GET("/campaigns/:id/donation/:address", campH.Donation)
		v1.GET("/proposals/:id/voted/:address", campH.VotedStatus)
		v1.POST("/donations", campH.Donate)
		v1.POST("/proposals", campH.CreateProposal)
		v1.POST("/votes", campH.Vote)

		v1.GET("/lending/requests", lendH.Requests)
		v1.GET("/lending/accounts/:address/loans", lendH.UserLoans)
		v1.GET("/lending/accounts/:address/reputation", lendH.Reputation)
		v1.GET("/lending/stats", lendH.Stats)
		v1.POST("/lending/register", lendH.Register)
		v1.POST("/lending/requests", lendH.CreateRequest)
		v1.POST("/lending/requests/:id/cancel", lendH.CancelRequest)
		v1.POST("/lending/offers", lendH.CreateOffer)
		v1.POST("/lending/offers/:id/cancel", lendH.CancelOffer)
		v1.POST("/lending/offers/:id/accept", lendH.AcceptOffer)
		v1.POST("/lending/offers/:id/fund", lendH.FundOffer)
		v1.POST("/lending/loans/:id/repay", lendH.Repay)
	}

	admin := v1.Group("/admin")
	admin.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
	{
		admin.GET("/proposals", adminH.ExecutableProposals)
		admin.POST("/campaigns", adminH.CreateCampaign)
		admin.POST("/proposals/:id/execute", adminH.ExecuteProposal)
		admin.POST("/lending/base-rate", adminH.SetBaseRate)
		admin.POST("/lending/fee", adminH.SetFee)
		admin.POST("/lending/withdraw-fees", adminH.WithdrawFees)
		admin.POST("/lending/loans/:id/default", adminH.MarkDefaulted)
		admin.POST("/lending/token-mode", adminH.SetTokenMode)
		admin.POST("/lending/handover", adminH.Handover)
	}
}
