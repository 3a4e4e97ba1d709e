package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/chainfund/chainfund/src/amount"
	"github.com/chainfund/chainfund/src/config"
	"github.com/chainfund/chainfund/src/contracts"
	"github.com/chainfund/chainfund/src/data"
	"github.com/chainfund/chainfund/src/indexer"
	"github.com/chainfund/chainfund/src/statesync"
	"github.com/chainfund/chainfund/src/txflow"
	"github.com/chainfund/chainfund/src/wallet"
	"github.com/chainfund/chainfund/src/webserver"
)

func main() {
	cfg := config.Load()

	db := data.MustMySQL(cfg.MySQLDSN)
	if err := db.AutoMigrate(data.IndexModels...); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	rdb := data.MustRedis(cfg.RedisURL)

	if !common.IsHexAddress(cfg.CrowdfundAddr) || !common.IsHexAddress(cfg.LendingAddr) {
		log.Fatalf("CROWDFUND_ADDR and LENDING_ADDR must be contract addresses")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	// A chain or account change tears the session down; the loop rebuilds
	// bindings, caches, and the HTTP surface from scratch.
	for ctx.Err() == nil {
		if err := runSession(ctx, cfg, db, rdb); err != nil {
			log.Printf("session: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func runSession(ctx context.Context, cfg config.Config, db *gorm.DB, rdb *redis.Client) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	session, err := wallet.Connect(sessCtx, cfg.RPCURL, cfg.ChainID, cfg.PrivateKey)
	if err != nil {
		return err
	}
	defer session.Close()

	cf, err := contracts.NewCrowdfund(common.HexToAddress(cfg.CrowdfundAddr), session.Client)
	if err != nil {
		return err
	}
	lend, err := contracts.NewLending(common.HexToAddress(cfg.LendingAddr), session.Client)
	if err != nil {
		return err
	}

	decimals := tokenDecimals(sessCtx, lend, session)

	sync := statesync.New(cf, lend, decimals,
		statesync.WithIndex(proposalIndex{db: db}),
		statesync.WithRedis(rdb),
		statesync.WithProbeBounds(cfg.ProbeCeiling, cfg.ProbeMissLimit),
	)

	ctrl, err := txflow.New(sessCtx, txflow.Options{
		Account:      session.Account,
		TransactOpts: session.TransactOpts,
		Crowdfund:    cf,
		Lending:      lend,
		LendingAddr:  lend.Address,
		NewToken: func(addr common.Address) (txflow.TokenContract, error) {
			return contracts.NewToken(addr, session.Client)
		},
		Receipts:       session.Client,
		Refresher:      sync,
		Redis:          rdb,
		Decimals:       decimals,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})
	if err != nil {
		return err
	}

	ix := indexer.New(session.Client, db, cf.Address, lend.Address, cfg.StartBlock)
	go ix.Run(sessCtx, cfg.PollInterval)

	sync.WarmStart(sessCtx)
	go func() {
		sync.RefreshAll(sessCtx)
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sessCtx.Done():
				return
			case <-ticker.C:
				sync.RefreshAll(sessCtx)
			}
		}
	}()

	go wallet.WatchNetwork(sessCtx, session, cfg.PollInterval, func(kind wallet.ChangeKind) {
		cancel()
	})

	router := webserver.New(cfg, sync, ctrl)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
			cancel()
		}
	}()
	log.Printf("chainfund listening on %s as %s", cfg.Port, session.Account.Hex())

	<-sessCtx.Done()
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
	return nil
}

// tokenDecimals resolves the display scale: the loan token's decimals in
// token mode, 18 otherwise.
func tokenDecimals(ctx context.Context, lend *contracts.Lending, session *wallet.Session) int32 {
	tokenMode, err := lend.UsingToken(ctx)
	if err != nil || !tokenMode {
		return amount.EtherDecimals
	}
	addr, err := lend.LoanTokenAddress(ctx)
	if err != nil {
		return amount.EtherDecimals
	}
	token, err := contracts.NewToken(addr, session.Client)
	if err != nil {
		return amount.EtherDecimals
	}
	d, err := token.Decimals(ctx)
	if err != nil {
		log.Printf("token decimals: %v, assuming 18", err)
		return amount.EtherDecimals
	}
	return int32(d)
}

// proposalIndex adapts the gorm-backed event index to the synchronizer.
type proposalIndex struct {
	db *gorm.DB
}

func (p proposalIndex) ProposalIDs(campaignID uint64) ([]uint64, error) {
	return data.ProposalIDs(p.db, campaignID)
}

func (p proposalIndex) OpenProposalIDs(campaignID uint64) ([]uint64, error) {
	return data.OpenProposalIDs(p.db, campaignID)
}
