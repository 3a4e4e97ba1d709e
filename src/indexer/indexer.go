// Package indexer harvests entity ids from contract event logs into MySQL.
// The indexed rows are the enumeration source for proposals and a fast path
// for the other entity lists; sequential id probing remains only as a
// fallback when the index is empty or behind.
package indexer

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chainfund/chainfund/src/contracts"
	"github.com/chainfund/chainfund/src/data"
)

const (
	cursorName = "events"

	// windowSize bounds each eth_getLogs range; public RPC endpoints
	// reject unbounded queries.
	windowSize = 5000
)

type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type Indexer struct {
	logs       LogSource
	db         *gorm.DB
	cfAddr     common.Address
	lendAddr   common.Address
	startBlock uint64
}

func New(logs LogSource, db *gorm.DB, cfAddr, lendAddr common.Address, startBlock uint64) *Indexer {
	return &Indexer{
		logs:       logs,
		db:         db,
		cfAddr:     cfAddr,
		lendAddr:   lendAddr,
		startBlock: startBlock,
	}
}

// Run scans on a fixed interval until the context is cancelled. A failed
// scan is logged and retried next tick; the cursor guarantees no gap.
func (ix *Indexer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := ix.Scan(ctx); err != nil {
			log.Printf("indexer: scan: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan walks from the saved cursor to the current head in bounded windows,
// persisting the cursor after each window so a crash never rescans more
// than one window.
func (ix *Indexer) Scan(ctx context.Context) error {
	head, err := ix.logs.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	last, err := data.Cursor(ix.db, cursorName)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	from := last + 1
	if from < ix.startBlock {
		from = ix.startBlock
	}

	for from <= head {
		to := from + windowSize - 1
		if to > head {
			to = head
		}
		logs, err := ix.logs.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{ix.cfAddr, ix.lendAddr},
		})
		if err != nil {
			return fmt.Errorf("filter logs %d-%d: %w", from, to, err)
		}
		for _, lg := range logs {
			if err := ix.handleLog(lg); err != nil {
				log.Printf("indexer: log %s at block %d: %v", lg.TxHash.Hex(), lg.BlockNumber, err)
			}
		}
		if err := data.SaveCursor(ix.db, cursorName, to); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		from = to + 1

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func topicID(t common.Hash) uint64 {
	return new(big.Int).SetBytes(t.Bytes()).Uint64()
}

func topicAddr(t common.Hash) string {
	return common.BytesToAddress(t.Bytes()).Hex()
}

// handleLog routes one log by its event signature. Only id-bearing events
// write rows; donation and vote events carry no new entities.
func (ix *Indexer) handleLog(lg types.Log) error {
	if len(lg.Topics) == 0 {
		return nil
	}
	switch lg.Topics[0] {
	case contracts.TopicCampaignCreated:
		if len(lg.Topics) < 3 {
			return fmt.Errorf("CampaignCreated: %d topics", len(lg.Topics))
		}
		row := data.IndexedCampaign{ID: topicID(lg.Topics[1]), Beneficiary: topicAddr(lg.Topics[2])}
		return ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error

	case contracts.TopicProposalCreated:
		if len(lg.Topics) < 3 {
			return fmt.Errorf("ProposalCreated: %d topics", len(lg.Topics))
		}
		row := data.IndexedProposal{ID: topicID(lg.Topics[1]), CampaignID: topicID(lg.Topics[2])}
		return ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error

	case contracts.TopicProposalExecuted:
		if len(lg.Topics) < 2 {
			return fmt.Errorf("ProposalExecuted: %d topics", len(lg.Topics))
		}
		return ix.db.Model(&data.IndexedProposal{}).
			Where("id = ?", topicID(lg.Topics[1])).
			Update("executed", true).Error

	case contracts.TopicLoanRequestCreated:
		if len(lg.Topics) < 3 {
			return fmt.Errorf("LoanRequestCreated: %d topics", len(lg.Topics))
		}
		row := data.IndexedLoanRequest{ID: topicID(lg.Topics[1]), Borrower: topicAddr(lg.Topics[2])}
		return ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error

	case contracts.TopicLoanFunded:
		if len(lg.Topics) < 4 {
			return fmt.Errorf("LoanFunded: %d topics", len(lg.Topics))
		}
		row := data.IndexedLoan{
			ID:        topicID(lg.Topics[1]),
			RequestID: topicID(lg.Topics[2]),
			Lender:    topicAddr(lg.Topics[3]),
		}
		return ix.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	case contracts.TopicDonationReceived, contracts.TopicVoteCast:
		// activity events, no entity ids to record
	}
	return nil
}
