package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Indexed rows hold only ids and filter columns harvested from event logs.
// Entity detail always comes from contract reads; the index exists to
// replace blind sequential id probing as the enumeration source.

type IndexedCampaign struct {
	ID          uint64 `gorm:"primaryKey"`
	Beneficiary string `gorm:"size:42;index"`
	CreatedAt   time.Time
}

type IndexedProposal struct {
	ID         uint64 `gorm:"primaryKey"`
	CampaignID uint64 `gorm:"index"`
	Executed   bool
	CreatedAt  time.Time
}

type IndexedLoanRequest struct {
	ID        uint64 `gorm:"primaryKey"`
	Borrower  string `gorm:"size:42;index"`
	CreatedAt time.Time
}

type IndexedLoan struct {
	ID        uint64 `gorm:"primaryKey"`
	RequestID uint64 `gorm:"index"`
	Lender    string `gorm:"size:42;index"`
	CreatedAt time.Time
}

// IndexCursor tracks the last fully scanned block, one row per contract.
type IndexCursor struct {
	Contract  string `gorm:"primaryKey;size:16"`
	LastBlock uint64
	UpdatedAt time.Time
}

var IndexModels = []interface{}{
	&IndexedCampaign{}, &IndexedProposal{},
	&IndexedLoanRequest{}, &IndexedLoan{},
	&IndexCursor{},
}

// ProposalIDs returns the indexed proposal ids for a campaign in ascending
// order. campaignID 0 selects all campaigns.
func ProposalIDs(db *gorm.DB, campaignID uint64) ([]uint64, error) {
	var ids []uint64
	q := db.Model(&IndexedProposal{}).Order("id")
	if campaignID != 0 {
		q = q.Where("campaign_id = ?", campaignID)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// OpenProposalIDs returns the indexed proposal ids not yet marked executed,
// pre-filtering the executable-set enumeration. campaignID 0 selects all
// campaigns.
func OpenProposalIDs(db *gorm.DB, campaignID uint64) ([]uint64, error) {
	var ids []uint64
	q := db.Model(&IndexedProposal{}).Where("executed = ?", false).Order("id")
	if campaignID != 0 {
		q = q.Where("campaign_id = ?", campaignID)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func Cursor(db *gorm.DB, contract string) (uint64, error) {
	var c IndexCursor
	err := db.Where("contract = ?", contract).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.LastBlock, nil
}

func SaveCursor(db *gorm.DB, contract string, block uint64) error {
	return db.Save(&IndexCursor{Contract: contract, LastBlock: block, UpdatedAt: time.Now()}).Error
}
