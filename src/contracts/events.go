package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Topic hashes for every event the log indexer routes on.
var (
	TopicCampaignCreated    common.Hash
	TopicDonationReceived   common.Hash
	TopicProposalCreated    common.Hash
	TopicVoteCast           common.Hash
	TopicProposalExecuted   common.Hash
	TopicLoanRequestCreated common.Hash
	TopicLoanFunded         common.Hash
)

func init() {
	cf, err := abi.JSON(strings.NewReader(crowdfundABI))
	if err != nil {
		panic("crowdfund ABI: " + err.Error())
	}
	lend, err := abi.JSON(strings.NewReader(lendingABI))
	if err != nil {
		panic("lending ABI: " + err.Error())
	}
	TopicCampaignCreated = cf.Events["CampaignCreated"].ID
	TopicDonationReceived = cf.Events["DonationReceived"].ID
	TopicProposalCreated = cf.Events["ProposalCreated"].ID
	TopicVoteCast = cf.Events["VoteCast"].ID
	TopicProposalExecuted = cf.Events["ProposalExecuted"].ID
	TopicLoanRequestCreated = lend.Events["LoanRequestCreated"].ID
	TopicLoanFunded = lend.Events["LoanFunded"].ID
}
