package contracts

// Authoritative ABI schemas for the deployed contracts. Decoding is strict:
// a return shape that does not match these descriptors is an error, never a
// positional guess.

const crowdfundABI = `[
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getCampaignCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getCampaignDetails","stateMutability":"view","inputs":[{"name":"campaignId","type":"uint256"}],"outputs":[
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"imageURI","type":"string"},
    {"name":"targetAmount","type":"uint256"},
    {"name":"raisedAmount","type":"uint256"},
    {"name":"beneficiary","type":"address"},
    {"name":"isActive","type":"bool"}]},
  {"type":"function","name":"donations","stateMutability":"view","inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"proposals","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"campaignId","type":"uint256"},
    {"name":"description","type":"string"},
    {"name":"amount","type":"uint256"},
    {"name":"votesFor","type":"uint256"},
    {"name":"votesAgainst","type":"uint256"},
    {"name":"executed","type":"bool"}]},
  {"type":"function","name":"hasVoted","stateMutability":"view","inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"createCampaign","stateMutability":"nonpayable","inputs":[
    {"name":"name","type":"string"},
    {"name":"description","type":"string"},
    {"name":"imageURI","type":"string"},
    {"name":"targetAmount","type":"uint256"},
    {"name":"beneficiary","type":"address"}],"outputs":[]},
  {"type":"function","name":"donate","stateMutability":"payable","inputs":[{"name":"campaignId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"createProposal","stateMutability":"nonpayable","inputs":[
    {"name":"campaignId","type":"uint256"},
    {"name":"description","type":"string"},
    {"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"vote","stateMutability":"nonpayable","inputs":[{"name":"proposalId","type":"uint256"},{"name":"support","type":"bool"}],"outputs":[]},
  {"type":"function","name":"executeProposal","stateMutability":"nonpayable","inputs":[{"name":"proposalId","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"CampaignCreated","anonymous":false,"inputs":[
    {"name":"campaignId","type":"uint256","indexed":true},
    {"name":"beneficiary","type":"address","indexed":true}]},
  {"type":"event","name":"DonationReceived","anonymous":false,"inputs":[
    {"name":"campaignId","type":"uint256","indexed":true},
    {"name":"donor","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"ProposalCreated","anonymous":false,"inputs":[
    {"name":"proposalId","type":"uint256","indexed":true},
    {"name":"campaignId","type":"uint256","indexed":true}]},
  {"type":"event","name":"VoteCast","anonymous":false,"inputs":[
    {"name":"proposalId","type":"uint256","indexed":true},
    {"name":"voter","type":"address","indexed":true},
    {"name":"support","type":"bool","indexed":false}]},
  {"type":"event","name":"ProposalExecuted","anonymous":false,"inputs":[
    {"name":"proposalId","type":"uint256","indexed":true}]}
]`

const lendingABI = `[
  {"type":"function","name":"registerUser","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"getUserReputation","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[
    {"name":"reputationScore","type":"uint256"},
    {"name":"totalLoansRequested","type":"uint256"},
    {"name":"totalLoansFunded","type":"uint256"},
    {"name":"loansRepaidOnTime","type":"uint256"},
    {"name":"loansDefaulted","type":"uint256"},
    {"name":"totalTransactions","type":"uint256"},
    {"name":"collateralizationRatio","type":"uint256"},
    {"name":"isRegistered","type":"bool"}]},
  {"type":"function","name":"getRecommendedInterestRate","stateMutability":"view","inputs":[{"name":"borrowerAddress","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"createLoanRequest","stateMutability":"payable","inputs":[
    {"name":"amount","type":"uint256"},
    {"name":"durationDays","type":"uint256"},
    {"name":"maxInterestRate","type":"uint256"},
    {"name":"purpose","type":"string"}],"outputs":[]},
  {"type":"function","name":"cancelLoanRequest","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"checkLoanRequestExpiry","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getActiveLoanRequests","stateMutability":"view","inputs":[{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getAllActiveLoanRequests","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"createFundingOffer","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint256"},{"name":"interestRate","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelFundingOffer","stateMutability":"nonpayable","inputs":[{"name":"offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"acceptFundingOffer","stateMutability":"nonpayable","inputs":[{"name":"offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"fundAcceptedOffer","stateMutability":"payable","inputs":[{"name":"offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"repayLoan","stateMutability":"payable","inputs":[{"name":"loanId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"markLoanDefaulted","stateMutability":"nonpayable","inputs":[{"name":"loanId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getUserActiveLoans","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getUserActiveInvestments","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"updatePlatformBaseRate","stateMutability":"nonpayable","inputs":[{"name":"newRate","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"updatePlatformFee","stateMutability":"nonpayable","inputs":[{"name":"newFeePercent","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdrawPlatformFees","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"updateAdminAddress","stateMutability":"nonpayable","inputs":[{"name":"newAdmin","type":"address"}],"outputs":[]},
  {"type":"function","name":"enableTokenMode","stateMutability":"nonpayable","inputs":[{"name":"tokenAddress","type":"address"}],"outputs":[]},
  {"type":"function","name":"disableTokenMode","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"getPlatformStats","stateMutability":"view","inputs":[],"outputs":[
    {"name":"totalLoanRequests","type":"uint256"},
    {"name":"totalFundedLoans","type":"uint256"},
    {"name":"currentPlatformFee","type":"uint256"},
    {"name":"platformFeesCollected","type":"uint256"}]},
  {"type":"function","name":"loanRequests","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"borrower","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"durationDays","type":"uint256"},
    {"name":"maxInterestRate","type":"uint256"},
    {"name":"collateralAmount","type":"uint256"},
    {"name":"purpose","type":"string"},
    {"name":"timestamp","type":"uint256"},
    {"name":"status","type":"uint8"},
    {"name":"bestOfferId","type":"uint256"}]},
  {"type":"function","name":"loans","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"requestId","type":"uint256"},
    {"name":"borrower","type":"address"},
    {"name":"lender","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"interestRate","type":"uint256"},
    {"name":"collateralAmount","type":"uint256"},
    {"name":"startTime","type":"uint256"},
    {"name":"endTime","type":"uint256"},
    {"name":"repaidAmount","type":"uint256"},
    {"name":"status","type":"uint8"}]},
  {"type":"function","name":"fundingOffers","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"requestId","type":"uint256"},
    {"name":"lender","type":"address"},
    {"name":"interestRate","type":"uint256"},
    {"name":"timestamp","type":"uint256"},
    {"name":"status","type":"uint8"}]},
  {"type":"function","name":"platformBaseRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"maxReputationDiscount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"requestExpirationTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"offerExpirationTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"platformFeePercent","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"collectedFees","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"adminAddress","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"usingToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"loanToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"LoanRequestCreated","anonymous":false,"inputs":[
    {"name":"requestId","type":"uint256","indexed":true},
    {"name":"borrower","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"LoanFunded","anonymous":false,"inputs":[
    {"name":"loanId","type":"uint256","indexed":true},
    {"name":"requestId","type":"uint256","indexed":true},
    {"name":"lender","type":"address","indexed":true}]}
]`

const erc20ABI = `[
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`
