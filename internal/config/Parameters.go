/*

This file contains the default parameters of the devnet host.

The devnet runs the vault against reference token, lending and exchange contracts on the local ledger.
Each value mirrors the production deployment the vault targets (a USDC reserve in a Blend-style pool
harvesting BLND emissions through a Comet-style swap pool), scaled down so a local run shows movement.

*/

package config

// DevnetParameters configures the contracts bootstrapped by the devnet host.
type DevnetParameters struct {
	AssetName      string
	AssetSymbol    string
	AssetDecimals  uint32
	RewardName     string
	RewardSymbol   string
	RewardDecimals uint32

	DecimalsOffset     uint32
	AssetReserveIndex  uint32
	RewardReserveIndex uint32

	RewardPriceNumerator   int64
	RewardPriceDenominator int64

	ExchangeLiquidity int64
	PoolRewardBudget  int64
	OperatorFaucet    int64

	EmissionsPerCycle      int64
	BRateGrowthPerCyclePPB int64
}

// DefaultDevnetParameters provides the baseline devnet deployment.
// These values are used unless the environment overrides the decimals offset.
var DefaultDevnetParameters = DevnetParameters{
	// --- Tokens ---
	AssetName:     "USD Coin",
	AssetSymbol:   "USDC",
	AssetDecimals: 7, // Stellar assets carry 7 decimals.
	// Rationale: amounts in logs and the API format as 1000.0000000, matching what wallets show.

	RewardName:     "Blend",
	RewardSymbol:   "BLND",
	RewardDecimals: 7,

	// --- Vault ---
	DecimalsOffset: 0, // Shares and assets start 1:1.
	// Rationale: the virtual asset unit alone already makes a first-deposit donation attack
	// unprofitable at USDC scale. Raise it to make inflation attacks costlier still.

	AssetReserveIndex: 0, // USDC is the first reserve listed in the pool.

	RewardReserveIndex: 1, // Emission id of USDC suppliers.
	// Rationale: reserve token ids are index*2 for d-tokens and index*2+1 for b-tokens,
	// so supplier emissions on reserve 0 accrue under id 1.

	// --- Exchange ---
	RewardPriceNumerator:   1,
	RewardPriceDenominator: 20, // 20 BLND buy 1 USDC.
	// Rationale: close to the observed BLND/USDC ratio; the exact value only scales harvest output.

	ExchangeLiquidity: 1_000_000_0000000, // 1,000,000 USDC of swap output.
	// Rationale: deep enough that devnet harvests never drain the exchange.

	// --- Lending pool ---
	PoolRewardBudget: 10_000_000_0000000, // 10,000,000 BLND held by the pool for claims.

	OperatorFaucet: 10_000_0000000, // 10,000 USDC minted to the operator at bootstrap.
	// Rationale: lets a fresh devnet accept deposits without an external faucet.

	// --- Simulated yield ---
	EmissionsPerCycle: 100_0000000, // 100 BLND accrued to the vault before each harvest.
	// Rationale: at 20 BLND per USDC this compounds 5 USDC per cycle, visible in the share price.

	BRateGrowthPerCyclePPB: 500, // b-rate grows 0.00005% per cycle.
	// Rationale: roughly 2.6% APR at a ten minute harvest interval, a typical USDC supply rate.
}
