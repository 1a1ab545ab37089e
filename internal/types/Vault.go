package types

// VaultConfig is written once by initialize and never mutated afterwards.
type VaultConfig struct {
	Asset              Address `json:"asset"`
	DecimalsOffset     uint32  `json:"decimals_offset"`
	LendingPool        Address `json:"lending_pool"`
	AssetReserveIndex  uint32  `json:"asset_reserve_index"`
	RewardToken        Address `json:"reward_token"`
	RewardReserveIndex uint32  `json:"reward_reserve_index"`
	Exchange           Address `json:"exchange"`
	Initialized        bool    `json:"initialized"`
}

// ShareMetadata describes the vault's share token.
type ShareMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint32 `json:"decimals"`
}
