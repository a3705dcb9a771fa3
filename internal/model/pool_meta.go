package model

// PairState is the live reserve view of an on-chain V2 pair.
type PairState struct {
	Pair               string `json:"pair"`
	Block              uint64 `json:"block"`
	Token0             string `json:"token0"`
	Token1             string `json:"token1"`
	Reserve0           string `json:"reserve0"`
	Reserve1           string `json:"reserve1"`
	BlockTimestampLast uint32 `json:"block_timestamp_last"`
}
