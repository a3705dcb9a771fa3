package model

// PoolSnapshot is the persisted state of a pool.
type PoolSnapshot struct {
	Pool         string            `json:"pool"`
	AssetX       string            `json:"asset_x"`
	AssetY       string            `json:"asset_y"`
	ReserveX     string            `json:"reserve_x"`
	ReserveY     string            `json:"reserve_y"`
	TotalShares  string            `json:"total_shares"`
	LockedShares string            `json:"locked_shares"`
	Balances     map[string]string `json:"balances"`
	Seq          uint64            `json:"seq"`
	Timestamp    uint64            `json:"timestamp"`
}

// EngineState is what the simulator persists between runs: the pool, the
// logical clock and every asset ledger (asset -> account -> amount).
type EngineState struct {
	Pool     PoolSnapshot                 `json:"pool"`
	Clock    uint64                       `json:"clock"`
	Balances map[string]map[string]string `json:"balances"`
}
