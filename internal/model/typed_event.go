package model

// EventRecord is a pool notification enriched with post-event pool state.
type EventRecord struct {
	Pool        string      `json:"pool"`
	AssetX      string      `json:"asset_x"`
	AssetY      string      `json:"asset_y"`
	Seq         uint64      `json:"seq"`
	Timestamp   uint64      `json:"timestamp"`
	EventName   string      `json:"event_name"`
	Decoded     interface{} `json:"decoded"`
	ReserveX    string      `json:"reserve_x"`
	ReserveY    string      `json:"reserve_y"`
	TotalShares string      `json:"total_shares"`
	Topic0      string      `json:"topic0,omitempty"`
}
