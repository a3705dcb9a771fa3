package model

import "encoding/json"

// EventRecordJSON is the JSON representation used when reading events back
// for aggregation.
type EventRecordJSON struct {
	Pool        string          `json:"pool"`
	AssetX      string          `json:"asset_x"`
	AssetY      string          `json:"asset_y"`
	Seq         uint64          `json:"seq"`
	Timestamp   uint64          `json:"timestamp"`
	EventName   string          `json:"event_name"`
	Decoded     json.RawMessage `json:"decoded"`
	ReserveX    string          `json:"reserve_x"`
	ReserveY    string          `json:"reserve_y"`
	TotalShares string          `json:"total_shares"`
	Topic0      string          `json:"topic0,omitempty"`
}
