package model

import "time"

// PoolWindowMetrics stores aggregated metrics for a pool window.
type PoolWindowMetrics struct {
	Pool           string    `json:"pool"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	AddCount       uint64    `json:"add_count"`
	RemoveCount    uint64    `json:"remove_count"`
	VolumeX        string    `json:"volume_x"`
	VolumeY        string    `json:"volume_y"`
	FeeX           string    `json:"fee_x"`
	FeeY           string    `json:"fee_y"`
	FeeRateX       *string   `json:"fee_rate_x,omitempty"`
	FeeRateY       *string   `json:"fee_rate_y,omitempty"`
	TVLX           *string   `json:"tvl_x,omitempty"`
	TVLY           *string   `json:"tvl_y,omitempty"`
	APR            *string   `json:"apr,omitempty"`
}
