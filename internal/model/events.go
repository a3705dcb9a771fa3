package model

// Event names carried in EventRecord.EventName.
const (
	EventLiquidityAdded   = "LiquidityAdded"
	EventLiquidityRemoved = "LiquidityRemoved"
	EventSwap             = "Swap"
	EventSharesTransfer   = "SharesTransferred"
)

// LiquidityAddedEventData is emitted after a successful deposit.
type LiquidityAddedEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	AmountX   string `json:"amount_x"`
	AmountY   string `json:"amount_y"`
	Shares    string `json:"shares"`
}

// LiquidityRemovedEventData is emitted after a successful withdrawal.
type LiquidityRemovedEventData struct {
	Sender    string `json:"sender"`
	AmountX   string `json:"amount_x"`
	AmountY   string `json:"amount_y"`
	Recipient string `json:"recipient"`
	Shares    string `json:"shares"`
}

// SwapEventData is emitted after a successful exact-input swap.
type SwapEventData struct {
	Sender    string `json:"sender"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	Recipient string `json:"recipient"`
}

// SharesTransferEventData is emitted when a holder moves shares.
type SharesTransferEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}
