package model

// Operation is one line of a simulation script.
type Operation struct {
	Op        string   `json:"op"`
	Sender    string   `json:"sender,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Asset     string   `json:"asset,omitempty"`
	Account   string   `json:"account,omitempty"`
	Amount    string   `json:"amount,omitempty"`
	AmountX   string   `json:"amount_x,omitempty"`
	AmountY   string   `json:"amount_y,omitempty"`
	MinX      string   `json:"min_x,omitempty"`
	MinY      string   `json:"min_y,omitempty"`
	Shares    string   `json:"shares,omitempty"`
	MinOut    string   `json:"min_out,omitempty"`
	Path      []string `json:"path,omitempty"`
	Deadline  uint64   `json:"deadline,omitempty"`
	Seconds   uint64   `json:"seconds,omitempty"`
}

// OperationResult records the outcome of a simulated operation.
type OperationResult struct {
	Line   int               `json:"line"`
	Op     string            `json:"op"`
	OK     bool              `json:"ok"`
	Error  string            `json:"error,omitempty"`
	Kind   string            `json:"kind,omitempty"`
	Output map[string]string `json:"output,omitempty"`
}
