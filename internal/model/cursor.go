package model

// PoolCursor marks how far one pool's event stream has been aggregated.
// Events up to ClosedSeq belong to windows that are complete. Events in
// (ClosedSeq, LastSeq] make up the newest window, which is re-read on
// resume so its stored metrics are replaced by complete ones. Pool
// sequence numbers start at 1, so a zero cursor covers nothing.
type PoolCursor struct {
	Pool      string `json:"pool"`
	ClosedSeq uint64 `json:"closed_seq"`
	LastSeq   uint64 `json:"last_seq"`
}
