package chain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"pairEngine/internal/dex"
)

// JSON-RPC codes that mean the request itself is wrong.
const (
	revertErrorCode    = 3
	methodNotFoundCode = -32601
	invalidParamsCode  = -32602
)

// RetryPolicy bounds how often a failed node read is repeated. The delay
// doubles after every failed attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Retryable reports whether err may clear up on a later attempt.
// Cancellation, reverted or malformed calls and undecodable pair responses
// are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, dex.ErrBadResponse) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case revertErrorCode, methodNotFoundCode, invalidParamsCode:
			return false
		}
	}
	return !strings.Contains(err.Error(), "execution reverted")
}

// Do runs fn until it succeeds, fails with a final error, or the retries
// are spent.
func (p RetryPolicy) Do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := p.Backoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || !Retryable(err) {
			return err
		}
		logger.Warn("node read failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
