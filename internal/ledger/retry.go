package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/sethvargo/go-retry"
)

// ReadWriter is a ledger client that can also report balances.
type ReadWriter interface {
	Client
	BalanceReader
}

// RetryingClient retries reads that fail with common.ErrLedgerUnavailable
// using exponential backoff. Transactions are passed through untouched: a
// send that timed out may still land, and resending could apply it twice.
type RetryingClient struct {
	inner    ReadWriter
	attempts uint64
	base     time.Duration
	log      logging.Logger
}

func NewRetryingClient(inner ReadWriter, attempts uint64, base time.Duration, log logging.Logger) *RetryingClient {
	return &RetryingClient{inner: inner, attempts: attempts, base: base, log: log}
}

func (c *RetryingClient) backoff() retry.Backoff {
	return retry.WithMaxRetries(c.attempts, retry.NewExponential(c.base))
}

func retryValue[T any](ctx context.Context, c *RetryingClient, op string, f func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoValue(ctx, c.backoff(), func(ctx context.Context) (T, error) {
		v, err := f(ctx)
		if errors.Is(err, common.ErrLedgerUnavailable) {
			c.log.Warn(ctx, "ledger read failed, retrying", "op", op, "error", err)
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}

func (c *RetryingClient) GetAccountInfo(ctx context.Context, address pda.PublicKey) (*AccountInfo, error) {
	return retryValue(ctx, c, "getAccountInfo", func(ctx context.Context) (*AccountInfo, error) {
		return c.inner.GetAccountInfo(ctx, address)
	})
}

func (c *RetryingClient) GetBalance(ctx context.Context, address pda.PublicKey) (uint64, error) {
	return retryValue(ctx, c, "getBalance", func(ctx context.Context) (uint64, error) {
		return c.inner.GetBalance(ctx, address)
	})
}

func (c *RetryingClient) SubmitTransaction(ctx context.Context, instructions []Instruction, signers []Signer) (string, error) {
	return c.inner.SubmitTransaction(ctx, instructions, signers)
}
