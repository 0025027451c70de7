// Package wandb is the read client for the experiment-tracking service:
// run queries, metric history reconstruction, and artifact downloads over a
// pluggable remote backend.
package wandb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aind/wandb-results/internal/config"
)

type Client struct {
	backend Backend
	config  *config.Config
	logger  *slog.Logger
}

// NewClient builds a client over the given backend. The config supplies the
// entity, default project, and retry/timeout/concurrency bounds; per-call
// options override its defaults.
func NewClient(cfg *config.Config, backend Backend) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{
		backend: backend,
		config:  cfg,
		logger:  slog.Default(),
	}, nil
}

// Entity returns the configured entity scope.
func (c *Client) Entity() string {
	return c.config.Entity
}

// call runs one remote operation under the per-call timeout, retrying
// transient transport failures with exponential backoff. Non-transport
// errors surface immediately; a transport failure that outlives the retry
// budget surfaces as TransportTimeoutError.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.config.MaxRetries)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		callCtx := ctx
		if c.config.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
			defer cancel()
		}

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			c.logger.Debug("retrying transient failure", "op", op, "attempt", attempts, "err", err)
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	if err != nil && isTransient(err) {
		return &TransportTimeoutError{Op: op, Attempts: attempts, Err: err}
	}
	return err
}

func isTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}
