package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/containerd/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// callWithRetry executes an RPC call with retry logic
func (c *Client) callWithRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		callCtx, cancel := c.callContext(ctx)
		err := fn(callCtx)
		cancel()

		if err == nil || !isRetryableError(err) {
			return err
		}
		lastErr = err

		if attempt == c.config.MaxRetries {
			break
		}

		// Exponential backoff
		delay := c.config.RetryDelay * time.Duration(float64(attempt+1)*c.config.BackoffFactor)
		log.G(ctx).WithFields(log.Fields{
			"op":      operation,
			"attempt": attempt + 1,
			"delay":   delay,
		}).WithError(err).Debug("retrying call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", operation, c.config.MaxRetries+1, lastErr)
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// isRetryableError reports whether err is a transient transport failure.
// Server statuses travel inside responses and never reach here.
func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
			return true
		}
	}
	return false
}

// call runs one RPC through callWithRetry. The caller still checks the
// response status.
func call[Resp any](ctx context.Context, c *Client, op string, fn func(context.Context) (*Resp, error)) (*Resp, error) {
	var resp *Resp
	err := c.callWithRetry(ctx, op, func(ctx context.Context) error {
		var err error
		resp, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
