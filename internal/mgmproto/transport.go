package mgmproto

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Transport issues one opaque query against the MGM and returns the raw
// reply body. Implementations carry whatever connection/auth state the
// daemon-level client needs; mgmproto only drives the retry policy.
type Transport interface {
	Query(ctx context.Context, opaque string) (status int, body []byte, err error)
}

// QueryWithRetry issues opaque once, retrying exactly once after a 1-second
// back-off if the reply status falls in the transient [100,300) range
// (§4.4 single-fid resync, §6.2).
func QueryWithRetry(ctx context.Context, t Transport, opaque string) (int, []byte, error) {
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 1)
	var status int
	var body []byte
	op := func() error {
		var err error
		status, body, err = t.Query(ctx, opaque)
		if err != nil {
			return err
		}
		if StatusRetryable(status) {
			return errTransient
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil && err != errTransient {
		return status, body, err
	}
	return status, body, nil
}

type transientErr struct{}

func (transientErr) Error() string { return "transient opaque-query status" }

var errTransient = transientErr{}
