package infra

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// MaxConnectElapsed bounds how long startup connections are retried
var MaxConnectElapsed = 30 * time.Second

// Retry runs op with exponential backoff until it succeeds, ctx is done or
// MaxConnectElapsed passes.
func Retry(ctx context.Context, op func() error) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = MaxConnectElapsed

	return backoff.Retry(func() error {
		if err := op(); err != nil {
			logrus.WithError(err).Debug("retryable error caught, retrying..")
			return err
		}
		return nil
	}, backoff.WithContext(expBackoff, ctx))
}
