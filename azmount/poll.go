package azmount

import (
	"context"
	"log"
	"time"
)

// pollUntil evaluates done every interval until it reports true. Errors from
// done are logged and retried on the next tick: the queries inside these
// loops are status reads, and a transient read failure should not abort a
// slew that is otherwise proceeding. Cancellation or deadline expiry on ctx
// ends the wait with a TimeoutError; the mount's last commanded motion is
// left unchanged.
func pollUntil(ctx context.Context, op string, interval time.Duration, done func() (bool, error)) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		ok, err := done()
		if err != nil {
			log.Printf("%s: %v", op, err)
		} else if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return &TimeoutError{Op: op}
		case <-t.C:
		}
	}
}
