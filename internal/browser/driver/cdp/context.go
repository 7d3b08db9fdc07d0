// internal/browser/driver/cdp/context.go
package cdp

import (
	"context"
)

// combineContext returns a context that carries the values of target (the
// chromedp tab context) but is also cancelled when op is done, and inherits
// op's deadline. chromedp needs its own context for the connection, while
// the caller's context carries the operation's deadline.
func combineContext(target, op context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := op.Deadline(); ok {
		ctx, cancel = context.WithDeadline(target, deadline)
	} else {
		ctx, cancel = context.WithCancel(target)
	}
	stop := context.AfterFunc(op, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
