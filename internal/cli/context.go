package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// contextWithShutdown returns a context canceled on SIGINT/SIGTERM so a
// long collection pass stops between tickers instead of mid-write.
func contextWithShutdown() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
