package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	utils "livewall/pkg/utils"
)

// SetupSignalHandler returns a context cancelled on the first SIGTERM or SIGINT,
// after onShutdown (if any) has run. A second signal exits the process.
func SetupSignalHandler(onShutdown func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		utils.WithField("signal", sig.String()).Info("Received signal, shutting down gracefully")

		if onShutdown != nil {
			onShutdown(ctx)
		}
		cancel()

		sig = <-sigCh
		utils.WithField("signal", sig.String()).Warn("Received second signal, forcing exit")
		os.Exit(1)
	}()

	return ctx
}
