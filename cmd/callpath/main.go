package main

import (
	"context"
	"os/signal"
	"syscall"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/callpath"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/prometheus"
	"go.uber.org/zap"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go prometheus.Run(rootCtx)

	for {
		ctx, cancel := context.WithCancel(rootCtx)

		app, err := callpath.NewApp(cancel)
		if err != nil {
			logging.Logger.Fatal("failed to create callpath app", zap.String("error", err.Error()))
		}

		err = app.Run(ctx)
		if err != nil {
			logging.Logger.Fatal("callpath app stopped with error", zap.String("error", err.Error()))
		}

		cancel()

		if rootCtx.Err() != nil {
			logging.Logger.Info("shutdown signal received, exiting")
			return
		}

		err = app.HealthCheckerService.Check(rootCtx)
		if err != nil {
			logging.Logger.Info("shutdown signal received while waiting for recovery")
			return
		}
	}
}
