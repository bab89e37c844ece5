// Command esg-stub runs the reference ESG backend the dashboard talks to.
package main

import (
	"os"

	"esgdash/internal/backend"
	"esgdash/internal/cli"
	applog "esgdash/internal/log"
)

func main() {
	logger, cfg := cli.Bootstrap()
	deps := cli.InitBackend(logger, cfg)

	addr := ":" + cfg.StubPort
	srv := backend.NewServer(backend.Config{
		Addr:             addr,
		SyntheticCount:   cfg.SyntheticCount,
		SyntheticSeed:    cfg.SyntheticSeed,
		ReportSampleSize: cfg.ReportSampleSize,
		MaxUploadBytes:   cfg.MaxUploadBytes,
	}, deps, logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	cleanup := func() {
		if err := deps.Cleanup(); err != nil {
			logger.Error("Cleanup failed", applog.FieldError, err)
		}
	}
	if err := cli.Serve(ctx, logger, addr, srv, cleanup); err != nil {
		logger.Error("Server error", applog.FieldError, err, "addr", addr)
		os.Exit(1)
	}
}
