// Command esgdash serves the ESG dashboard over the ESG API.
package main

import (
	"os"

	"esgdash/internal/cli"
	"esgdash/internal/esgapi"
	apphttp "esgdash/internal/http"
	applog "esgdash/internal/log"
)

func main() {
	logger, cfg := cli.Bootstrap()

	client := esgapi.New(esgapi.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})

	addr := ":" + cfg.Port
	srv := apphttp.NewServer(apphttp.Config{
		Addr:           addr,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, client, logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting esgdash", "api_base_url", cfg.APIBaseURL, "api_timeout", cfg.APITimeout.String())
	if err := cli.Serve(ctx, logger, addr, srv, nil); err != nil {
		logger.Error("Server error", applog.FieldError, err, "addr", addr)
		os.Exit(1)
	}
}
