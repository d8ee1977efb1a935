package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ledgerkeep/ledger-sync/internal/client"
	"github.com/ledgerkeep/ledger-sync/internal/config"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	cfg, err := config.GetClientConfig()
	if err != nil {
		logger.NewLogger("ledger-sync").Fatal().Err(err).Msg("error getting configs")
	}

	log := logger.NewClientLogger("ledger-sync", cfg.LogFilePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := client.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init sync client error")
	}

	if err = app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("sync client run error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
