// Command devserver runs the in-memory development backend on a local port.
// Accounts are seeded from flags; data does not survive a restart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerkeep/ledger-sync/internal/devremote"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	var addr, email, password, tenant string
	flag.StringVar(&addr, "a", ":8080", "Listen address")
	flag.StringVar(&email, "email", "dev@ledgerkeep.local", "Seeded dev account email")
	flag.StringVar(&password, "password", "devpass", "Seeded dev account password")
	flag.StringVar(&tenant, "tenant", "dev", "Seeded dev account tenant")
	flag.Parse()

	log := logger.NewLogger("ledger-devserver")

	server := devremote.NewServer([]byte(os.Getenv("DEVSERVER_SIGNING_KEY")), log)
	if err := server.RegisterUser(email, password, tenant); err != nil {
		log.Fatal().Err(err).Msg("seed dev account")
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Close()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("account", email).Msg("dev backend listening")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("dev backend failed")
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
