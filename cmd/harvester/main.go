package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/bootstrap"
	"github.com/kirillkom/certificate-harvester/internal/config"
	"github.com/kirillkom/certificate-harvester/internal/observability/logging"
)

func main() {
	maxItems := flag.Int("max-items", -1, "cap on processed addresses (overrides MAX_ITEMS)")
	addressesFile := flag.String("addresses-file", "", "YAML/JSON list or one address per line (overrides ADDRESSES_FILE)")
	flag.Parse()

	cfg := config.Load()
	if *maxItems >= 0 {
		cfg.MaxItems = *maxItems
	}
	if *addressesFile != "" {
		cfg.AddressesFile = *addressesFile
	}

	logger := logging.NewLogger(os.Stderr, "harvester", cfg.LogLevel, cfg.LogFormat)
	addresses, err := cfg.ResolveAddresses(flag.Args())
	if err != nil {
		log.Fatalf("read addresses: %v", err)
	}
	if len(addresses) == 0 {
		log.Fatalf("no addresses given: pass them as arguments, ADDRESSES or ADDRESSES_FILE")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewHarvester(ctx, cfg, logger, bootstrap.HarvesterOptions{Service: "harvester"})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if cfg.MetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           app.Metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("harvester metrics listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	summary, runErr := app.Harvester.Run(ctx, addresses)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Printf("write summary: %v", err)
	}
	if runErr != nil {
		app.Close()
		log.Fatalf("run stopped: %v", runErr)
	}
}
