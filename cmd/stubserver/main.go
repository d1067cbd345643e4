// stubserver runs the in-memory cart API used for local development of the
// client and CLI.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/stubapi"
	"github.com/angelmondragon/storefront-client/pkg/env"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/types"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "stubserver"})

	if err := godotenv.Load(); err != nil {
		logg.Debug(ctx, ".env file not found, relying on environment")
	}

	logg = logger.New(logger.Options{
		ServiceName: "stubserver",
		Level:       logger.ParseLevel(env.Get("STOREFRONT_LOG_LEVEL", "info")),
	})

	addr := ":" + env.Get("STOREFRONT_STUB_PORT", "8081")
	server := &http.Server{
		Addr:              addr,
		Handler:           stubapi.NewServer(logg, demoCatalog()).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logg.Info(logg.WithField(ctx, "addr", addr), "stub api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "stub api server failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "stub api shutdown failed", err)
	}
}

func demoCatalog() map[string]types.ProductSnapshot {
	price := func(value int64) *decimal.Decimal {
		d := decimal.NewFromInt(value)
		return &d
	}
	return map[string]types.ProductSnapshot{
		"sku-espresso": {Name: "Espresso Beans", Category: "Coffee", Price: price(150)},
		"sku-grinder":  {Name: "Burr Grinder", Category: "Equipment", Price: price(400)},
		"sku-filters":  {Name: "Paper Filters", Category: "Accessories", Price: price(50)},
	}
}
