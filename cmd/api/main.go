package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dbcontext"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

func main() {
	// best-effort: without a .env the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-persistence-go")

	catalogFile := os.Getenv("FAP_CATALOG_FILE")
	if catalogFile == "" {
		catalogFile = "catalog.yaml"
	}
	catalog, err := metadata.LoadFile(catalogFile)
	if err != nil {
		sugar.Fatalf("load catalog: %v", err)
	}
	sugar.Infow("catalog loaded", "file", catalogFile, "tables", len(catalog.Tables()))

	sqlxDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlxDB.Close()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		sugar.Fatalf("register metrics: %v", err)
	}

	db := dbcontext.New(txn.FromDB(sqlxDB), catalog,
		dbcontext.WithLogger(lg),
		dbcontext.WithIDGenerator(utilities.IDGeneratorFromEnv()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("FAP_ENSURE_SCHEMA") == "1" {
		if err := db.EnsureSchema(ctx); err != nil {
			sugar.Fatalf("ensure schema: %v", err)
		}
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	handler := router.RegisterRoutes(sugar, db, router.Options{JWTSecret: []byte(os.Getenv("JWT_SECRET"))})
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlxDB.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
