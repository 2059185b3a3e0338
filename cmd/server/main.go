/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the campus marketplace server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment, flag overrides)
  2. Open the SQLite document store
  3. Wire the domain services (ledger, stock, workflow, reporter)
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/market.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on a different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - docstore/sqlite/sqlite.go: Document store implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/campuscart/market-engine/api"
	"github.com/campuscart/market-engine/auth"
	"github.com/campuscart/market-engine/config"
	"github.com/campuscart/market-engine/docstore/sqlite"
	"github.com/campuscart/market-engine/market"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the environment for local runs.
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	flag.Parse()
	cfg.Server.Port = *port

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Domain services
	audit := market.NewAuditLog(store)
	accounts := market.NewAccounts(store, audit)
	ledger := market.NewCreditLedger(store, audit)
	stock := market.NewStockManager(store, audit)
	workflow := market.NewWorkflowEngine(store, ledger, stock, accounts, audit)
	reporter := market.NewReporter(store)

	authProvider := auth.NewLocal(store, accounts, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, nil)

	handler := &api.Handler{
		Auth:     authProvider,
		Accounts: accounts,
		Ledger:   ledger,
		Stock:    stock,
		Workflow: workflow,
		Reporter: reporter,
		Audit:    audit,
	}

	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Server starting on http://%s", cfg.Server.Addr())
		log.Printf("API available at http://%s/api", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
