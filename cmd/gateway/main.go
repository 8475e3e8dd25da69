// Package main runs the wallet gateway: the chat proxy, the wallet
// connection orchestrator and the token query coordinator behind one HTTP
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/assistant"
	"github.com/MrGarbonzo/secretforge/internal/chain"
	"github.com/MrGarbonzo/secretforge/internal/compose"
	"github.com/MrGarbonzo/secretforge/internal/credstore"
	"github.com/MrGarbonzo/secretforge/internal/events"
	"github.com/MrGarbonzo/secretforge/internal/provider"
	"github.com/MrGarbonzo/secretforge/internal/provider/bridge"
	"github.com/MrGarbonzo/secretforge/internal/server"
	"github.com/MrGarbonzo/secretforge/internal/storage"
	chstore "github.com/MrGarbonzo/secretforge/internal/storage/clickhouse"
	"github.com/MrGarbonzo/secretforge/internal/storage/memory"
	"github.com/MrGarbonzo/secretforge/internal/storage/migrations"
	pgstore "github.com/MrGarbonzo/secretforge/internal/storage/postgres"
	"github.com/MrGarbonzo/secretforge/internal/token"
	"github.com/MrGarbonzo/secretforge/internal/wallet"
)

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("GATEWAY_ADDR", ":3000"), "HTTP listen address")
	chainID := flag.String("chain-id", envOr("SECRET_CHAIN_ID", "secret-4"), "Secret Network chain ID")
	lcdURL := flag.String("lcd-url", envOr("SECRET_LCD_URL", "https://lcd.mainnet.secretsaturn.net"), "Secret Network LCD endpoint")
	rpcURL := flag.String("rpc-url", os.Getenv("SECRET_RPC_URL"), "Secret Network RPC endpoint (chain suggestion only)")
	assistantURL := flag.String("assistant-url", os.Getenv("SECRET_AI_URL"), "Upstream assistant endpoint")
	assistantKey := flag.String("assistant-key", os.Getenv("SECRET_AI_API_KEY"), "Upstream assistant API key")
	assistantModel := flag.String("assistant-model", envOr("SECRET_AI_MODEL", "deepseek-r1:70b"), "Upstream assistant model")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	profileID := flag.String("profile", envOr("PROFILE_ID", "default"), "Session profile identifier")
	enableHistory := flag.Bool("enable-history", os.Getenv("ENABLE_HISTORY") == "true", "Expose chat history feature flag")
	autoConnect := flag.Bool("auto-connect", true, "Reconnect persisted wallet session on startup")

	flag.Parse()

	logger := log.New(os.Stdout, "[gateway] ", log.LstdFlags|log.Lshortfile)

	if *assistantURL == "" {
		logger.Fatal("--assistant-url is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions, audit, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	chainCfg := chain.Config{
		ChainID:  *chainID,
		Endpoint: *lcdURL,
		Denom:    "uscrt",
	}
	chainInfo := provider.ChainInfo{
		ChainID:      *chainID,
		ChainName:    "Secret Network",
		RPCEndpoint:  *rpcURL,
		RESTEndpoint: *lcdURL,
		Bech32Prefix: "secret",
		CoinDenom:    "SCRT",
		CoinMinDenom: "uscrt",
		CoinDecimals: 6,
	}

	store := credstore.New(sessions)
	hub := events.NewHub()
	prov := bridge.New(logger)
	catalog := token.DefaultCatalog()

	coordinator, err := token.NewCoordinator(token.Options{
		Catalog:  catalog,
		Provider: prov,
		Store:    store,
		Hub:      hub,
		Audit:    audit,
		Logger:   logger,
		ChainID:  *chainID,
	})
	if err != nil {
		logger.Fatalf("Failed to create token coordinator: %v", err)
	}

	orchestrator, err := wallet.NewOrchestrator(wallet.Options{
		Provider:  prov,
		Factory:   &chain.LCDFactory{},
		ChainCfg:  chainCfg,
		ChainInfo: chainInfo,
		Store:     store,
		Hub:       hub,
		Audit:     audit,
		Logger:    logger,
		ProfileID: *profileID,
		Warmup: func(ctx context.Context, address string, client chain.Client) {
			symbols := make([]string, 0, len(catalog.All()))
			for _, t := range catalog.All() {
				symbols = append(symbols, t.Symbol)
			}
			coordinator.QueryBalances(ctx, client, address, symbols)
		},
	})
	if err != nil {
		logger.Fatalf("Failed to create orchestrator: %v", err)
	}

	assistantClient := assistant.New(*assistantURL, *assistantKey, *assistantModel)

	srv, err := server.New(server.Options{
		Orchestrator:        orchestrator,
		Coordinator:         coordinator,
		Catalog:             catalog,
		Assistant:           assistantClient,
		Store:               store,
		Hub:                 hub,
		Audit:               audit,
		Logger:              logger,
		ChainCfg:            chainCfg,
		Compose:             compose.Options{ChainID: *chainID, NodeURL: *lcdURL, EnableSecretNetwork: true, EnableHistory: *enableHistory},
		ProviderBridge:      prov.Handler(),
		APIKey:              *assistantKey,
		EnableHistory:       *enableHistory,
		EnableSecretNetwork: true,
	})
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.Routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	if *autoConnect {
		go orchestrator.AutoConnect(ctx)
	}

	logger.Printf("Starting gateway on %s (chain %s)", *addr, *chainID)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the session and audit stores, running migrations for
// the database-backed pair.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.SessionStore, storage.AuditStore, func(), error) {
	if useMemory {
		return memory.NewSessionStore(), memory.NewAuditStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewSessionStore(pool), chstore.NewAuditStore(chConn), cleanup, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
