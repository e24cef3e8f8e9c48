package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/policyradar/policyradar/internal/adapters/duckdb"
	"github.com/policyradar/policyradar/internal/adapters/embed"
	"github.com/policyradar/policyradar/internal/adapters/govdata"
	"github.com/policyradar/policyradar/internal/adapters/providers"
	"github.com/policyradar/policyradar/internal/config"
	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/services"
	"github.com/policyradar/policyradar/pkg/kernel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting policyradar kernel")

	if err := run(logger); err != nil {
		logger.Error("kernel startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	settings := config.Load()

	store, err := duckdb.Open(settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	sessions := duckdb.NewSessions(store)
	messages := duckdb.NewMessages(store)

	// Retrieval memory: pluggable embedders over the DuckDB vector store.
	embeddingCfg := domain.EmbeddingConfig{
		Provider: settings.EmbeddingProvider,
		Model:    settings.EmbeddingModel,
	}
	memory := services.NewMemory(logger, store, embed.Factory(logger, settings), embeddingCfg, services.MemoryOptions{
		ChunkSize:    settings.ChunkSize,
		ChunkOverlap: settings.ChunkOverlap,
		MaxChunks:    settings.MaxChunks,
		TopK:         settings.TopK,
	})

	// Government data adapters share one retrying, caching HTTP client.
	dataClient := govdata.NewClient(logger, settings.CacheTTL, settings.MaxRetries, settings.InitialBackoff)
	fetcher := govdata.NewFetcher(logger, settings.FetchAllowedDomains, settings.AllowLocalFetch, settings.FetchMaxBytes)

	deps := services.ExecutorDeps{
		Fetcher: fetcher,
		Memory:  memory,
	}
	if settings.GovAPIKey != "" {
		deps.Regulations = govdata.NewRegulations(dataClient, settings.RegulationsBaseURL, settings.GovAPIKey, fetcher)
		deps.GovInfo = govdata.NewGovInfo(dataClient, settings.GovInfoBaseURL, settings.GovAPIKey, fetcher)
		deps.Congress = govdata.NewCongress(dataClient, settings.CongressBaseURL, settings.GovAPIKey)
	}
	deps.FederalRegister = govdata.NewFederalRegister(dataClient, settings.FederalRegisterBaseURL)
	deps.Spending = govdata.NewUSASpending(dataClient, settings.USASpendingBaseURL)
	deps.FiscalData = govdata.NewFiscalData(dataClient, settings.FiscalDataBaseURL)
	deps.DataGov = govdata.NewDataGov(dataClient, settings.DataGovBaseURL)
	deps.DOJ = govdata.NewDOJ(dataClient, settings.DOJBaseURL)
	if settings.SearchGovAffiliate != "" && settings.SearchGovAccessKey != "" {
		deps.SearchGov = govdata.NewSearchGov(dataClient, settings.SearchGovBaseURL, settings.SearchGovAffiliate, settings.SearchGovAccessKey)
	}

	registry := services.NewToolCatalog()
	executor := services.NewToolExecutor(logger, registry, deps)
	router := services.NewSourceRouter(logger, settings.ConfiguredSources())
	cancels := services.NewCancellationRegistry()
	backends := providers.NewFactory(settings)

	orchestrator := services.NewOrchestrator(
		logger, registry, router, executor, cancels, backends, services.DefaultSanitizePolicy())

	apiServer := kernel.NewServer(logger, settings, orchestrator, cancels, memory, sessions, messages)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: c.Handler(apiServer.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting api server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
