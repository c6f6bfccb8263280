package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/molam/treasury/internal/api"
	"github.com/molam/treasury/internal/config"
	"github.com/molam/treasury/internal/connector"
	"github.com/molam/treasury/internal/domain"
	"github.com/molam/treasury/internal/events"
	kafkaevents "github.com/molam/treasury/internal/events/kafka"
	"github.com/molam/treasury/internal/ingestion"
	"github.com/molam/treasury/internal/ledger"
	"github.com/molam/treasury/internal/reconciliation"
	"github.com/molam/treasury/internal/repository"
	"github.com/molam/treasury/internal/settlement"
)

func main() {
	cfg := config.Load()

	log.Printf("Initializing database at %s", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	payoutRepo := repository.NewPayoutRepo(db)
	bankRepo := repository.NewBankRepo(db)
	instructionRepo := repository.NewInstructionRepo(db)
	slaRepo := repository.NewSLARepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	statementRepo := repository.NewStatementRepo(db)
	balanceRepo := repository.NewBalanceRepo(db)
	idempotencyRepo := repository.NewIdempotencyRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// Seed sandbox banks if the profile set is empty.
	count, err := bankRepo.CountProfiles()
	if err != nil {
		log.Fatalf("Failed to count bank profiles: %v", err)
	}
	if count == 0 {
		log.Println("No bank profiles found, seeding sandbox set...")
		if err := seedBanks(bankRepo); err != nil {
			log.Printf("WARNING: Failed to seed banks: %v", err)
		}
	}

	// Event publisher: Kafka when brokers are configured, logs otherwise.
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafkaevents.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
		log.Printf("Publishing events to %v topic %s", cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	// Connectors: sandbox covers every rail until real rails are wired.
	registry := connector.NewRegistry(connector.NewSandbox(100 * time.Millisecond))

	// Create services.
	ledgerFacade := ledger.NewFacade(ledgerRepo)
	worker := settlement.NewWorker(
		db, payoutRepo, bankRepo, instructionRepo, slaRepo, balanceRepo,
		idempotencyRepo, ledgerFacade, registry, publisher,
		settlement.Config{
			BatchSize:        cfg.BatchSize,
			ConnectorTimeout: cfg.ConnectorTimeout,
			ReclaimAfter:     cfg.ReclaimAfter,
		},
	)
	engine := reconciliation.NewEngine(
		db, payoutRepo, instructionRepo, statementRepo, ticketRepo, auditRepo,
		ledgerFacade,
		reconciliation.Config{ToleranceBps: cfg.FuzzyToleranceBps},
	)
	ingestionSvc := ingestion.NewService(statementRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go worker.Run(ctx, cfg.SettlementInterval)
	go engine.Run(ctx, cfg.ReconInterval)

	// Create router.
	router := api.NewRouter(payoutRepo, statementRepo, slaRepo, ticketRepo, ledgerRepo, ingestionSvc)

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Molam Treasury Settlement & Reconciliation Engine")
	log.Printf("Listening on http://localhost:%s", cfg.Port)
	log.Printf("API base: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/payouts")
	log.Printf("  GET    /api/v1/payouts")
	log.Printf("  GET    /api/v1/payouts/{id}")
	log.Printf("  POST   /api/v1/statements")
	log.Printf("  POST   /api/v1/statements/upload")
	log.Printf("  GET    /api/v1/statements")
	log.Printf("  GET    /api/v1/sla")
	log.Printf("  GET    /api/v1/tickets")
	log.Printf("  GET    /api/v1/ledger/{account}")
	log.Printf("  GET    /api/v1/dashboard")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	log.Printf("Shut down cleanly")
}

func seedBanks(repo *repository.BankRepo) error {
	now := time.Now()
	profiles := []domain.BankProfile{
		{
			ID: "bank-sbx-us", Name: "Sandbox Bank US", Country: "US",
			SupportedCurrencies: []string{"USD"},
			Rails:               []domain.Rail{domain.RailSwift, domain.RailLocal},
			ComplianceLevel:     domain.ComplianceStandard,
			SLATargetSeconds:    3600, CreatedAt: now,
		},
		{
			ID: "bank-sbx-eu", Name: "Sandbox Bank EU", Country: "DE",
			SupportedCurrencies: []string{"EUR", "USD"},
			Rails:               []domain.Rail{domain.RailSepa},
			ComplianceLevel:     domain.ComplianceEnhanced,
			SLATargetSeconds:    7200, CreatedAt: now,
		},
	}
	accounts := []domain.TreasuryAccount{
		{ID: "ta-usd-1", BankProfileID: "bank-sbx-us", Currency: "USD", AccountNumber: "US-0001-USD", CreatedAt: now},
		{ID: "ta-eur-1", BankProfileID: "bank-sbx-eu", Currency: "EUR", AccountNumber: "DE-0001-EUR", CreatedAt: now},
	}

	for i := range profiles {
		if err := repo.InsertProfile(&profiles[i]); err != nil {
			return err
		}
	}
	for i := range accounts {
		if err := repo.InsertAccount(&accounts[i]); err != nil {
			return err
		}
	}
	log.Printf("Seeded %d bank profiles, %d treasury accounts", len(profiles), len(accounts))
	return nil
}
