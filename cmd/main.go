package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"insurance-ledger/internal/clock"
	"insurance-ledger/internal/config"
	"insurance-ledger/internal/database/minio"
	"insurance-ledger/internal/database/postgres"
	"insurance-ledger/internal/database/redis"
	"insurance-ledger/internal/event"
	"insurance-ledger/internal/funds"
	"insurance-ledger/internal/handlers"
	"insurance-ledger/internal/models"
	"insurance-ledger/internal/repository"
	"insurance-ledger/internal/services"
	"insurance-ledger/internal/worker"

	"github.com/gofiber/fiber/v3"
)

func setupLogging(logDir string) (*os.File, error) {
	fmt.Println("Log directory:", logDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	out := io.MultiWriter(os.Stdout, file)
	log.SetOutput(out)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})))

	return file, nil
}

func newStore(ctx context.Context, cfg *config.LedgerServiceConfig) (services.Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Println("Using in-memory ledger store")
		return repository.NewMemoryStore(), func() {}, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.PostgresCfg.ConnectTimeout)
	defer cancel()
	db, err := postgres.RetryConnectOnFailed(connectCtx, cfg.PostgresCfg.RetryWait, cfg.PostgresCfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgresStore(db), func() { db.Close() }, nil
}

type fundsLedger interface {
	services.Funds
	Deposit(ctx context.Context, account string, amount uint64) error
}

func newFunds(cfg *config.LedgerServiceConfig) (fundsLedger, func(), error) {
	if cfg.FundsDriver == "memory" {
		log.Println("Using in-memory funds ledger")
		return funds.NewMemoryBank(), func() {}, nil
	}
	client, err := redis.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		return nil, nil, err
	}
	return funds.NewRedisBank(client), func() { client.Close() }, nil
}

// bootstrapLedger initializes a fresh ledger from configuration.
func bootstrapLedger(ctx context.Context, core *services.Core, admin *services.AdminService, bank fundsLedger, cfg config.LedgerConfig) error {
	if core.Settings().Initialized || !cfg.InitializeBoot {
		return nil
	}
	if cfg.Owner == "" {
		return errors.New("LEDGER_OWNER is required to initialize a new ledger")
	}
	params, err := config.LoadParameters(cfg.ParamsFile)
	if err != nil {
		return err
	}
	_, err = admin.Initialize(services.WithCaller(ctx, cfg.Owner), models.InitializeRequest{
		Owner:      cfg.Owner,
		Treasury:   cfg.Treasury,
		Parameters: params,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	if cfg.TreasurySeed > 0 {
		if err := bank.Deposit(ctx, cfg.Treasury, cfg.TreasurySeed); err != nil {
			return fmt.Errorf("failed to seed treasury: %w", err)
		}
	}
	log.Printf("Ledger initialized: owner=%s treasury=%s", cfg.Owner, cfg.Treasury)
	return nil
}

func main() {
	cfg := config.New()
	logFile, err := setupLogging(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("error connect to database: %s", err)
	}
	defer closeStore()

	bank, closeFunds, err := newFunds(cfg)
	if err != nil {
		log.Fatalf("error connect to funds ledger: %s", err)
	}
	defer closeFunds()

	var opts []services.Option
	if cfg.RabbitMQCfg.Enabled {
		broker, err := event.ConnectRabbitMQ(ctx, cfg.RabbitMQCfg)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, ledger events will not be forwarded", "error", err)
		} else {
			defer broker.Close()
			opts = append(opts, services.WithPublisher(event.NewLedgerPublisher(broker)))
		}
	}

	var archiver services.ReportArchiver
	if cfg.MinioCfg.Enabled {
		reports, err := minio.NewReportStore(cfg.MinioCfg)
		if err != nil {
			slog.Warn("MinIO unavailable, claim reports will not be archived", "error", err)
		} else {
			archiver = reports
		}
	}

	tickClock := clock.NewWall(time.Unix(cfg.LedgerCfg.GenesisUnix, 0), cfg.LedgerCfg.TickDuration)
	core := services.NewCore(tickClock, bank, store, opts...)
	if err := core.Restore(ctx); err != nil {
		log.Fatalf("Failed to restore ledger: %v", err)
	}

	policyService := services.NewPolicyService(core)
	claimService := services.NewClaimService(core, archiver)
	treasuryService := services.NewTreasuryService(core)
	discountService := services.NewDiscountService(core)
	adminService := services.NewAdminService(core)

	if err := bootstrapLedger(ctx, core, adminService, bank, cfg.LedgerCfg); err != nil {
		log.Fatalf("Failed to bootstrap ledger: %v", err)
	}

	var workersWg sync.WaitGroup
	pool := worker.NewWorkingPool(cfg.SweepCfg.Workers, cfg.SweepCfg.QueueSize)
	workersWg.Add(1)
	go pool.Start(ctx, &workersWg)

	sweeper := worker.NewExpirySweeper(policyService, core)
	scheduler := worker.NewJobScheduler("expiry-sweep", cfg.SweepCfg.Interval, pool)
	scheduler.AddJob("expire-lapsed-policies", sweeper.Job())
	go scheduler.Run(ctx)

	app := fiber.New(fiber.Config{
		Immutable: true,
	})
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Insurance ledger is healthy")
	})
	handlers.NewPolicyHandler(core, policyService).Register(app)
	handlers.NewClaimHandler(core, claimService).Register(app)
	handlers.NewTreasuryHandler(core, treasuryService, discountService).Register(app)
	handlers.NewAdminHandler(core, adminService).Register(app)

	go func() {
		<-ctx.Done()
		log.Println("Shutdown signaled, stopping HTTP server")
		if err := app.Shutdown(); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("Insurance ledger listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Printf("server stopped: %v", err)
	}
	workersWg.Wait()
}
