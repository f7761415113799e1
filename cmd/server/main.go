package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dubbletrubble/TsukiNijiLabsA/internal/config"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/database"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/handler"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/middleware"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/model"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/notify"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/repository"
	"github.com/dubbletrubble/TsukiNijiLabsA/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Database
	db, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations applied successfully")

	// Repositories
	accountRepo := repository.NewAccountRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	revenueRepo := repository.NewRevenueRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	configRepo := repository.NewConfigRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// System ledger accounts. Idempotent on restart.
	treasury, err := accountRepo.CreateSystem(ctx, model.SystemTreasury)
	if err != nil {
		log.Fatalf("Failed to create treasury account: %v", err)
	}
	escrow, err := accountRepo.CreateSystem(ctx, model.SystemMarketEscrow)
	if err != nil {
		log.Fatalf("Failed to create escrow account: %v", err)
	}
	pool, err := accountRepo.CreateSystem(ctx, model.SystemRevenuePool)
	if err != nil {
		log.Fatalf("Failed to create revenue pool account: %v", err)
	}

	err = configRepo.Init(ctx, &model.PlatformConfig{
		MarketFeeBps:          cfg.MarketFeeBps,
		RevenueFeeBps:         cfg.RevenueFeeBps,
		MinBidIncrement:       cfg.MinBidIncrement,
		MinAuctionDuration:    cfg.MinAuctionDuration,
		ClaimWindow:           cfg.ClaimWindow,
		RequiredConfirmations: cfg.RequiredConfirmations,
		UnclaimedPolicy:       cfg.UnclaimedPolicy,
		TreasuryID:            treasury.ID,
	})
	if err != nil {
		log.Fatalf("Failed to init platform config: %v", err)
	}

	if err := revenueRepo.EnsureOpenQuarter(ctx, service.QuarterLength, time.Now().UTC()); err != nil {
		log.Fatalf("Failed to open first quarter: %v", err)
	}

	seedAdmins(ctx, cfg.SeedAdmins, accountRepo, adminRepo)

	if err := checkQuorumReachable(ctx, adminRepo, configRepo); err != nil {
		log.Fatalf("Governance bootstrap: %v", err)
	}

	// Event fan-out
	wsHub := service.NewWSHub()
	eventSvc := service.NewEventService(eventRepo, wsHub)
	if cfg.WebhookURL != "" {
		eventSvc.AddSink(notify.NewWebhookSink(cfg.WebhookURL))
	}
	discordSink, err := notify.NewDiscordSink(cfg.DiscordToken, cfg.DiscordChannel)
	if err != nil {
		log.Printf("Discord announcements disabled: %v", err)
	} else if discordSink != nil {
		defer discordSink.Close()
		eventSvc.AddSink(discordSink)
	}

	// Services
	authSvc := service.NewAuthService(accountRepo, sessionRepo, cfg.JWTSecret)
	registrySvc := service.NewRegistryService(tokenRepo, accountRepo, adminRepo, accountRepo)
	marketSvc := service.NewMarketService(marketRepo, tokenRepo, accountRepo, configRepo, eventSvc, escrow.ID)
	revenueSvc := service.NewRevenueService(revenueRepo, tokenRepo, accountRepo, configRepo, eventSvc, pool.ID)
	governorSvc := service.NewGovernorService(adminRepo, accountRepo, configRepo, tokenRepo, revenueSvc, eventSvc)

	// Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // 1MB
	})

	app.Use(recover.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health
	healthH := handler.NewHealthHandler(db)
	app.Get("/health", healthH.Health)
	app.Get("/ready", healthH.Ready)

	// API v1
	v1 := app.Group("/api/v1")

	// Auth (public)
	authH := handler.NewAuthHandler(authSvc)
	auth := v1.Group("/auth")
	auth.Post("/register", middleware.RateLimit(5, time.Minute), authH.Register)
	auth.Post("/login", middleware.RateLimit(10, time.Minute), authH.Login)
	auth.Post("/refresh", middleware.RateLimit(20, time.Minute), authH.Refresh)
	auth.Post("/logout", authH.Logout)

	// Public token registry
	tokenH := handler.NewTokenHandler(registrySvc)
	v1.Get("/tokens", tokenH.List)
	v1.Get("/tokens/:id", tokenH.GetByID)
	v1.Get("/tokens/:id/owner", tokenH.Owner)

	// Operator fast path — registered BEFORE the protected catch-all
	adminH := handler.NewAdminHandler(governorSvc, eventSvc, wsHub)
	operator := v1.Group("/admin/operator", middleware.AdminKey(cfg.AdminKey))
	operator.Post("/pause", adminH.Pause)
	operator.Post("/unpause", adminH.Unpause)
	operator.Get("/admins", adminH.ListAdmins)
	operator.Post("/admins", adminH.AddAdmin)
	operator.Delete("/admins/:id", adminH.RemoveAdmin)

	// JWT-protected routes (catch-all — must be LAST)
	protected := v1.Group("", middleware.Auth(cfg.JWTSecret))

	// Account
	accountH := handler.NewAccountHandler(registrySvc)
	protected.Get("/account/me", accountH.Me)
	protected.Get("/account/balance", accountH.Balance)

	// Market
	marketH := handler.NewMarketHandler(marketSvc)
	market := protected.Group("/market")
	market.Get("/listings", marketH.Search)
	market.Post("/listings", marketH.Create)
	market.Get("/my-listings", marketH.MyListings)
	market.Get("/listings/:id", marketH.GetByID)
	market.Delete("/listings/:id", marketH.Cancel)
	market.Post("/listings/:id/buy", marketH.Buy)
	market.Post("/listings/:id/bids", marketH.PlaceBid)
	market.Post("/listings/:id/withdraw", marketH.WithdrawBid)
	market.Get("/listings/:id/withdrawable", marketH.Withdrawable)
	market.Post("/listings/:id/end", marketH.EndAuction)

	// Revenue
	revenueH := handler.NewRevenueHandler(revenueSvc)
	revenue := protected.Group("/revenue")
	revenue.Post("/deposits", revenueH.Deposit)
	revenue.Post("/claims", revenueH.Claim)
	revenue.Post("/quarters/finalize", revenueH.Finalize)
	revenue.Get("/quarters/current", revenueH.CurrentQuarter)
	revenue.Get("/quarters/:index", revenueH.QuarterByIndex)
	revenue.Get("/share", revenueH.Share)
	revenue.Get("/tokens/:id/summary", revenueH.TokenSummary)

	// Governor (admin status enforced in the service layer)
	admin := protected.Group("/admin")
	admin.Get("/stats", adminH.Stats)
	admin.Get("/activity", adminH.Activity)
	admin.Get("/config", adminH.Config)
	admin.Post("/transactions", adminH.SubmitTx)
	admin.Get("/transactions", adminH.ListTxs)
	admin.Get("/transactions/:id", adminH.GetTx)
	admin.Post("/transactions/:id/confirm", adminH.ConfirmTx)

	// WebSocket
	wsH := handler.NewWSHandler(wsHub, cfg.JWTSecret)
	app.Get("/ws", wsH.Upgrade)

	// Start hub
	go wsHub.Run()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Printf("Token marketplace running on :%s (%s)", cfg.Port, cfg.Env)

	<-quit
	log.Println("Shutting down...")
	_ = app.ShutdownWithTimeout(5 * time.Second)
	wsHub.Shutdown()
	log.Println("Server stopped")
}

// seedAdmins grants governor membership to the configured usernames.
// Accounts must already exist; missing ones are logged and skipped.
func seedAdmins(ctx context.Context, seed string, accounts service.AccountStore, admins service.AdminStore) {
	if seed == "" {
		return
	}
	for _, username := range strings.Split(seed, ",") {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		account, err := accounts.GetByUsername(ctx, username)
		if err != nil {
			log.Printf("Seed admin %q not found, skipping", username)
			continue
		}
		if err := admins.AddAdmin(ctx, account.ID); err != nil && !errors.Is(err, model.ErrAlreadyExists) {
			log.Printf("Seed admin %q: %v", username, err)
		}
	}
}

// checkQuorumReachable refuses to start with a confirmation threshold
// no admin set could ever satisfy: every multisig transaction would be
// stuck unconfirmable.
func checkQuorumReachable(ctx context.Context, admins service.AdminStore, config service.ConfigStore) error {
	cfg, err := config.Get(ctx)
	if err != nil {
		return err
	}
	count, err := admins.AdminCount(ctx)
	if err != nil {
		return err
	}
	if cfg.RequiredConfirmations > count {
		return fmt.Errorf("%d confirmations required but only %d admins exist: %w",
			cfg.RequiredConfirmations, count, model.ErrTooFewAdmins)
	}
	return nil
}
