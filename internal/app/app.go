// Package app wires configuration, storage, clients and services together for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"ptero-billing/internal/client"
	"ptero-billing/internal/config"
	"ptero-billing/internal/lock"
	"ptero-billing/internal/notify"
	"ptero-billing/internal/repository"
	"ptero-billing/internal/server"
	"ptero-billing/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	DB    *gorm.DB
	Redis *redis.Client

	Orders       service.OrderService
	Admin        service.AdminApprovalService
	Confirmation service.GatewayConfirmationService
	Plans        service.PlanService
	Notifier     notify.Notifier
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := client.InitDBClient(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rdb, err := client.InitRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	locker := lock.NewNoopLocker()
	if rdb != nil {
		// the lock must outlive the slowest provisioning attempt
		locker = lock.NewRedsyncLocker(rdb, cfg.Provisioning.Timeout+cfg.Provisioning.StaleClaimGrace)
	} else {
		logger.Info("redis not configured, relying on conditional updates only for order locking")
	}

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	planRepo := repository.NewPlanRepository(db)
	eventRepo := repository.NewOrderEventRepository(db)

	if !cfg.Pterodactyl.Configured() {
		logger.Warn("pterodactyl panel not configured, servers will be simulated")
	}
	provisioner := service.NewProvisioner(
		cfg.Pterodactyl,
		client.NewPterodactylClient(&cfg.Pterodactyl, cfg.Provisioning.Timeout),
		logger,
	)

	orderService := service.NewOrderService(
		orderRepo,
		paymentRepo,
		planRepo,
		eventRepo,
		provisioner,
		locker,
		logger,
		service.OrderServiceOptions{
			ProvisionTimeout: cfg.Provisioning.Timeout,
			StaleClaimGrace:  cfg.Provisioning.StaleClaimGrace,
		},
	)

	var verifiers []service.PaymentVerifier
	if cfg.Paypal.Configured() {
		verifiers = append(verifiers, service.NewPaypalVerifier(client.NewPaypalClient(&cfg.Paypal)))
	}
	if cfg.BrainTree.Configured() {
		verifiers = append(verifiers, service.NewBraintreeVerifier(client.NewBraintreeClient(&cfg.BrainTree)))
	}
	if cfg.Razorpay.Configured() {
		verifiers = append(verifiers, service.NewRazorpayVerifier(client.NewRazorpayClient(&cfg.Razorpay)))
	}

	notifier := notify.NewNoopNotifier()
	if cfg.Telegram.Configured() {
		notifier, err = notify.NewTelegramNotifier(&cfg.Telegram, logger)
		if err != nil {
			return nil, fmt.Errorf("init telegram notifier: %w", err)
		}
	}

	return &App{
		DB:           db,
		Redis:        rdb,
		Orders:       orderService,
		Admin:        service.NewAdminApprovalService(orderService),
		Confirmation: service.NewGatewayConfirmationService(orderService, paymentRepo, planRepo, logger, verifiers...),
		Plans:        service.NewPlanService(planRepo, logger),
		Notifier:     notifier,
	}, nil
}

// SyncPlans loads the plan catalog file into the store.
func (a *App) SyncPlans(ctx context.Context, path string) (int, error) {
	plans, err := config.LoadPlanCatalog(path)
	if err != nil {
		return 0, err
	}
	if err := a.Plans.SyncCatalog(ctx, plans); err != nil {
		return 0, err
	}
	return len(plans), nil
}

func (a *App) Services() server.Services {
	return server.Services{
		Orders:       a.Orders,
		Admin:        a.Admin,
		Confirmation: a.Confirmation,
		Plans:        a.Plans,
		Notifier:     a.Notifier,
	}
}

func (a *App) Close() error {
	if a.Redis != nil {
		a.Redis.Close()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
