package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"ptero-billing/internal/client"
	"ptero-billing/internal/config"
	"ptero-billing/internal/lock"
	"ptero-billing/internal/model"
	"ptero-billing/internal/repository"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	customer = model.Actor{UserID: "user-1", Role: model.RoleUser}
	stranger = model.Actor{UserID: "user-2", Role: model.RoleUser}
	admin    = model.Actor{UserID: "admin-1", Role: model.RoleAdmin}
)

type fakeProvisioner struct {
	mu    sync.Mutex
	calls int

	ProvisionFunc func(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error)
}

func (f *fakeProvisioner) Provision(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.ProvisionFunc != nil {
		return f.ProvisionFunc(ctx, order, plan)
	}
	return &ProvisionResult{ServerID: 4242}, nil
}

func (f *fakeProvisioner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	db          *gorm.DB
	orders      repository.OrderRepository
	payments    repository.PaymentRepository
	plans       repository.PlanRepository
	events      repository.OrderEventRepository
	provisioner *fakeProvisioner
	svc         OrderService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := client.InitDBClient(config.Database{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "billing.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := client.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:          db,
		orders:      repository.NewOrderRepository(db),
		payments:    repository.NewPaymentRepository(db),
		plans:       repository.NewPlanRepository(db),
		events:      repository.NewOrderEventRepository(db),
		provisioner: &fakeProvisioner{},
	}

	plans := []*model.Plan{
		{ID: "starter", Name: "Starter", Memory: 1024, Disk: 10, CPU: 100, Price: decimal.RequireFromString("9.99"), Currency: "USD", IsActive: true},
		{ID: "legacy", Name: "Legacy", Memory: 512, Disk: 5, CPU: 50, Price: decimal.RequireFromString("4.99"), Currency: "USD", IsActive: false},
	}
	if err := env.plans.Sync(context.Background(), plans); err != nil {
		t.Fatalf("sync plans: %v", err)
	}

	env.svc = NewOrderService(
		env.orders,
		env.payments,
		env.plans,
		env.events,
		env.provisioner,
		lock.NewNoopLocker(),
		discardLogger(),
		OrderServiceOptions{
			ProvisionTimeout: time.Second,
			StaleClaimGrace:  time.Minute,
		},
	)
	return env
}

func (e *testEnv) submit(t *testing.T) *model.Order {
	t.Helper()
	order, err := e.svc.SubmitOrder(context.Background(), customer.UserID, "starter", "My Server")
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	return order
}

func (e *testEnv) record(t *testing.T, orderID, gateway, reference string) *model.Payment {
	t.Helper()
	payment, err := e.svc.RecordPayment(context.Background(), &RecordPaymentInput{
		Actor:     customer,
		OrderID:   orderID,
		Gateway:   gateway,
		Reference: reference,
		Amount:    decimal.RequireFromString("9.99"),
		Currency:  "usd",
	})
	if err != nil {
		t.Fatalf("RecordPayment() error = %v", err)
	}
	return payment
}

func (e *testEnv) reload(t *testing.T, orderID string) *model.Order {
	t.Helper()
	order, err := e.orders.FindByID(context.Background(), orderID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if err := order.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	return order
}

func (e *testEnv) payment(t *testing.T, paymentID string) *model.Payment {
	t.Helper()
	payment, err := e.payments.FindByID(context.Background(), paymentID)
	if err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return payment
}

// service builds an engine over the same store as e.svc with its payment store and locker
// swapped out.
func (e *testEnv) service(payments repository.PaymentRepository, locker lock.Locker) OrderService {
	return NewOrderService(
		e.orders,
		payments,
		e.plans,
		e.events,
		e.provisioner,
		locker,
		discardLogger(),
		OrderServiceOptions{
			ProvisionTimeout: time.Second,
			StaleClaimGrace:  time.Minute,
		},
	)
}

// interleavingPayments runs beforeAppend once, just before the next payment is stored.
type interleavingPayments struct {
	repository.PaymentRepository
	beforeAppend func()
}

func (p *interleavingPayments) Append(ctx context.Context, payment *model.Payment) error {
	if hook := p.beforeAppend; hook != nil {
		p.beforeAppend = nil
		hook()
	}
	return p.PaymentRepository.Append(ctx, payment)
}

type stubLocker struct {
	err error
}

func (l stubLocker) Acquire(context.Context, string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}
