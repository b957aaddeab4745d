package service

import (
	"context"
	"errors"
	"math/rand"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/lock"
	"ptero-billing/internal/model"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestSubmitOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		userID     string
		planID     string
		serverName string
		wantKind   apperr.Kind
	}{
		{"empty name", "user-1", "starter", "   ", apperr.Validation},
		{"name too long", "user-1", "starter", strings.Repeat("x", 192), apperr.Validation},
		{"unknown plan", "user-1", "gold", "srv", apperr.Validation},
		{"inactive plan", "user-1", "legacy", "srv", apperr.Validation},
		{"anonymous", "", "starter", "srv", apperr.Unauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.SubmitOrder(ctx, tt.userID, tt.planID, tt.serverName)
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Fatalf("SubmitOrder() kind = %s, want %s (err %v)", got, tt.wantKind, err)
			}
		})
	}
}

// Scenario A
func TestApprovePaymentProvisionsOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	if order.Status != model.OrderStatusPending || order.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("new order = %s/%s, want pending/pending", order.Status, order.PaymentStatus)
	}
	if order.ServerName != "My Server" {
		t.Errorf("ServerName = %q", order.ServerName)
	}

	payment := env.record(t, order.ID, "paypal", "PAY-1")
	if payment.Status != model.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", payment.Status)
	}
	if payment.Currency != "USD" {
		t.Errorf("currency = %s, want USD", payment.Currency)
	}
	if got := env.reload(t, order.ID); got.Status != model.OrderStatusPending || got.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("recording a payment changed the order to %s/%s", got.Status, got.PaymentStatus)
	}

	res, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if err != nil {
		t.Fatalf("ApprovePayment() error = %v", err)
	}
	if res.ServerID != 4242 || res.AlreadyActive {
		t.Errorf("result = %+v", res)
	}

	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusActive || got.PaymentStatus != model.PaymentStatusApproved {
		t.Errorf("order = %s/%s, want active/approved", got.Status, got.PaymentStatus)
	}
	if got.PterodactylServerID == nil || *got.PterodactylServerID != 4242 {
		t.Errorf("server id = %v", got.PterodactylServerID)
	}
	if got.ApprovedPaymentID == nil || *got.ApprovedPaymentID != payment.ID {
		t.Errorf("approved payment = %v, want %s", got.ApprovedPaymentID, payment.ID)
	}
	if got.Provisioning() {
		t.Error("provisioning claim not cleared")
	}
	if p := env.payment(t, payment.ID); p.Status != model.PaymentStatusApproved || p.CompletedAt == nil {
		t.Errorf("payment = %s completed_at=%v, want approved", p.Status, p.CompletedAt)
	}
}

// Scenario B
func TestApprovePaymentProvisioningFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.provisioner.ProvisionFunc = func(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
		return nil, &ProvisioningError{StatusCode: 500, Err: errors.New("panel exploded: stack trace")}
	}

	order := env.submit(t)
	payment := env.record(t, order.ID, "upi", "UPI-1")

	_, err := env.svc.ApprovePayment(ctx, order.ID, payment.ID, model.AdminApprover(admin))
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.Provisioning {
		t.Fatalf("ApprovePayment() error = %v, want provisioning", err)
	}
	if ae.OrderID != order.ID {
		t.Errorf("error order id = %q, want %q", ae.OrderID, order.ID)
	}
	if strings.Contains(ae.PublicMsg, "stack trace") {
		t.Errorf("public message leaks provider detail: %q", ae.PublicMsg)
	}
	if !strings.Contains(ae.Detail, "status 500") {
		t.Errorf("detail = %q, want provider status", ae.Detail)
	}

	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusFailed || got.PaymentStatus != model.PaymentStatusApproved {
		t.Errorf("order = %s/%s, want failed/approved", got.Status, got.PaymentStatus)
	}
	if got.FailureReason == nil || !strings.Contains(*got.FailureReason, "panel exploded") {
		t.Errorf("failure reason = %v", got.FailureReason)
	}
	if got.Provisioning() {
		t.Error("provisioning claim not cleared")
	}

	events, err := env.svc.ListEvents(ctx, order.ID, admin)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	var failed bool
	for _, e := range events {
		if e.Action == model.ActionProvisioningFailed && e.Reason != nil {
			failed = true
		}
	}
	if !failed {
		t.Error("no provisioning_failed event with a reason")
	}

	// a failed order accepts neither another approval nor a rejection
	if _, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin)); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("second ApprovePayment() error = %v, want conflict", err)
	}
	if _, err := env.svc.RejectPayment(ctx, order.ID, admin); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("RejectPayment() on failed order error = %v, want conflict", err)
	}
}

// Scenario C
func TestRejectPaymentCancelsOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	payment := env.record(t, order.ID, "discord", "DISCORD-1")

	if _, err := env.svc.RejectPayment(ctx, order.ID, admin); err != nil {
		t.Fatalf("RejectPayment() error = %v", err)
	}
	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusCancelled || got.PaymentStatus != model.PaymentStatusRejected {
		t.Errorf("order = %s/%s, want cancelled/rejected", got.Status, got.PaymentStatus)
	}
	if p := env.payment(t, payment.ID); p.Status != model.PaymentStatusRejected {
		t.Errorf("payment status = %s, want rejected", p.Status)
	}

	if _, err := env.svc.RejectPayment(ctx, order.ID, admin); err != nil {
		t.Errorf("repeated RejectPayment() error = %v, want nil", err)
	}
	if _, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin)); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("ApprovePayment() after reject error = %v, want conflict", err)
	}
	if env.provisioner.CallCount() != 0 {
		t.Errorf("provisioner called %d times", env.provisioner.CallCount())
	}
}

// Scenario D
func TestConcurrentApprovalProvisionsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := make(chan struct{}, 2)
	unblock := make(chan struct{})
	env.provisioner.ProvisionFunc = func(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
		started <- struct{}{}
		<-unblock
		return &ProvisionResult{ServerID: 7}, nil
	}

	order := env.submit(t)
	env.record(t, order.ID, "paypal", "PAY-D")

	type outcome struct {
		res *ApprovalResult
		err error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
			results <- outcome{res, err}
		}()
	}

	first := <-results
	if !apperr.Is(first.err, apperr.Conflict) {
		t.Errorf("losing call error = %v, want conflict", first.err)
	}
	close(unblock)
	second := <-results
	if second.err != nil {
		t.Fatalf("winning call error = %v", second.err)
	}
	if second.res.ServerID != 7 {
		t.Errorf("server id = %d, want 7", second.res.ServerID)
	}
	if n := env.provisioner.CallCount(); n != 1 {
		t.Errorf("provisioner called %d times, want 1", n)
	}
	env.reload(t, order.ID)
}

func TestApproveTwiceReturnsSameServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	env.record(t, order.ID, "paypal", "PAY-2")

	first, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if err != nil {
		t.Fatalf("first ApprovePayment() error = %v", err)
	}
	second, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if err != nil {
		t.Fatalf("second ApprovePayment() error = %v", err)
	}
	if first.ServerID != second.ServerID || !second.AlreadyActive {
		t.Errorf("second = %+v, want same server as %+v", second, first)
	}
	if n := env.provisioner.CallCount(); n != 1 {
		t.Errorf("provisioner called %d times, want 1", n)
	}

	// active is terminal
	if _, err := env.svc.RejectPayment(ctx, order.ID, admin); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("RejectPayment() on active order error = %v, want conflict", err)
	}
	if _, err := env.svc.RetryProvisioning(ctx, order.ID, admin); err != nil {
		t.Errorf("RetryProvisioning() on active order error = %v", err)
	}
	if got := env.reload(t, order.ID); got.Status != model.OrderStatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestProvisioningTimeoutFailsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.svc.(*orderServiceImpl).opts.ProvisionTimeout = 50 * time.Millisecond

	// the caller going away mid-call must neither abort provisioning nor finalization
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.provisioner.ProvisionFunc = func(pctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
		cancel()
		<-pctx.Done()
		return nil, &ProvisioningError{Err: pctx.Err()}
	}

	order := env.submit(t)
	env.record(t, order.ID, "paypal", "PAY-T")

	_, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if !apperr.Is(err, apperr.Provisioning) {
		t.Fatalf("ApprovePayment() error = %v, want provisioning", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusFailed || got.PaymentStatus != model.PaymentStatusApproved {
		t.Errorf("order = %s/%s, want failed/approved", got.Status, got.PaymentStatus)
	}
}

func TestRetryProvisioningAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fail := true
	env.provisioner.ProvisionFunc = func(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
		if fail {
			return nil, &ProvisioningError{StatusCode: 503, Err: errors.New("unavailable")}
		}
		return &ProvisionResult{ServerID: 99}, nil
	}

	order := env.submit(t)
	env.record(t, order.ID, "paypal", "PAY-R")
	if _, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin)); !apperr.Is(err, apperr.Provisioning) {
		t.Fatalf("ApprovePayment() error = %v, want provisioning", err)
	}

	if _, err := env.svc.RetryProvisioning(ctx, order.ID, customer); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("RetryProvisioning() by customer error = %v, want unauthorized", err)
	}

	fail = false
	res, err := env.svc.RetryProvisioning(ctx, order.ID, admin)
	if err != nil {
		t.Fatalf("RetryProvisioning() error = %v", err)
	}
	if res.ServerID != 99 {
		t.Errorf("server id = %d, want 99", res.ServerID)
	}
	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusActive || got.FailureReason != nil {
		t.Errorf("order = %s reason=%v, want active with no reason", got.Status, got.FailureReason)
	}
	if got.ProvisioningAttempts != 2 {
		t.Errorf("attempts = %d, want 2", got.ProvisioningAttempts)
	}
}

func TestStaleClaimIsReleased(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	// an attempt that crashed after claiming the order
	claimedAt := time.Now().Add(-time.Hour)
	ok, err := env.orders.ClaimApproval(ctx, order.ID, nil, uuid.NewString(), claimedAt)
	if err != nil || !ok {
		t.Fatalf("ClaimApproval() = %t, %v", ok, err)
	}

	_, err = env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("ApprovePayment() error = %v, want conflict", err)
	}
	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusFailed || got.FailureReason == nil || *got.FailureReason != reasonInterrupted {
		t.Fatalf("order = %s reason=%v, want failed/interrupted", got.Status, got.FailureReason)
	}

	if _, err := env.svc.RetryProvisioning(ctx, order.ID, admin); err != nil {
		t.Fatalf("RetryProvisioning() error = %v", err)
	}
	if got := env.reload(t, order.ID); got.Status != model.OrderStatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
}

func TestFreshClaimBlocksApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	ok, err := env.orders.ClaimApproval(ctx, order.ID, nil, uuid.NewString(), time.Now())
	if err != nil || !ok {
		t.Fatalf("ClaimApproval() = %t, %v", ok, err)
	}

	_, err = env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.Conflict || !strings.Contains(ae.PublicMsg, "in progress") {
		t.Fatalf("ApprovePayment() error = %v, want in-progress conflict", err)
	}
	if env.provisioner.CallCount() != 0 {
		t.Error("provisioner called while another attempt holds the claim")
	}
}

func TestRecordPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.submit(t)

	valid := func() *RecordPaymentInput {
		return &RecordPaymentInput{
			Actor:     customer,
			OrderID:   order.ID,
			Gateway:   "razorpay",
			Reference: "pay_123",
			Amount:    decimal.RequireFromString("9.99"),
			Currency:  "INR",
		}
	}

	tests := []struct {
		name     string
		mutate   func(in *RecordPaymentInput)
		wantKind apperr.Kind
	}{
		{"unknown gateway", func(in *RecordPaymentInput) { in.Gateway = "bitcoin" }, apperr.Validation},
		{"empty reference", func(in *RecordPaymentInput) { in.Reference = " " }, apperr.Validation},
		{"zero amount", func(in *RecordPaymentInput) { in.Amount = decimal.Zero }, apperr.Validation},
		{"bad currency", func(in *RecordPaymentInput) { in.Currency = "RUPEE" }, apperr.Validation},
		{"bad gateway response", func(in *RecordPaymentInput) { in.GatewayResponse = []byte("{") }, apperr.Validation},
		{"unknown order", func(in *RecordPaymentInput) { in.OrderID = uuid.NewString() }, apperr.NotFound},
		{"not the owner", func(in *RecordPaymentInput) { in.Actor = stranger }, apperr.Unauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(in)
			_, err := env.svc.RecordPayment(ctx, in)
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Fatalf("RecordPayment() kind = %s, want %s (err %v)", got, tt.wantKind, err)
			}
		})
	}

	in := valid()
	in.GatewayResponse = []byte(`{"razorpay_payment_id":"pay_123"}`)
	first, err := env.svc.RecordPayment(ctx, in)
	if err != nil {
		t.Fatalf("RecordPayment() error = %v", err)
	}
	again, err := env.svc.RecordPayment(ctx, valid())
	if err != nil || again.ID != first.ID {
		t.Errorf("resubmitted reference = %v, %v; want original payment %s", again, err, first.ID)
	}

	other, err := env.svc.SubmitOrder(ctx, customer.UserID, "starter", "Second")
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	in = valid()
	in.OrderID = other.ID
	if _, err := env.svc.RecordPayment(ctx, in); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("reference reused on another order error = %v, want conflict", err)
	}

	if _, err := env.svc.RejectPayment(ctx, order.ID, admin); err != nil {
		t.Fatalf("RejectPayment() error = %v", err)
	}
	in = valid()
	in.Reference = "pay_456"
	if _, err := env.svc.RecordPayment(ctx, in); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("RecordPayment() on cancelled order error = %v, want conflict", err)
	}
}

func TestApprovePaymentSelection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	older := env.record(t, order.ID, "upi", "UPI-old")
	time.Sleep(10 * time.Millisecond)
	newer := env.record(t, order.ID, "upi", "UPI-new")

	other := env.submit(t)
	foreign := env.record(t, other.ID, "upi", "UPI-foreign")

	if _, err := env.svc.ApprovePayment(ctx, order.ID, foreign.ID, model.AdminApprover(admin)); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("approving another order's payment error = %v, want not found", err)
	}

	if _, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin)); err != nil {
		t.Fatalf("ApprovePayment() error = %v", err)
	}
	got := env.reload(t, order.ID)
	if got.ApprovedPaymentID == nil || *got.ApprovedPaymentID != newer.ID {
		t.Errorf("approved payment = %v, want newest %s", got.ApprovedPaymentID, newer.ID)
	}
	if p := env.payment(t, older.ID); p.Status != model.PaymentStatusPending {
		t.Errorf("older payment status = %s, want pending", p.Status)
	}
}

func TestApprovePaymentRequiresAuthorizedApprover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.submit(t)

	_, err := env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(customer))
	if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.Unauthorized || !ae.Forbidden {
		t.Errorf("customer approval error = %v, want forbidden", err)
	}
	_, err = env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(model.Actor{}))
	if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.Unauthorized || ae.Forbidden {
		t.Errorf("anonymous approval error = %v, want unauthorized", err)
	}
	if _, err := env.svc.ApprovePayment(ctx, uuid.NewString(), "", model.AdminApprover(admin)); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("unknown order error = %v, want not found", err)
	}
	if got := env.reload(t, order.ID); got.PaymentStatus != model.PaymentStatusPending {
		t.Errorf("payment status = %s, want pending", got.PaymentStatus)
	}
}

func TestOrderReadAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.submit(t)
	env.record(t, order.ID, "paypal", "PAY-READ")

	if _, err := env.svc.GetOrder(ctx, order.ID, stranger); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("GetOrder() by stranger error = %v, want unauthorized", err)
	}
	if _, err := env.svc.GetOrder(ctx, order.ID, admin); err != nil {
		t.Errorf("GetOrder() by admin error = %v", err)
	}
	payments, err := env.svc.ListPayments(ctx, order.ID, customer)
	if err != nil || len(payments) != 1 {
		t.Errorf("ListPayments() = %d, %v; want 1 payment", len(payments), err)
	}
	orders, err := env.svc.ListUserOrders(ctx, customer.UserID)
	if err != nil || len(orders) != 1 || orders[0].Plan == nil {
		t.Errorf("ListUserOrders() = %v, %v; want one order with its plan", orders, err)
	}
	if _, err := env.svc.ListEvents(ctx, order.ID, customer); !apperr.Is(err, apperr.Unauthorized) {
		t.Errorf("ListEvents() by customer error = %v, want unauthorized", err)
	}
	events, err := env.svc.ListEvents(ctx, order.ID, admin)
	if err != nil || len(events) != 2 {
		t.Errorf("ListEvents() = %d, %v; want submitted and recorded", len(events), err)
	}
}

// Random operation sequences must keep the order invariants and never leave a terminal state.
func TestLifecycleInvariantsHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	env.provisioner.ProvisionFunc = func(ctx context.Context, order *model.Order, plan *model.Plan) (*ProvisionResult, error) {
		if rng.Intn(3) == 0 {
			return nil, &ProvisioningError{StatusCode: 500, Err: errors.New("boom")}
		}
		return &ProvisionResult{ServerID: rng.Int63n(1000) + 1}, nil
	}

	for i := 0; i < 30; i++ {
		order := env.submit(t)
		var terminal *model.Order

		for step := 0; step < 8; step++ {
			switch rng.Intn(4) {
			case 0:
				env.svc.RecordPayment(ctx, &RecordPaymentInput{
					Actor:     customer,
					OrderID:   order.ID,
					Gateway:   "upi",
					Reference: uuid.NewString(),
					Amount:    decimal.RequireFromString("9.99"),
					Currency:  "INR",
				})
			case 1:
				env.svc.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
			case 2:
				env.svc.RejectPayment(ctx, order.ID, admin)
			case 3:
				env.svc.RetryProvisioning(ctx, order.ID, admin)
			}

			got := env.reload(t, order.ID)
			if got.Provisioning() {
				t.Fatalf("order %s left holding a provisioning claim", got.ID)
			}
			if terminal != nil {
				if got.Status != terminal.Status || got.PaymentStatus != terminal.PaymentStatus {
					t.Fatalf("terminal order changed from %s/%s to %s/%s",
						terminal.Status, terminal.PaymentStatus, got.Status, got.PaymentStatus)
				}
				if terminal.PterodactylServerID != nil && *got.PterodactylServerID != *terminal.PterodactylServerID {
					t.Fatalf("server reference of active order changed")
				}
			} else if got.IsTerminal() {
				terminal = got
			}
		}
	}
}

func TestRecordPaymentRacingTransition(t *testing.T) {
	tests := []struct {
		name       string
		transition func(env *testEnv, orderID string) error
		wantStatus model.OrderStatus
	}{
		{
			name: "rejected before insert",
			transition: func(env *testEnv, orderID string) error {
				_, err := env.svc.RejectPayment(context.Background(), orderID, admin)
				return err
			},
			wantStatus: model.OrderStatusCancelled,
		},
		{
			name: "approved before insert",
			transition: func(env *testEnv, orderID string) error {
				_, err := env.svc.ApprovePayment(context.Background(), orderID, "", model.AdminApprover(admin))
				return err
			},
			wantStatus: model.OrderStatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			order := env.submit(t)

			payments := &interleavingPayments{PaymentRepository: env.payments}
			payments.beforeAppend = func() {
				if err := tt.transition(env, order.ID); err != nil {
					t.Errorf("transition error = %v", err)
				}
			}
			svc := env.service(payments, lock.NewNoopLocker())

			_, err := svc.RecordPayment(ctx, &RecordPaymentInput{
				Actor:     customer,
				OrderID:   order.ID,
				Gateway:   "upi",
				Reference: "UPI-LATE",
				Amount:    decimal.RequireFromString("9.99"),
				Currency:  "INR",
			})
			if !apperr.Is(err, apperr.Conflict) {
				t.Fatalf("RecordPayment() error = %v, want conflict", err)
			}

			got := env.reload(t, order.ID)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			stored, err := env.payments.FindByReference(ctx, model.PaymentMethodUPI, "UPI-LATE")
			if err != nil {
				t.Fatalf("FindByReference() error = %v", err)
			}
			if stored.Status != model.PaymentStatusRejected || stored.CompletedAt == nil {
				t.Errorf("late payment = %s, want rejected", stored.Status)
			}
		})
	}
}

func TestBusyOrderLockIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := env.submit(t)
	env.record(t, order.ID, "upi", "UPI-L")

	busy := env.service(env.payments, stubLocker{err: lock.ErrLocked})
	if _, err := busy.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin)); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("ApprovePayment() under held lock error = %v, want conflict", err)
	}
	if _, err := busy.RetryProvisioning(ctx, order.ID, admin); !apperr.Is(err, apperr.Conflict) {
		t.Errorf("RetryProvisioning() under held lock error = %v, want conflict", err)
	}

	broken := env.service(env.payments, stubLocker{err: errors.New("redis: connection refused")})
	_, err := broken.ApprovePayment(ctx, order.ID, "", model.AdminApprover(admin))
	if apperr.KindOf(err) != apperr.Internal {
		t.Errorf("ApprovePayment() with lock backend down error = %v, want internal", err)
	}

	if env.provisioner.CallCount() != 0 {
		t.Error("provisioner reached without the order lock")
	}
	got := env.reload(t, order.ID)
	if got.Status != model.OrderStatusPending || got.PaymentStatus != model.PaymentStatusPending {
		t.Errorf("order = %s/%s, want pending/pending", got.Status, got.PaymentStatus)
	}
}
