// Package notify tells administrators about orders that need their attention. Notifications
// are best effort and never affect the outcome of the operation that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"ptero-billing/internal/config"
	"ptero-billing/internal/model"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const sendTimeout = 5 * time.Second

type Notifier interface {
	PaymentRecorded(ctx context.Context, order *model.Order, payment *model.Payment)
	OrderProvisioned(ctx context.Context, orderID string, serverID int64, simulated bool)
	ProvisioningFailed(ctx context.Context, orderID, detail string)
}

type telegramNotifierImpl struct {
	bot    *telego.Bot
	chatID int64
	logger *slog.Logger
}

func NewTelegramNotifier(cfg *config.Telegram, logger *slog.Logger, opts ...telego.BotOption) (Notifier, error) {
	bot, err := telego.NewBot(cfg.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &telegramNotifierImpl{
		bot:    bot,
		chatID: cfg.AdminChatID,
		logger: logger,
	}, nil
}

func (n *telegramNotifierImpl) PaymentRecorded(ctx context.Context, order *model.Order, payment *model.Payment) {
	text := fmt.Sprintf("💳 Payment awaiting approval\nOrder: %s\nServer: %s\nPlan: %s\nGateway: %s\nReference: %s\nAmount: %s %s",
		order.ID,
		order.ServerName,
		order.PlanID,
		payment.Gateway,
		payment.Reference,
		payment.Amount.StringFixed(2),
		payment.Currency,
	)
	if !payment.Gateway.Manual() {
		text += "\nThe customer can confirm this payment through the gateway."
	}
	n.send(ctx, order.ID, text)
}

func (n *telegramNotifierImpl) OrderProvisioned(ctx context.Context, orderID string, serverID int64, simulated bool) {
	text := fmt.Sprintf("✅ Order %s provisioned as server #%d", orderID, serverID)
	if simulated {
		text += " (simulated, panel not configured)"
	}
	n.send(ctx, orderID, text)
}

func (n *telegramNotifierImpl) ProvisioningFailed(ctx context.Context, orderID, detail string) {
	n.send(ctx, orderID, fmt.Sprintf("❌ Provisioning failed for order %s\n%s\nPayment stays approved; retry or refund manually.", orderID, detail))
}

func (n *telegramNotifierImpl) send(ctx context.Context, orderID, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), text)); err != nil {
		n.logger.Warn("telegram notification failed", "order_id", orderID, "error", err)
	}
}

type noopNotifierImpl struct{}

func NewNoopNotifier() Notifier {
	return noopNotifierImpl{}
}

func (noopNotifierImpl) PaymentRecorded(context.Context, *model.Order, *model.Payment) {}
func (noopNotifierImpl) OrderProvisioned(context.Context, string, int64, bool)         {}
func (noopNotifierImpl) ProvisioningFailed(context.Context, string, string)            {}
