// Package notify is the outbound notification boundary. Implementations
// must swallow their own failures; a broken SMS provider must never affect
// payment state.
package notify

import (
	"context"
	"log/slog"

	"github.com/novinshop/paycore/pkg/models"
)

type Notifier interface {
	PaymentCompleted(ctx context.Context, rec *models.PaymentRecord)
	PaymentFailed(ctx context.Context, rec *models.PaymentRecord)
	PaymentRefunded(ctx context.Context, rec *models.PaymentRecord)
}

// LogNotifier is the default sink until a real delivery channel is wired.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) PaymentCompleted(ctx context.Context, rec *models.PaymentRecord) {
	n.log.Info("payment completed",
		"payment_id", rec.ID, "order_id", rec.OrderID, "user_id", rec.UserID,
		"gateway", rec.GatewayName, "amount", rec.Amount, "ref_id", rec.RefID)
}

func (n *LogNotifier) PaymentFailed(ctx context.Context, rec *models.PaymentRecord) {
	n.log.Info("payment failed",
		"payment_id", rec.ID, "order_id", rec.OrderID, "user_id", rec.UserID,
		"gateway", rec.GatewayName, "error_code", rec.ErrorCode)
}

func (n *LogNotifier) PaymentRefunded(ctx context.Context, rec *models.PaymentRecord) {
	n.log.Info("payment refunded",
		"payment_id", rec.ID, "order_id", rec.OrderID, "user_id", rec.UserID,
		"gateway", rec.GatewayName, "refund_amount", rec.RefundAmount)
}
