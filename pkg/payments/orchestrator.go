// Package payments drives the payment lifecycle: it owns every transition
// of a PaymentRecord, verifies gateway callbacks exactly once, and applies
// the settlement to the order through the reconciler boundary.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/novinshop/paycore/pkg/errors"
	"github.com/novinshop/paycore/pkg/gateway"
	"github.com/novinshop/paycore/pkg/metrics"
	"github.com/novinshop/paycore/pkg/models"
	"github.com/novinshop/paycore/pkg/notify"
	"github.com/novinshop/paycore/pkg/orders"
)

// Orchestrator coordinates gateways, the payment store and the order
// boundary. Adapters and the registry are stateless; all record mutation
// happens here.
type Orchestrator struct {
	store      Store
	orders     orders.Reader
	reconciler orders.Reconciler
	gateways   *gateway.Registry
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	log        *slog.Logger
	locks      *keyedMutex

	publicBaseURL   string
	frontendBaseURL string
}

type Config struct {
	Store      Store
	Orders     orders.Reader
	Reconciler orders.Reconciler
	Gateways   *gateway.Registry
	Notifier   notify.Notifier
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// PublicBaseURL is where gateways reach the callback endpoints;
	// FrontendBaseURL is where payers land after the flow finishes.
	PublicBaseURL   string
	FrontendBaseURL string
}

func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:           cfg.Store,
		orders:          cfg.Orders,
		reconciler:      cfg.Reconciler,
		gateways:        cfg.Gateways,
		notifier:        cfg.Notifier,
		metrics:         cfg.Metrics,
		log:             logger.With("component", "payments"),
		locks:           newKeyedMutex(),
		publicBaseURL:   cfg.PublicBaseURL,
		frontendBaseURL: cfg.FrontendBaseURL,
	}
}

// InitializeOutcome is returned to the initiating caller; settlement itself
// arrives later through the callback path.
type InitializeOutcome struct {
	PaymentID   string
	Authority   string
	RedirectURL string
}

// CallbackOutcome always carries a redirect target so the transport layer
// can finish the user-facing flow, whatever happened.
type CallbackOutcome struct {
	Success   bool
	PaymentID string
	OrderID   string
	RefID     string
	Redirect  string
}

// RefundOptions: zero Amount means a full refund.
type RefundOptions struct {
	Amount int64
	Reason string
}

type InquiryResult struct {
	Record        *models.PaymentRecord
	GatewayStatus string
	Raw           []byte
}

// Initialize starts (or restarts) payment of an order. An existing
// reusable record for the order is taken over instead of inserting a new
// row, so retries keep a compact attempt history.
func (o *Orchestrator) Initialize(ctx context.Context, orderID, userID, gatewayName string) (*InitializeOutcome, error) {
	ord, err := o.orders.Find(ctx, orderID)
	if err != nil {
		if err == orders.ErrNotFound {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if ord.PaymentStatus == models.OrderPaymentStatusPaid {
		return nil, apperrors.ErrOrderAlreadyPaid
	}
	if ord.PaymentMethod != models.PaymentMethodOnline {
		return nil, apperrors.ErrInvalidPaymentMethod
	}

	client, err := o.gateways.Resolve(gatewayName)
	if err != nil {
		o.log.Error("gateway resolution failed", "order_id", orderID, "gateway", gatewayName, "err", err)
		return nil, apperrors.ErrGatewayNotFound
	}

	rec, err := o.recordForAttempt(ctx, ord, userID, client.Name())
	if err != nil {
		return nil, err
	}

	result, err := client.Initialize(ctx, gateway.InitializeRequest{
		Amount:      rec.Amount,
		Description: fmt.Sprintf("Payment for order %s", ord.ID),
		CallbackURL: rec.CallbackURL,
		OrderRef:    ord.ID,
	})
	if err != nil {
		return nil, o.failInitialize(ctx, rec, err)
	}

	now := time.Now()
	rec.Authority = result.Authority
	rec.RedirectURL = result.RedirectURL
	rec.Status = models.PaymentStatusProcessing
	rec.ProcessedAt = &now
	if err := o.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist processing record %s: %w", rec.ID, err)
	}

	if o.metrics != nil {
		o.metrics.Initialized.WithLabelValues(rec.GatewayName).Inc()
	}
	o.log.Info("payment initialized",
		"payment_id", rec.ID, "order_id", ord.ID, "gateway", rec.GatewayName,
		"amount", rec.Amount, "authority", rec.Authority)

	return &InitializeOutcome{
		PaymentID:   rec.ID,
		Authority:   rec.Authority,
		RedirectURL: rec.RedirectURL,
	}, nil
}

// recordForAttempt reuses the order's latest record when it is reusable and
// its amount still matches the order total; otherwise it creates a fresh
// pending row. Amount never changes on an existing record.
func (o *Orchestrator) recordForAttempt(ctx context.Context, ord *models.Order, userID, gatewayName string) (*models.PaymentRecord, error) {
	prior, err := o.store.FindLatestByOrderID(ctx, ord.ID)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("lookup prior attempt for order %s: %w", ord.ID, err)
	}

	if prior != nil {
		if prior.Status == models.PaymentStatusCompleted || prior.Status == models.PaymentStatusRefunded {
			return nil, apperrors.ErrOrderAlreadyPaid
		}
		if prior.Status.Reusable() && prior.Amount == ord.PayableAmount {
			prior.Status = models.PaymentStatusPending
			prior.GatewayName = gatewayName
			prior.Authority = ""
			prior.RedirectURL = ""
			prior.CallbackURL = o.callbackURL(gatewayName)
			prior.TransactionID = ""
			prior.RefID = ""
			prior.ErrorCode = ""
			prior.ErrorMessage = ""
			prior.ProcessedAt = nil
			prior.FailedAt = nil
			if err := o.store.Save(ctx, prior); err != nil {
				return nil, fmt.Errorf("reset record %s: %w", prior.ID, err)
			}
			return prior, nil
		}
	}

	rec := &models.PaymentRecord{
		ID:          uuid.NewString(),
		OrderID:     ord.ID,
		UserID:      userID,
		Amount:      ord.PayableAmount,
		GatewayName: gatewayName,
		Status:      models.PaymentStatusPending,
		CallbackURL: o.callbackURL(gatewayName),
		CreatedAt:   time.Now(),
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record for order %s: %w", ord.ID, err)
	}
	return rec, nil
}

// failInitialize durably records an initialize failure and maps it to a
// caller-facing error. The record survives for reuse on the next attempt.
func (o *Orchestrator) failInitialize(ctx context.Context, rec *models.PaymentRecord, cause error) error {
	code, message, userErr := classifyGatewayError(cause)
	if _, err := o.store.MarkFailure(ctx, rec.ID, Failure{
		Status:  models.PaymentStatusFailed,
		Code:    code,
		Message: message,
		At:      time.Now(),
	}); err != nil {
		o.log.Error("recording initialize failure failed", "payment_id", rec.ID, "err", err)
	}
	if o.metrics != nil {
		o.metrics.Failed.WithLabelValues(rec.GatewayName).Inc()
	}
	o.log.Warn("payment initialize failed",
		"payment_id", rec.ID, "order_id", rec.OrderID, "gateway", rec.GatewayName,
		"error_code", code, "err", cause)
	return userErr
}

// HandleCallback processes a gateway callback. It is idempotent under
// arbitrary and concurrent repetition: a record already completed returns
// its stored proof without touching the gateway or the order, and the
// completed transition itself is a conditional update only one caller wins.
func (o *Orchestrator) HandleCallback(ctx context.Context, gatewayName string, payload gateway.CallbackPayload) (*CallbackOutcome, error) {
	client, err := o.gateways.Resolve(gatewayName)
	if err != nil {
		return nil, apperrors.ErrGatewayNotFound
	}

	if !client.ValidateCallback(payload) {
		return nil, apperrors.ErrInvalidCallback
	}
	data, err := client.ParseCallback(payload)
	if err != nil {
		return nil, apperrors.ErrInvalidCallback
	}

	unlock := o.locks.lock("authority:" + data.Authority)
	defer unlock()

	rec, err := o.store.FindByAuthority(ctx, data.Authority)
	if err != nil {
		if err == ErrNotFound {
			o.log.Warn("callback for unknown authority", "gateway", gatewayName, "authority", data.Authority)
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("lookup authority %s: %w", data.Authority, err)
	}

	// Duplicate of an already settled callback: answer from the record.
	if rec.Status == models.PaymentStatusCompleted || rec.Status == models.PaymentStatusRefunded {
		if o.metrics != nil {
			o.metrics.DuplicateCallbacks.WithLabelValues(gatewayName).Inc()
		}
		o.log.Info("duplicate callback short-circuited", "payment_id", rec.ID, "authority", rec.Authority)
		return o.successOutcome(rec), nil
	}

	// A different attempt already settled this order: report settled, do
	// not verify or reconcile again.
	settled, err := o.store.FindCompletedByOrderID(ctx, rec.OrderID)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("lookup settled attempt for order %s: %w", rec.OrderID, err)
	}
	if settled != nil {
		o.log.Info("order already settled by another attempt",
			"payment_id", rec.ID, "settled_payment_id", settled.ID, "order_id", rec.OrderID)
		return o.successOutcome(settled), nil
	}

	if data.Cancelled {
		return o.failCallback(ctx, rec, models.PaymentStatusCancelled, "CANCELLED_BY_USER", "payer cancelled at the gateway"), nil
	}

	verified, err := client.Verify(ctx, gateway.VerifyRequest{
		Authority: rec.Authority,
		OrderRef:  rec.OrderID,
		Amount:    rec.Amount,
	})
	if err != nil {
		if gateway.IsTransport(err) {
			// No gateway-side effect can be assumed; the record stays in
			// processing so the callback retry or a status inquiry can
			// settle it later.
			o.log.Warn("verify transport failure, record left processing",
				"payment_id", rec.ID, "authority", rec.Authority, "err", err)
			return &CallbackOutcome{
				PaymentID: rec.ID,
				OrderID:   rec.OrderID,
				Redirect:  o.failureRedirect(rec.OrderID, "pending"),
			}, apperrors.ErrGatewayUnavailable
		}
		ge, _ := gateway.AsError(err)
		code, message := "UNKNOWN", err.Error()
		if ge != nil {
			code, message = ge.Code, ge.Message
		}
		return o.failCallback(ctx, rec, models.PaymentStatusFailed, code, message), nil
	}

	settle := Settlement{
		TransactionID: verified.TransactionID,
		RefID:         verified.RefID,
		Raw:           verified.Raw,
		CompletedAt:   time.Now(),
	}
	won, err := o.store.CompleteIfNotCompleted(ctx, rec.ID, settle)
	if err != nil {
		return nil, fmt.Errorf("complete record %s: %w", rec.ID, err)
	}
	if !won {
		// A concurrent callback on another instance got there first.
		current, err := o.store.FindByID(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("reload record %s: %w", rec.ID, err)
		}
		if o.metrics != nil {
			o.metrics.DuplicateCallbacks.WithLabelValues(gatewayName).Inc()
		}
		return o.successOutcome(current), nil
	}

	rec.Status = models.PaymentStatusCompleted
	rec.TransactionID = settle.TransactionID
	rec.RefID = settle.RefID
	rec.CompletedAt = &settle.CompletedAt

	// The settlement already happened at the gateway. A reconciliation
	// failure here is a critical inconsistency to surface, never a reason
	// to roll the payment back.
	if err := o.reconciler.MarkPaid(ctx, rec.OrderID, rec.TransactionID, rec.GatewayName, verified.Raw); err != nil {
		if o.metrics != nil {
			o.metrics.CriticalInconsistencies.Inc()
		}
		o.log.Error("CRITICAL: payment settled but order reconciliation failed",
			"critical", true, "payment_id", rec.ID, "order_id", rec.OrderID,
			"transaction_id", rec.TransactionID, "gateway", rec.GatewayName, "err", err)
	}

	if o.metrics != nil {
		o.metrics.Completed.WithLabelValues(gatewayName).Inc()
	}
	if o.notifier != nil {
		o.notifier.PaymentCompleted(ctx, rec)
	}
	o.log.Info("payment completed",
		"payment_id", rec.ID, "order_id", rec.OrderID, "gateway", gatewayName,
		"transaction_id", rec.TransactionID, "ref_id", rec.RefID)

	return o.successOutcome(rec), nil
}

func (o *Orchestrator) failCallback(ctx context.Context, rec *models.PaymentRecord, status models.PaymentStatus, code, message string) *CallbackOutcome {
	if _, err := o.store.MarkFailure(ctx, rec.ID, Failure{
		Status:  status,
		Code:    code,
		Message: message,
		At:      time.Now(),
	}); err != nil {
		o.log.Error("recording callback failure failed", "payment_id", rec.ID, "err", err)
	}
	rec.Status = status
	rec.ErrorCode = code
	rec.ErrorMessage = message

	if o.metrics != nil {
		o.metrics.Failed.WithLabelValues(rec.GatewayName).Inc()
	}
	if o.notifier != nil {
		o.notifier.PaymentFailed(ctx, rec)
	}
	o.log.Info("payment failed",
		"payment_id", rec.ID, "order_id", rec.OrderID, "gateway", rec.GatewayName,
		"status", status, "error_code", code)

	reason := "failed"
	if status == models.PaymentStatusCancelled {
		reason = "cancelled"
	}
	return &CallbackOutcome{
		PaymentID: rec.ID,
		OrderID:   rec.OrderID,
		Redirect:  o.failureRedirect(rec.OrderID, reason),
	}
}

// Refund reverses a completed payment through its original gateway. Any
// other record state is a conflict and leaves the record untouched.
func (o *Orchestrator) Refund(ctx context.Context, paymentID, actorID string, opts RefundOptions) (*models.PaymentRecord, error) {
	rec, err := o.store.FindByID(ctx, paymentID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", paymentID, err)
	}

	unlock := o.locks.lock("refund:" + rec.ID)
	defer unlock()

	// Re-read under the lock so two concurrent refunds cannot both pass
	// the state check.
	rec, err = o.store.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload record %s: %w", paymentID, err)
	}
	if rec.Status != models.PaymentStatusCompleted {
		return nil, apperrors.ErrRefundInvalidState
	}

	amount := opts.Amount
	if amount == 0 {
		amount = rec.Amount
	}
	if amount < 0 || amount > rec.Amount {
		return nil, apperrors.ErrInvalidRefundAmount
	}

	client, err := o.gateways.Resolve(rec.GatewayName)
	if err != nil {
		return nil, apperrors.ErrGatewayNotFound
	}

	if _, err := client.Refund(ctx, gateway.RefundRequest{
		Authority:     rec.Authority,
		OrderRef:      rec.OrderID,
		TransactionID: rec.TransactionID,
		Amount:        amount,
		Reason:        opts.Reason,
	}); err != nil {
		// The record stays completed; a refund is never assumed to have
		// partially happened.
		o.log.Warn("gateway refund failed",
			"payment_id", rec.ID, "gateway", rec.GatewayName, "amount", amount, "err", err)
		if gateway.IsTransport(err) {
			return nil, apperrors.ErrGatewayUnavailable
		}
		return nil, apperrors.ErrRefundRejected
	}

	now := time.Now()
	rec.Status = models.PaymentStatusRefunded
	rec.RefundedBy = actorID
	rec.RefundReason = opts.Reason
	rec.RefundAmount = amount
	rec.RefundedAt = &now
	if err := o.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist refund on record %s: %w", rec.ID, err)
	}

	if err := o.reconciler.MarkRefunded(ctx, rec.OrderID); err != nil {
		if o.metrics != nil {
			o.metrics.CriticalInconsistencies.Inc()
		}
		o.log.Error("CRITICAL: payment refunded but order reconciliation failed",
			"critical", true, "payment_id", rec.ID, "order_id", rec.OrderID, "err", err)
	}

	if o.metrics != nil {
		o.metrics.Refunded.WithLabelValues(rec.GatewayName).Inc()
	}
	if o.notifier != nil {
		o.notifier.PaymentRefunded(ctx, rec)
	}
	o.log.Info("payment refunded",
		"payment_id", rec.ID, "order_id", rec.OrderID, "actor_id", actorID, "amount", amount)

	return rec, nil
}

// Inquire asks the gateway for the authoritative state of an attempt. It is
// the reconciliation path for outcomes left ambiguous by a transport
// failure during verify.
func (o *Orchestrator) Inquire(ctx context.Context, paymentID string) (*InquiryResult, error) {
	rec, err := o.store.FindByID(ctx, paymentID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("load record %s: %w", paymentID, err)
	}
	client, err := o.gateways.Resolve(rec.GatewayName)
	if err != nil {
		return nil, apperrors.ErrGatewayNotFound
	}
	status, err := client.Status(ctx, gateway.StatusRequest{
		Authority: rec.Authority,
		OrderRef:  rec.OrderID,
	})
	if err != nil {
		if gateway.IsTransport(err) {
			return nil, apperrors.ErrGatewayUnavailable
		}
		return nil, err
	}
	return &InquiryResult{Record: rec, GatewayStatus: status.Status, Raw: status.Raw}, nil
}

// Get returns a payment record by id.
func (o *Orchestrator) Get(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	rec, err := o.store.FindByID(ctx, paymentID)
	if err != nil {
		if err == ErrNotFound {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (o *Orchestrator) successOutcome(rec *models.PaymentRecord) *CallbackOutcome {
	return &CallbackOutcome{
		Success:   true,
		PaymentID: rec.ID,
		OrderID:   rec.OrderID,
		RefID:     rec.RefID,
		Redirect:  o.successRedirect(rec.OrderID, rec.RefID),
	}
}

// Redirect targets are pure functions of order id and outcome.
func (o *Orchestrator) successRedirect(orderID, refID string) string {
	q := url.Values{"order": {orderID}, "status": {"success"}}
	if refID != "" {
		q.Set("ref", refID)
	}
	return o.frontendBaseURL + "/payment/result?" + q.Encode()
}

func (o *Orchestrator) failureRedirect(orderID, reason string) string {
	q := url.Values{"order": {orderID}, "status": {reason}}
	return o.frontendBaseURL + "/payment/result?" + q.Encode()
}

func (o *Orchestrator) callbackURL(gatewayName string) string {
	return o.publicBaseURL + "/callbacks/" + gatewayName
}

// classifyGatewayError maps an adapter error to the persisted code/message
// and the error shown to the caller.
func classifyGatewayError(err error) (code, message string, userErr error) {
	if ge, ok := gateway.AsError(err); ok {
		switch ge.Kind {
		case gateway.KindTransport:
			return string(gateway.KindTransport), ge.Message, apperrors.ErrGatewayUnavailable
		default:
			return ge.Code, ge.Message, apperrors.ErrPaymentRejected
		}
	}
	return "UNKNOWN", err.Error(), apperrors.ErrPaymentRejected
}
