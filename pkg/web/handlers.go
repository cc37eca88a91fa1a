// Package web exposes the payment flow over HTTP: initiation, the inbound
// gateway callback endpoints, refunds and status inquiry.
package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/novinshop/paycore/pkg/errors"
	"github.com/novinshop/paycore/pkg/gateway"
	"github.com/novinshop/paycore/pkg/payments"
)

type Handler struct {
	orch *payments.Orchestrator
	log  *slog.Logger
}

func NewHandler(orch *payments.Orchestrator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{orch: orch, log: log.With("component", "web")}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/orders/:orderID/payments", h.initialize)
	r.GET("/callbacks/:gateway", h.callback)
	r.POST("/callbacks/:gateway", h.callback)
	r.POST("/payments/:paymentID/refund", h.refund)
	r.GET("/payments/:paymentID", h.get)
	r.GET("/payments/:paymentID/inquiry", h.inquire)
}

type initializeRequest struct {
	Gateway string `json:"gateway"`
}

func (h *Handler) initialize(c *gin.Context) {
	var req initializeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "payment.bad_request", "message": "malformed request body"})
			return
		}
	}
	userID := c.GetHeader("X-User-ID")

	outcome, err := h.orch.Initialize(c.Request.Context(), c.Param("orderID"), userID, req.Gateway)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id":   outcome.PaymentID,
		"redirect_url": outcome.RedirectURL,
	})
}

// callback receives the provider's redirect or server call. Whatever the
// outcome, the payer is forwarded to a result target; the gateway's retry
// queue only needs a 2xx/3xx.
func (h *Handler) callback(c *gin.Context) {
	payload := callbackPayload(c)

	outcome, err := h.orch.HandleCallback(c.Request.Context(), c.Param("gateway"), payload)
	if outcome == nil && err != nil {
		status := http.StatusBadRequest
		var ue *apperrors.UserError
		if errors.As(err, &ue) {
			status = statusFor(ue)
		}
		h.log.Warn("callback rejected", "gateway", c.Param("gateway"), "err", err)
		c.JSON(status, gin.H{"code": errorCode(err), "message": err.Error()})
		return
	}

	if outcome.Redirect != "" && outcome.Redirect[0] != '/' {
		c.Redirect(http.StatusFound, outcome.Redirect)
		return
	}
	// No frontend configured: render the result page directly.
	renderResultPage(c, outcome)
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h *Handler) refund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "payment.bad_request", "message": "malformed request body"})
			return
		}
	}
	actorID := c.GetHeader("X-Actor-ID")

	rec, err := h.orch.Refund(c.Request.Context(), c.Param("paymentID"), actorID, payments.RefundOptions{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id":    rec.ID,
		"status":        rec.Status,
		"refund_amount": rec.RefundAmount,
		"refunded_at":   rec.RefundedAt,
	})
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.orch.Get(c.Request.Context(), c.Param("paymentID"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id":     rec.ID,
		"order_id":       rec.OrderID,
		"gateway":        rec.GatewayName,
		"amount":         rec.Amount,
		"status":         rec.Status,
		"transaction_id": rec.TransactionID,
		"ref_id":         rec.RefID,
		"error_code":     rec.ErrorCode,
		"created_at":     rec.CreatedAt,
		"completed_at":   rec.CompletedAt,
	})
}

func (h *Handler) inquire(c *gin.Context) {
	result, err := h.orch.Inquire(c.Request.Context(), c.Param("paymentID"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id":     result.Record.ID,
		"record_status":  result.Record.Status,
		"gateway_status": result.GatewayStatus,
	})
}

// callbackPayload flattens query and form parameters; providers differ on
// which they use.
func callbackPayload(c *gin.Context) gateway.CallbackPayload {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	if err := c.Request.ParseForm(); err == nil {
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	return gateway.CallbackPayload{Params: params}
}

func (h *Handler) renderError(c *gin.Context, err error) {
	var ue *apperrors.UserError
	if !errors.As(err, &ue) {
		h.log.Error("unhandled error", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "message": "internal error"})
		return
	}
	c.JSON(statusFor(ue), gin.H{"code": ue.Code, "message": ue.Message})
}

func errorCode(err error) string {
	var ue *apperrors.UserError
	if errors.As(err, &ue) {
		return ue.Code
	}
	return "internal"
}

func statusFor(ue *apperrors.UserError) int {
	switch ue {
	case apperrors.ErrOrderNotFound, apperrors.ErrPaymentNotFound:
		return http.StatusNotFound
	case apperrors.ErrOrderAlreadyPaid, apperrors.ErrRefundInvalidState:
		return http.StatusConflict
	case apperrors.ErrGatewayUnavailable:
		return http.StatusBadGateway
	case apperrors.ErrGatewayNotFound, apperrors.ErrGatewayMisconfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
