package errors

// UserError is a caller-facing error with a stable machine code. The message
// is safe to show to end users; diagnostic detail belongs in logs.
type UserError struct {
	Code    string
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func New(code, message string) *UserError {
	return &UserError{Code: code, Message: message}
}

// Payment orchestration errors
var (
	ErrOrderNotFound        = New("payment.order_not_found", "Order not found")
	ErrOrderAlreadyPaid     = New("payment.order_already_paid", "Order is already paid")
	ErrInvalidPaymentMethod = New("payment.invalid_method", "Order is not payable online")
	ErrPaymentNotFound      = New("payment.not_found", "Payment record not found")
	ErrInvalidCallback      = New("payment.invalid_callback", "Callback payload is malformed")
	ErrPaymentRejected      = New("payment.rejected", "Payment was rejected by the gateway")
	ErrPaymentCancelled     = New("payment.cancelled", "Payment was cancelled")
	ErrGatewayUnavailable   = New("payment.gateway_unavailable", "Payment gateway is unavailable, please retry")
	ErrInvalidRefundAmount  = New("payment.invalid_refund_amount", "Refund amount exceeds the paid amount")
	ErrRefundInvalidState   = New("payment.refund_invalid_state", "Only completed payments can be refunded")
	ErrRefundRejected       = New("payment.refund_rejected", "Refund was rejected by the gateway")
)

// Gateway configuration errors
var (
	ErrGatewayNotFound      = New("gateway.not_found", "Payment gateway is not configured")
	ErrGatewayMisconfigured = New("gateway.misconfigured", "Payment gateway credentials are missing")
)
