// Package gateway defines the uniform contract every payment provider
// adapter implements. Adapters translate these operations into the
// provider's wire protocol; they hold no payment state and never touch the
// payment store.
package gateway

import "context"

// InitializeRequest asks the provider to open a payment session.
type InitializeRequest struct {
	Amount      int64 // minor currency unit
	Description string
	CallbackURL string
	OrderRef    string
	Meta        map[string]string // optional customer metadata (mobile, email)
}

// InitializeResult carries the provider session token and the URL the payer
// must be redirected to.
type InitializeResult struct {
	Authority   string
	RedirectURL string
}

type VerifyRequest struct {
	Authority string
	OrderRef  string
	Amount    int64
}

// VerifyResult is the settlement proof. Raw is the provider response body,
// retained on the record for audit.
type VerifyResult struct {
	TransactionID string
	RefID         string
	Raw           []byte
}

type RefundRequest struct {
	Authority     string
	OrderRef      string
	TransactionID string
	Amount        int64
	Reason        string
}

type RefundResult struct {
	Raw []byte
}

type StatusRequest struct {
	Authority string
	OrderRef  string
}

type StatusResult struct {
	Status string
	Raw    []byte
}

// CallbackPayload is the provider callback flattened to key/value params
// plus the raw body. Providers vary between query and form encodings; the
// transport layer merges both.
type CallbackPayload struct {
	Params  map[string]string
	RawBody []byte
}

func (p CallbackPayload) Get(key string) string {
	return p.Params[key]
}

// CallbackData is the normalized identifying part of a callback.
type CallbackData struct {
	Authority string
	Cancelled bool
}

// Client is implemented once per provider. Provider-reported business
// failures are returned as *Error values, not panics; only the error return
// carries them. Verify must be safe to call repeatedly for one authority.
type Client interface {
	Name() string
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	Status(ctx context.Context, req StatusRequest) (*StatusResult, error)

	// ValidateCallback checks that a payload carries the minimum fields
	// needed to look a record up, before any state is read.
	ValidateCallback(payload CallbackPayload) bool
	ParseCallback(payload CallbackPayload) (*CallbackData, error)
}
