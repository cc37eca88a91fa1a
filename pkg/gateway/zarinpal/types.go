package zarinpal

import "encoding/json"

type paymentRequest struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type verifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type inquiryRequest struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
}

type reverseRequest struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
}

// envelope is the v4 API wrapper. On success data is an object and errors is
// an empty array; on failure data is an empty array and errors is an object.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type resultData struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
	RefID     int64  `json:"ref_id"`
	CardPan   string `json:"card_pan"`
	Status    string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
