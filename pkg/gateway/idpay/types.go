package idpay

import "encoding/json"

type createRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Callback string `json:"callback"`
	Desc     string `json:"desc,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Mail     string `json:"mail,omitempty"`
}

type createResponse struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

type verifyRequest struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
}

type verifyResponse struct {
	Status  int         `json:"status"`
	TrackID json.Number `json:"track_id"`
	ID      string      `json:"id"`
	OrderID string      `json:"order_id"`
	Amount  json.Number `json:"amount"`
	Payment struct {
		TrackID json.Number `json:"track_id"`
		CardNo  string      `json:"card_no"`
		Date    json.Number `json:"date"`
	} `json:"payment"`
}

type inquiryResponse struct {
	Status  int         `json:"status"`
	TrackID json.Number `json:"track_id"`
	ID      string      `json:"id"`
	OrderID string      `json:"order_id"`
}

type errorResponse struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Transaction status codes documented by IDPay.
const (
	statusCancelled = 7
	statusVerified  = 100
	statusReVerify  = 101
	statusSettled   = 200
)

var statusNames = map[int]string{
	1:               "pending",
	2:               "failed",
	3:               "error",
	4:               "blocked",
	5:               "reversed",
	6:               "systemically_reversed",
	statusCancelled: "cancelled",
	8:               "redirected",
	10:              "awaiting_verification",
	statusVerified:  "verified",
	statusReVerify:  "verified",
	statusSettled:   "settled",
}
