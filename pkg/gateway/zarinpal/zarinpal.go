// Package zarinpal implements the gateway contract against the ZarinPal
// payment REST API (v4).
package zarinpal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/novinshop/paycore/pkg/gateway"
)

const (
	liveAPIBase    = "https://payment.zarinpal.com/pg/v4/payment"
	sandboxAPIBase = "https://sandbox.zarinpal.com/pg/v4/payment"
	livePayBase    = "https://payment.zarinpal.com/pg/StartPay/"
	sandboxPayBase = "https://sandbox.zarinpal.com/pg/StartPay/"

	codeVerified        = 100
	codeAlreadyVerified = 101
)

type Client struct {
	merchantID string
	apiBase    string
	payBase    string
	timeout    time.Duration
}

func New(merchantID string, sandbox bool, timeout time.Duration) (*Client, error) {
	if merchantID == "" {
		return nil, gateway.NewError(gateway.KindConfig, "MISSING_MERCHANT_ID", "zarinpal merchant id is not set")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		merchantID: merchantID,
		apiBase:    liveAPIBase,
		payBase:    livePayBase,
		timeout:    timeout,
	}
	if sandbox {
		c.apiBase = sandboxAPIBase
		c.payBase = sandboxPayBase
	}
	return c, nil
}

func (c *Client) Name() string {
	return "zarinpal"
}

func (c *Client) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	body := paymentRequest{
		MerchantID:  c.merchantID,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
		Description: req.Description,
		Metadata:    req.Meta,
	}
	data, _, err := c.post(ctx, "/request.json", body)
	if err != nil {
		return nil, err
	}
	if data.Code != codeVerified {
		return nil, businessError(data.Code, data.Message)
	}
	return &gateway.InitializeResult{
		Authority:   data.Authority,
		RedirectURL: c.payBase + data.Authority,
	}, nil
}

func (c *Client) Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	body := verifyRequest{
		MerchantID: c.merchantID,
		Amount:     req.Amount,
		Authority:  req.Authority,
	}
	data, raw, err := c.post(ctx, "/verify.json", body)
	if err != nil {
		return nil, err
	}
	// 101 means this authority was already verified once; the settlement
	// stands either way.
	if data.Code != codeVerified && data.Code != codeAlreadyVerified {
		return nil, businessError(data.Code, data.Message)
	}
	refID := strconv.FormatInt(data.RefID, 10)
	return &gateway.VerifyResult{
		TransactionID: refID,
		RefID:         refID,
		Raw:           raw,
	}, nil
}

func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	body := reverseRequest{
		MerchantID: c.merchantID,
		Authority:  req.Authority,
	}
	data, raw, err := c.post(ctx, "/reverse.json", body)
	if err != nil {
		return nil, err
	}
	if data.Code != codeVerified {
		return nil, businessError(data.Code, data.Message)
	}
	return &gateway.RefundResult{Raw: raw}, nil
}

func (c *Client) Status(ctx context.Context, req gateway.StatusRequest) (*gateway.StatusResult, error) {
	body := inquiryRequest{
		MerchantID: c.merchantID,
		Authority:  req.Authority,
	}
	data, raw, err := c.post(ctx, "/inquiry.json", body)
	if err != nil {
		return nil, err
	}
	return &gateway.StatusResult{Status: data.Status, Raw: raw}, nil
}

// ValidateCallback requires the two query parameters ZarinPal redirects back
// with: Authority and Status (OK/NOK).
func (c *Client) ValidateCallback(payload gateway.CallbackPayload) bool {
	return payload.Get("Authority") != "" && payload.Get("Status") != ""
}

func (c *Client) ParseCallback(payload gateway.CallbackPayload) (*gateway.CallbackData, error) {
	authority := payload.Get("Authority")
	if authority == "" {
		return nil, gateway.NewError(gateway.KindUnknown, "MISSING_AUTHORITY", "callback carries no authority")
	}
	return &gateway.CallbackData{
		Authority: authority,
		Cancelled: payload.Get("Status") != "OK",
	}, nil
}

// post sends a JSON request and unwraps the v4 envelope. Network errors and
// unparseable responses surface as transport failures; API-reported errors
// surface as business failures.
func (c *Client) post(ctx context.Context, path string, body interface{}) (*resultData, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, gateway.Transport(err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, gateway.Transport(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.apiBase + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBody(payload)

	if err := fasthttp.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, nil, gateway.Transport(err)
	}

	raw := append([]byte(nil), resp.Body()...)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, gateway.Transport(fmt.Errorf("zarinpal: malformed response: %w", err))
	}

	// Failure responses put the error object in errors and an empty array
	// in data.
	if len(env.Errors) > 0 && env.Errors[0] == '{' {
		var apiErr apiError
		if err := json.Unmarshal(env.Errors, &apiErr); err != nil {
			return nil, nil, gateway.Transport(fmt.Errorf("zarinpal: malformed error body: %w", err))
		}
		return nil, nil, businessError(apiErr.Code, apiErr.Message)
	}

	if len(env.Data) == 0 || env.Data[0] != '{' {
		return nil, nil, gateway.Transport(fmt.Errorf("zarinpal: response carries no data object (http %d)", resp.StatusCode()))
	}

	var data resultData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, nil, gateway.Transport(fmt.Errorf("zarinpal: malformed data body: %w", err))
	}
	return &data, raw, nil
}

func businessError(code int, message string) *gateway.Error {
	kind := gateway.KindBusiness
	// -74: invalid merchant id, -80: merchant has no access.
	if code == -74 || code == -80 {
		kind = gateway.KindAuth
	}
	if message == "" {
		message = "zarinpal rejected the request"
	}
	return gateway.NewError(kind, strconv.Itoa(code), message)
}
