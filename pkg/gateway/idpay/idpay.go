// Package idpay implements the gateway contract against the IDPay REST API
// (v1.1). IDPay exposes no refund endpoint; Refund reports an unsupported
// operation.
package idpay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/novinshop/paycore/pkg/gateway"
)

const apiBase = "https://api.idpay.ir/v1.1/payment"

type Client struct {
	apiKey  string
	sandbox bool
	apiBase string
	timeout time.Duration
}

func New(apiKey string, sandbox bool, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, gateway.NewError(gateway.KindConfig, "MISSING_API_KEY", "idpay api key is not set")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		sandbox: sandbox,
		apiBase: apiBase,
		timeout: timeout,
	}, nil
}

func (c *Client) Name() string {
	return "idpay"
}

func (c *Client) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	body := createRequest{
		OrderID:  req.OrderRef,
		Amount:   req.Amount,
		Callback: req.CallbackURL,
		Desc:     req.Description,
		Phone:    req.Meta["mobile"],
		Mail:     req.Meta["email"],
	}
	raw, err := c.post(ctx, "", body)
	if err != nil {
		return nil, err
	}
	var out createResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, gateway.Transport(fmt.Errorf("idpay: malformed create response: %w", err))
	}
	if out.ID == "" || out.Link == "" {
		return nil, gateway.NewError(gateway.KindUnknown, "EMPTY_SESSION", "idpay returned no payment session")
	}
	return &gateway.InitializeResult{Authority: out.ID, RedirectURL: out.Link}, nil
}

func (c *Client) Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	body := verifyRequest{ID: req.Authority, OrderID: req.OrderRef}
	raw, err := c.post(ctx, "/verify", body)
	if err != nil {
		return nil, err
	}
	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, gateway.Transport(fmt.Errorf("idpay: malformed verify response: %w", err))
	}
	// 101 means a second verification of the same transaction; the first
	// settlement stands.
	if out.Status != statusVerified && out.Status != statusReVerify && out.Status != statusSettled {
		return nil, statusError(out.Status)
	}
	trackID := out.TrackID.String()
	if trackID == "" {
		trackID = out.Payment.TrackID.String()
	}
	return &gateway.VerifyResult{
		TransactionID: trackID,
		RefID:         trackID,
		Raw:           raw,
	}, nil
}

func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	return nil, gateway.NewError(gateway.KindBusiness, "REFUND_UNSUPPORTED", "idpay does not support API refunds")
}

func (c *Client) Status(ctx context.Context, req gateway.StatusRequest) (*gateway.StatusResult, error) {
	body := verifyRequest{ID: req.Authority, OrderID: req.OrderRef}
	raw, err := c.post(ctx, "/inquiry", body)
	if err != nil {
		return nil, err
	}
	var out inquiryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, gateway.Transport(fmt.Errorf("idpay: malformed inquiry response: %w", err))
	}
	name, ok := statusNames[out.Status]
	if !ok {
		name = strconv.Itoa(out.Status)
	}
	return &gateway.StatusResult{Status: name, Raw: raw}, nil
}

// ValidateCallback requires the POSTed fields IDPay sends back: the payment
// session id, the order id and a status code.
func (c *Client) ValidateCallback(payload gateway.CallbackPayload) bool {
	return payload.Get("id") != "" && payload.Get("order_id") != "" && payload.Get("status") != ""
}

func (c *Client) ParseCallback(payload gateway.CallbackPayload) (*gateway.CallbackData, error) {
	id := payload.Get("id")
	if id == "" {
		return nil, gateway.NewError(gateway.KindUnknown, "MISSING_ID", "callback carries no payment id")
	}
	return &gateway.CallbackData{
		Authority: id,
		Cancelled: payload.Get("status") == strconv.Itoa(statusCancelled),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, gateway.Transport(err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, gateway.Transport(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.apiBase + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	if c.sandbox {
		req.Header.Set("X-SANDBOX", "1")
	}
	req.SetBody(payload)

	if err := fasthttp.DoTimeout(req, resp, c.timeout); err != nil {
		return nil, gateway.Transport(err)
	}

	raw := append([]byte(nil), resp.Body()...)
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return raw, nil
	}

	var apiErr errorResponse
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.ErrorMessage == "" {
		return nil, gateway.Transport(fmt.Errorf("idpay: unexpected http %d", status))
	}
	kind := gateway.KindBusiness
	if status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden {
		kind = gateway.KindAuth
	}
	return nil, gateway.NewError(kind, strconv.Itoa(apiErr.ErrorCode), apiErr.ErrorMessage)
}

func statusError(status int) *gateway.Error {
	name, ok := statusNames[status]
	if !ok {
		name = "transaction not verified"
	}
	return gateway.NewError(gateway.KindBusiness, strconv.Itoa(status), "idpay: "+name)
}
