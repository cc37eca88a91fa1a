// Package paypal implements the gateway contract on top of the PayPal
// Orders v2 API. The PayPal order id doubles as the authority token; the
// capture id recorded at verification is what refunds reference.
package paypal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/novinshop/paycore/pkg/gateway"
)

var dec100 = decimal.NewFromInt(100)

type Client struct {
	client   *paypal.Client
	currency string
	timeout  time.Duration
}

// New builds the client and obtains an access token, so bad credentials
// fail at startup rather than on the first payment.
func New(clientID, secret string, live bool, currency string, timeout time.Duration) (*Client, error) {
	if clientID == "" || secret == "" {
		return nil, gateway.NewError(gateway.KindConfig, "MISSING_CREDENTIALS", "paypal client id or secret is not set")
	}
	if currency == "" {
		currency = "USD"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	base := paypal.APIBaseSandBox
	if live {
		base = paypal.APIBaseLive
	}
	pc, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, gateway.NewError(gateway.KindConfig, "CLIENT_INIT", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := pc.GetAccessToken(ctx); err != nil {
		return nil, gateway.NewError(gateway.KindAuth, "ACCESS_TOKEN", fmt.Sprintf("paypal access token: %v", err))
	}

	return &Client{
		client:   pc,
		currency: strings.ToUpper(currency),
		timeout:  timeout,
	}, nil
}

func (c *Client) Name() string {
	return "paypal"
}

// majorUnits renders a minor-unit amount as the decimal string PayPal wants.
func (c *Client) majorUnits(amount int64) string {
	return decimal.NewFromInt(amount).Div(dec100).StringFixed(2)
}

func (c *Client) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: req.OrderRef,
			Description: req.Description,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: c.currency,
				Value:    c.majorUnits(req.Amount),
			},
		},
	}
	appCtx := &paypal.ApplicationContext{
		ReturnURL: req.CallbackURL,
		CancelURL: cancelURL(req.CallbackURL),
	}

	order, err := c.client.CreateOrder(ctx, "CAPTURE", units, nil, appCtx)
	if err != nil {
		return nil, mapSDKError("create order", err)
	}

	approval := approvalURL(order)
	if approval == "" {
		return nil, gateway.NewError(gateway.KindUnknown, "NO_APPROVAL_LINK", "paypal order has no approval link")
	}
	return &gateway.InitializeResult{Authority: order.ID, RedirectURL: approval}, nil
}

func (c *Client) Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	order, err := c.client.GetOrder(ctx, req.Authority)
	if err != nil {
		return nil, mapSDKError("get order", err)
	}

	switch order.Status {
	case "COMPLETED":
		// Already captured on a previous verification attempt.
		return &gateway.VerifyResult{
			TransactionID: order.ID,
			RefID:         order.ID,
			Raw:           []byte(fmt.Sprintf(`{"order_id":%q,"status":%q}`, order.ID, order.Status)),
		}, nil
	case "APPROVED":
	default:
		return nil, gateway.NewError(gateway.KindBusiness, "NOT_APPROVED",
			fmt.Sprintf("paypal order is %s, not approved", order.Status))
	}

	capture, err := c.client.CaptureOrder(ctx, req.Authority, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, mapSDKError("capture order", err)
	}
	if capture.Status != "COMPLETED" {
		return nil, gateway.NewError(gateway.KindBusiness, "CAPTURE_INCOMPLETE",
			fmt.Sprintf("paypal capture ended in %s", capture.Status))
	}

	captureID := capture.ID
	if len(capture.PurchaseUnits) > 0 && capture.PurchaseUnits[0].Payments != nil &&
		len(capture.PurchaseUnits[0].Payments.Captures) > 0 {
		captureID = capture.PurchaseUnits[0].Payments.Captures[0].ID
	}
	return &gateway.VerifyResult{
		TransactionID: captureID,
		RefID:         capture.ID,
		Raw:           []byte(fmt.Sprintf(`{"order_id":%q,"capture_id":%q,"status":%q}`, capture.ID, captureID, capture.Status)),
	}, nil
}

func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	refund, err := c.client.RefundCapture(ctx, req.TransactionID, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: c.currency,
			Value:    c.majorUnits(req.Amount),
		},
		NoteToPayer: req.Reason,
	})
	if err != nil {
		return nil, mapSDKError("refund capture", err)
	}
	return &gateway.RefundResult{
		Raw: []byte(fmt.Sprintf(`{"refund_id":%q,"status":%q}`, refund.ID, refund.Status)),
	}, nil
}

func (c *Client) Status(ctx context.Context, req gateway.StatusRequest) (*gateway.StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	order, err := c.client.GetOrder(ctx, req.Authority)
	if err != nil {
		return nil, mapSDKError("get order", err)
	}
	return &gateway.StatusResult{
		Status: strings.ToLower(order.Status),
		Raw:    []byte(fmt.Sprintf(`{"order_id":%q,"status":%q}`, order.ID, order.Status)),
	}, nil
}

// ValidateCallback requires the token query parameter PayPal appends to the
// return URL (the order id).
func (c *Client) ValidateCallback(payload gateway.CallbackPayload) bool {
	return payload.Get("token") != ""
}

func (c *Client) ParseCallback(payload gateway.CallbackPayload) (*gateway.CallbackData, error) {
	token := payload.Get("token")
	if token == "" {
		return nil, gateway.NewError(gateway.KindUnknown, "MISSING_TOKEN", "callback carries no order token")
	}
	return &gateway.CallbackData{
		Authority: token,
		Cancelled: payload.Get("cancelled") == "1",
	}, nil
}

// cancelURL marks the callback URL so ParseCallback can tell a payer
// cancellation from a return. The flag must land in the query component;
// the path has to stay intact for the callback route to match.
func cancelURL(callbackURL string) string {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return callbackURL
	}
	q := u.Query()
	q.Set("cancelled", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

func approvalURL(order *paypal.Order) string {
	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href
		}
	}
	return ""
}

// mapSDKError classifies plutov/paypal errors. The SDK wraps API failures in
// *paypal.ErrorResponse; anything else is treated as transport.
func mapSDKError(op string, err error) error {
	if apiErr, ok := err.(*paypal.ErrorResponse); ok {
		kind := gateway.KindBusiness
		if apiErr.Response != nil && (apiErr.Response.StatusCode == 401 || apiErr.Response.StatusCode == 403) {
			kind = gateway.KindAuth
		}
		return gateway.NewError(kind, apiErr.Name, fmt.Sprintf("paypal %s: %s", op, apiErr.Message))
	}
	return gateway.Transport(fmt.Errorf("paypal %s: %w", op, err))
}
