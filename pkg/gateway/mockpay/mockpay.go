// Package mockpay is a scriptable in-memory gateway used by orchestrator
// and handler tests. Every operation returns whatever the test loaded into
// the corresponding field and counts its invocations.
package mockpay

import (
	"context"
	"sync/atomic"

	"github.com/novinshop/paycore/pkg/gateway"
)

type Client struct {
	GatewayName string

	InitializeResult *gateway.InitializeResult
	InitializeErr    error
	VerifyResult     *gateway.VerifyResult
	VerifyErr        error
	RefundResult     *gateway.RefundResult
	RefundErr        error
	StatusResult     *gateway.StatusResult
	StatusErr        error

	InitializeCalls atomic.Int64
	VerifyCalls     atomic.Int64
	RefundCalls     atomic.Int64
	StatusCalls     atomic.Int64
}

func New(name string) *Client {
	return &Client{GatewayName: name}
}

func (c *Client) Name() string {
	if c.GatewayName == "" {
		return "mockpay"
	}
	return c.GatewayName
}

func (c *Client) Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	c.InitializeCalls.Add(1)
	if c.InitializeErr != nil {
		return nil, c.InitializeErr
	}
	return c.InitializeResult, nil
}

func (c *Client) Verify(ctx context.Context, req gateway.VerifyRequest) (*gateway.VerifyResult, error) {
	c.VerifyCalls.Add(1)
	if c.VerifyErr != nil {
		return nil, c.VerifyErr
	}
	return c.VerifyResult, nil
}

func (c *Client) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	c.RefundCalls.Add(1)
	if c.RefundErr != nil {
		return nil, c.RefundErr
	}
	return c.RefundResult, nil
}

func (c *Client) Status(ctx context.Context, req gateway.StatusRequest) (*gateway.StatusResult, error) {
	c.StatusCalls.Add(1)
	if c.StatusErr != nil {
		return nil, c.StatusErr
	}
	return c.StatusResult, nil
}

// ValidateCallback accepts any payload that names an authority.
func (c *Client) ValidateCallback(payload gateway.CallbackPayload) bool {
	return payload.Get("authority") != ""
}

func (c *Client) ParseCallback(payload gateway.CallbackPayload) (*gateway.CallbackData, error) {
	authority := payload.Get("authority")
	if authority == "" {
		return nil, gateway.NewError(gateway.KindUnknown, "MISSING_AUTHORITY", "callback carries no authority")
	}
	return &gateway.CallbackData{
		Authority: authority,
		Cancelled: payload.Get("cancelled") == "1",
	}, nil
}
