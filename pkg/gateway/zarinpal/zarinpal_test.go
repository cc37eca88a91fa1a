package zarinpal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novinshop/paycore/pkg/gateway"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		merchantID: "m-1",
		apiBase:    srv.URL,
		payBase:    "https://pay.example/",
		timeout:    2 * time.Second,
	}
}

func respond(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/request.json", r.URL.Path)
			respond(t, w, `{"data":{"code":100,"message":"Success","authority":"A000012345"},"errors":[]}`)
		})
		res, err := c.Initialize(ctx, gateway.InitializeRequest{
			Amount:      100000,
			CallbackURL: "https://shop.example/callbacks/zarinpal",
			Description: "Payment for order O1",
		})
		require.NoError(t, err)
		require.Equal(t, "A000012345", res.Authority)
		require.Equal(t, "https://pay.example/A000012345", res.RedirectURL)
	})

	t.Run("business rejection", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, `{"data":[],"errors":{"code":-9,"message":"The input params invalid"}}`)
		})
		_, err := c.Initialize(ctx, gateway.InitializeRequest{Amount: 1})
		ge, ok := gateway.AsError(err)
		require.True(t, ok)
		require.Equal(t, gateway.KindBusiness, ge.Kind)
		require.Equal(t, "-9", ge.Code)
	})

	t.Run("invalid merchant is an auth failure", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, `{"data":[],"errors":{"code":-74,"message":"Invalid merchant id"}}`)
		})
		_, err := c.Initialize(ctx, gateway.InitializeRequest{Amount: 1})
		ge, ok := gateway.AsError(err)
		require.True(t, ok)
		require.Equal(t, gateway.KindAuth, ge.Kind)
	})

	t.Run("unreachable gateway is a transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := &Client{merchantID: "m-1", apiBase: srv.URL, payBase: "https://pay.example/", timeout: time.Second}
		_, err := c.Initialize(ctx, gateway.InitializeRequest{Amount: 1})
		require.True(t, gateway.IsTransport(err))
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		code string
	}{
		{"verified", "100"},
		{"already verified", "101"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/verify.json", r.URL.Path)
				respond(t, w, `{"data":{"code":`+tc.code+`,"message":"Verified","ref_id":12345,"card_pan":"5022****1234"},"errors":[]}`)
			})
			res, err := c.Verify(ctx, gateway.VerifyRequest{Authority: "A1", Amount: 100000})
			require.NoError(t, err)
			require.Equal(t, "12345", res.TransactionID)
			require.Equal(t, "12345", res.RefID)
			require.NotEmpty(t, res.Raw)
		})
	}

	t.Run("rejected", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, `{"data":[],"errors":{"code":-51,"message":"Session is not valid, session is not active paid try"}}`)
		})
		_, err := c.Verify(ctx, gateway.VerifyRequest{Authority: "A1", Amount: 100000})
		ge, ok := gateway.AsError(err)
		require.True(t, ok)
		require.Equal(t, gateway.KindBusiness, ge.Kind)
		require.Equal(t, "-51", ge.Code)
	})

	t.Run("malformed body is a transport failure", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, `<html>gateway error</html>`)
		})
		_, err := c.Verify(ctx, gateway.VerifyRequest{Authority: "A1", Amount: 100000})
		require.True(t, gateway.IsTransport(err))
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse.json", r.URL.Path)
		respond(t, w, `{"data":{"code":100,"message":"Reversed"},"errors":[]}`)
	})
	res, err := c.Refund(ctx, gateway.RefundRequest{Authority: "A1", Amount: 100000})
	require.NoError(t, err)
	require.NotEmpty(t, res.Raw)
}

func TestCallback(t *testing.T) {
	c := &Client{merchantID: "m-1"}

	ok := gateway.CallbackPayload{Params: map[string]string{"Authority": "A1", "Status": "OK"}}
	require.True(t, c.ValidateCallback(ok))
	data, err := c.ParseCallback(ok)
	require.NoError(t, err)
	require.Equal(t, "A1", data.Authority)
	require.False(t, data.Cancelled)

	nok := gateway.CallbackPayload{Params: map[string]string{"Authority": "A1", "Status": "NOK"}}
	data, err = c.ParseCallback(nok)
	require.NoError(t, err)
	require.True(t, data.Cancelled)

	require.False(t, c.ValidateCallback(gateway.CallbackPayload{Params: map[string]string{"Authority": "A1"}}))
	require.False(t, c.ValidateCallback(gateway.CallbackPayload{Params: map[string]string{"Status": "OK"}}))
}

func TestSandboxEndpoints(t *testing.T) {
	c, err := New("m-1", true, 0)
	require.NoError(t, err)
	require.Equal(t, sandboxAPIBase, c.apiBase)
	require.Equal(t, sandboxPayBase, c.payBase)

	_, err = New("", false, 0)
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.KindConfig, ge.Kind)
}
