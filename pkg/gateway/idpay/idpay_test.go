package idpay

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
		apiKey:  "k-1",
		sandbox: true,
		apiBase: srv.URL,
		timeout: 2 * time.Second,
	}
}

func respond(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "k-1", r.Header.Get("X-API-KEY"))
			require.Equal(t, "1", r.Header.Get("X-SANDBOX"))
			respond(t, w, http.StatusCreated, `{"id":"d2e35a","link":"https://idpay.ir/p/ws-sandbox/d2e35a"}`)
		})
		res, err := c.Initialize(ctx, gateway.InitializeRequest{
			Amount:      100000,
			OrderRef:    "O1",
			CallbackURL: "https://shop.example/callbacks/idpay",
		})
		require.NoError(t, err)
		require.Equal(t, "d2e35a", res.Authority)
		require.Equal(t, "https://idpay.ir/p/ws-sandbox/d2e35a", res.RedirectURL)
	})

	t.Run("api error", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, http.StatusNotAcceptable, `{"error_code":34,"error_message":"amount below minimum"}`)
		})
		_, err := c.Initialize(ctx, gateway.InitializeRequest{Amount: 1, OrderRef: "O1"})
		ge, ok := gateway.AsError(err)
		require.True(t, ok)
		require.Equal(t, gateway.KindBusiness, ge.Kind)
		require.Equal(t, "34", ge.Code)
	})

	t.Run("unauthorized is an auth failure", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, http.StatusUnauthorized, `{"error_code":11,"error_message":"api key not found"}`)
		})
		_, err := c.Initialize(ctx, gateway.InitializeRequest{Amount: 100000, OrderRef: "O1"})
		ge, ok := gateway.AsError(err)
		require.True(t, ok)
		require.Equal(t, gateway.KindAuth, ge.Kind)
	})

	t.Run("unreachable gateway is a transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := &Client{apiKey: "k-1", apiBase: srv.URL, timeout: time.Second}
		_, err := c.Initialize(ctx, gateway.InitializeRequest{Amount: 100000, OrderRef: "O1"})
		require.True(t, gateway.IsTransport(err))
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		body string
	}{
		{"verified", `{"status":100,"track_id":9999,"id":"d2e35a","order_id":"O1","amount":"100000"}`},
		{"already verified", `{"status":101,"track_id":9999,"id":"d2e35a","order_id":"O1","amount":"100000"}`},
		{"settled", `{"status":200,"track_id":9999,"id":"d2e35a","order_id":"O1","amount":"100000"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/verify", r.URL.Path)
				respond(t, w, http.StatusOK, tc.body)
			})
			res, err := c.Verify(ctx, gateway.VerifyRequest{Authority: "d2e35a", OrderRef: "O1"})
			require.NoError(t, err)
			require.Equal(t, "9999", res.TransactionID)
			require.NotEmpty(t, res.Raw)
		})
	}

	t.Run("unverified status is a business failure", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, http.StatusOK, `{"status":2,"track_id":9999,"id":"d2e35a","order_id":"O1"}`)
		})
		_, err := c.Verify(ctx, gateway.VerifyRequest{Authority: "d2e35a", OrderRef: "O1"})
		ge, ok := gateway.AsError(err)
		require.True(t, ok)
		require.Equal(t, gateway.KindBusiness, ge.Kind)
		require.Equal(t, "2", ge.Code)
	})

	t.Run("track id nested under payment", func(t *testing.T) {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			respond(t, w, http.StatusOK, `{"status":100,"id":"d2e35a","order_id":"O1","payment":{"track_id":8888,"card_no":"5022****1234"}}`)
		})
		res, err := c.Verify(ctx, gateway.VerifyRequest{Authority: "d2e35a", OrderRef: "O1"})
		require.NoError(t, err)
		require.Equal(t, "8888", res.TransactionID)
	})
}

func TestRefundUnsupported(t *testing.T) {
	c := &Client{apiKey: "k-1"}
	_, err := c.Refund(context.Background(), gateway.RefundRequest{TransactionID: "9999"})
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.KindBusiness, ge.Kind)
	require.Equal(t, "REFUND_UNSUPPORTED", ge.Code)
}

func TestStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/inquiry", r.URL.Path)
		respond(t, w, http.StatusOK, `{"status":200,"track_id":9999,"id":"d2e35a","order_id":"O1"}`)
	})
	res, err := c.Status(context.Background(), gateway.StatusRequest{Authority: "d2e35a", OrderRef: "O1"})
	require.NoError(t, err)
	require.Equal(t, "settled", res.Status)
}

func TestCallback(t *testing.T) {
	c := &Client{apiKey: "k-1"}

	ok := gateway.CallbackPayload{Params: map[string]string{"id": "d2e35a", "order_id": "O1", "status": "10"}}
	require.True(t, c.ValidateCallback(ok))
	data, err := c.ParseCallback(ok)
	require.NoError(t, err)
	require.Equal(t, "d2e35a", data.Authority)
	require.False(t, data.Cancelled)

	cancelled := gateway.CallbackPayload{Params: map[string]string{"id": "d2e35a", "order_id": "O1", "status": "7"}}
	data, err = c.ParseCallback(cancelled)
	require.NoError(t, err)
	require.True(t, data.Cancelled)

	require.False(t, c.ValidateCallback(gateway.CallbackPayload{Params: map[string]string{"id": "d2e35a"}}))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("", false, 0)
	ge, ok := gateway.AsError(err)
	require.True(t, ok)
	require.Equal(t, gateway.KindConfig, ge.Kind)
}
