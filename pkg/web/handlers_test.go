package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/novinshop/paycore/pkg/gateway"
	"github.com/novinshop/paycore/pkg/gateway/mockpay"
	"github.com/novinshop/paycore/pkg/models"
	"github.com/novinshop/paycore/pkg/orders"
	"github.com/novinshop/paycore/pkg/payments"
)

type fixture struct {
	router *gin.Engine
	store  *payments.MemoryStore
	gw     *mockpay.Client
}

func newFixture(t *testing.T, frontendBaseURL string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gw := mockpay.New("mockpay")
	gw.InitializeResult = &gateway.InitializeResult{
		Authority:   "A1",
		RedirectURL: "https://gw.example/pay/A1",
	}
	gw.VerifyResult = &gateway.VerifyResult{
		TransactionID: "T1",
		RefID:         "T1",
		Raw:           []byte(`{"ok":true}`),
	}
	gw.RefundResult = &gateway.RefundResult{Raw: []byte(`{}`)}

	registry := gateway.NewRegistry("mockpay")
	require.NoError(t, registry.Register(gw))

	orderStore := orders.NewMemoryStore()
	orderStore.Put(&models.Order{
		ID:            "O1",
		UserID:        "U1",
		PayableAmount: 100000,
		PaymentMethod: models.PaymentMethodOnline,
		PaymentStatus: models.OrderPaymentStatusUnpaid,
	})

	store := payments.NewMemoryStore()
	orch := payments.NewOrchestrator(payments.Config{
		Store:           store,
		Orders:          orderStore,
		Reconciler:      orderStore,
		Gateways:        registry,
		PublicBaseURL:   "https://shop.example",
		FrontendBaseURL: frontendBaseURL,
	})

	router := gin.New()
	NewHandler(orch, nil).Register(router)

	return &fixture{router: router, store: store, gw: gw}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", "U1")
	req.Header.Set("X-Actor-ID", "admin")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestInitializeEndpoint(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.NotEmpty(t, body["payment_id"])
	require.Equal(t, "https://gw.example/pay/A1", body["redirect_url"])
}

func TestInitializeEndpointUnknownOrder(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodPost, "/orders/ghost/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.NotEmpty(t, decode(t, w)["code"])
}

func TestInitializeEndpointMalformedBody(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackEndpointRedirectsToFrontend(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/callbacks/mockpay?authority=A1", "")
	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	require.Contains(t, loc, "https://shop.example/payment/result")
	require.Contains(t, loc, "status=success")
	require.Contains(t, loc, "order=O1")
}

func TestCallbackEndpointRendersResultPageWithoutFrontend(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/callbacks/mockpay?authority=A1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "Payment Successful")
	require.Contains(t, w.Body.String(), "O1")
}

func TestCallbackEndpointRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodGet, "/callbacks/mockpay", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotEmpty(t, decode(t, w)["code"])
}

func TestCallbackEndpointUnknownAuthority(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodGet, "/callbacks/mockpay?authority=ghost", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallbackEndpointUnknownGateway(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodGet, "/callbacks/nosuchpay?authority=A1", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRefundEndpoint(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusOK, w.Code)
	paymentID := decode(t, w)["payment_id"].(string)

	// Refund before settlement is a conflict.
	w = f.do(t, http.MethodPost, "/payments/"+paymentID+"/refund", `{"reason":"customer request"}`)
	require.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/callbacks/mockpay?authority=A1", "")
	require.Equal(t, http.StatusFound, w.Code)

	w = f.do(t, http.MethodPost, "/payments/"+paymentID+"/refund", `{"reason":"customer request"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "refunded", body["status"])
	require.Equal(t, float64(100000), body["refund_amount"])
}

func TestGetEndpoint(t *testing.T) {
	f := newFixture(t, "https://shop.example")

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusOK, w.Code)
	paymentID := decode(t, w)["payment_id"].(string)

	w = f.do(t, http.MethodGet, "/payments/"+paymentID, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "O1", body["order_id"])
	require.Equal(t, "processing", body["status"])

	w = f.do(t, http.MethodGet, "/payments/ghost", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInquiryEndpoint(t *testing.T) {
	f := newFixture(t, "https://shop.example")
	f.gw.StatusResult = &gateway.StatusResult{Status: "verified", Raw: []byte(`{}`)}

	w := f.do(t, http.MethodPost, "/orders/O1/payments", `{"gateway":"mockpay"}`)
	require.Equal(t, http.StatusOK, w.Code)
	paymentID := decode(t, w)["payment_id"].(string)

	w = f.do(t, http.MethodGet, "/payments/"+paymentID+"/inquiry", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "verified", body["gateway_status"])
	require.Equal(t, "processing", body["record_status"])
}
